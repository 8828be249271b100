// Package analysis checks log files before they are handed to the AI
// pipeline.
package analysis

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest accepted log file, in bytes.
const MaxFileSize = 10 * 1024 * 1024

// AllowedExtensions are the log file extensions accepted without a text
// content type.
var AllowedExtensions = []string{".log", ".txt", ".json", ".csv", ".syslog"}

var (
	ErrUnsupportedType = errors.New("Please upload a log file (.log, .txt, .json, .csv, or .syslog)")
	ErrTooLarge        = errors.New("File size must be less than 10MB")
	ErrUnreadable      = errors.New("Failed to read file")
)

// AllowedExtension reports whether name ends in one of AllowedExtensions,
// ignoring case.
func AllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Validate checks a file before it is read. A file with an unknown extension
// is still accepted when its content type is text/*. A size of -1 means
// unknown and is checked while reading.
func Validate(name, contentType string, size int64) error {
	if !AllowedExtension(name) && !strings.HasPrefix(strings.ToLower(contentType), "text/") {
		return ErrUnsupportedType
	}
	if size > MaxFileSize {
		return ErrTooLarge
	}
	return nil
}

// ReadLimited reads r as text, failing with ErrTooLarge once more than
// MaxFileSize bytes arrive.
func ReadLimited(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(data) > MaxFileSize {
		return "", ErrTooLarge
	}
	return string(data), nil
}
