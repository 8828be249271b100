package openai

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
	readSize     = 4096
)

// ChunkFunc receives each content delta and the full text accumulated so far.
type ChunkFunc func(delta, full string)

// StreamReader reassembles an event-stream reply. It keeps the trailing
// partial line between reads and accumulates content deltas. One reader
// serves exactly one response and is not safe for concurrent use.
type StreamReader struct {
	buf     []byte
	full    strings.Builder
	onChunk ChunkFunc
}

// NewStreamReader creates a reader. onChunk may be nil.
func NewStreamReader(onChunk ChunkFunc) *StreamReader {
	return &StreamReader{onChunk: onChunk}
}

// Feed appends a chunk and processes every complete line in the buffer.
func (s *StreamReader) Feed(chunk []byte) {
	s.buf = append(s.buf, chunk...)
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			return
		}
		line := string(s.buf[:i])
		s.buf = s.buf[i+1:]
		s.processLine(line)
	}
}

// Flush processes whatever partial line is left once the stream has ended.
func (s *StreamReader) Flush() {
	if len(s.buf) == 0 {
		return
	}
	line := string(s.buf)
	s.buf = nil
	s.processLine(line)
}

// ReadFrom drains r through Feed and flushes at EOF. Read errors are
// returned after the buffered remainder has been flushed.
func (s *StreamReader) ReadFrom(r io.Reader) error {
	p := make([]byte, readSize)
	for {
		n, err := r.Read(p)
		if n > 0 {
			s.Feed(p[:n])
		}
		if errors.Is(err, io.EOF) {
			s.Flush()
			return nil
		}
		if err != nil {
			s.Flush()
			return err
		}
	}
}

// Text returns the accumulated content.
func (s *StreamReader) Text() string {
	return s.full.String()
}

func (s *StreamReader) processLine(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
		return
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == doneSentinel || payload == "" {
		return
	}

	var frame streamFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		slog.Debug("skipping malformed stream frame", "error", err)
		return
	}
	if len(frame.Choices) == 0 {
		return
	}
	delta := frame.Choices[0].Delta.Content
	if delta == "" {
		return
	}

	s.full.WriteString(delta)
	if s.onChunk != nil {
		s.onChunk(delta, s.full.String())
	}
}
