// Package report renders a finished analysis for download.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kiranshivaraju/citadel/pkg/models"
)

// Formats.
const (
	FormatJSON = "json"
	FormatTXT  = "txt"
)

const title = "CITADEL SYSLOG AI - Analysis Report"

var ErrUnknownFormat = errors.New("unknown export format")

type jsonReport struct {
	FileName          string                    `json:"fileName"`
	AnalyzedAt        time.Time                 `json:"analyzedAt"`
	Provider          string                    `json:"provider"`
	Summary           string                    `json:"summary"`
	SeverityBreakdown *models.SeverityBreakdown `json:"severityBreakdown,omitempty"`
	Insights          []string                  `json:"insights,omitempty"`
	Recommendations   []string                  `json:"recommendations,omitempty"`
}

// Render returns the export of a in format and its content type.
func Render(a *models.LogAnalysis, format string) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		b, err := JSON(a)
		return b, "application/json", err
	case FormatTXT:
		return []byte(Text(a)), "text/plain; charset=utf-8", nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// JSON renders the report indented by two spaces.
func JSON(a *models.LogAnalysis) ([]byte, error) {
	return json.MarshalIndent(jsonReport{
		FileName:          a.FileName,
		AnalyzedAt:        a.UploadedAt,
		Provider:          a.Provider,
		Summary:           a.Summary,
		SeverityBreakdown: a.SeverityBreakdown,
		Insights:          a.Insights,
		Recommendations:   a.Recommendations,
	}, "", "  ")
}

// Text renders the plain-text report.
func Text(a *models.LogAnalysis) string {
	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", 37) + "\n")
	fmt.Fprintf(&sb, "File: %s\n", a.FileName)
	fmt.Fprintf(&sb, "Analyzed: %s\n", a.UploadedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Provider: %s\n", a.Provider)

	section(&sb, "SUMMARY", a.Summary)

	var sev models.SeverityBreakdown
	if a.SeverityBreakdown != nil {
		sev = *a.SeverityBreakdown
	}
	section(&sb, "SEVERITY BREAKDOWN", fmt.Sprintf("Critical: %d\nWarning: %d\nInfo: %d\nSuccess: %d",
		sev.Critical, sev.Warning, sev.Info, sev.Success))

	section(&sb, "KEY INSIGHTS", numbered(a.Insights))
	section(&sb, "RECOMMENDATIONS", numbered(a.Recommendations))
	return sb.String()
}

// FileName is the download name for an export of the log called name.
func FileName(name, format string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return base + "-analysis." + format
}

func section(sb *strings.Builder, header, body string) {
	fmt.Fprintf(sb, "\n%s\n%s\n%s\n", header, strings.Repeat("-", len(header)), body)
}

func numbered(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, it)
	}
	return strings.Join(lines, "\n")
}
