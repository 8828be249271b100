package ai

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/citadel/pkg/models"
)

var errNoObject = errors.New("no JSON object in reply")

// ExtractAnalysis pulls the analysis object out of a model reply. The object
// spans from the first '{' to the last '}', so prose and markdown fences
// around it are ignored. Known fields are decoded one by one; a field with an
// unexpected shape keeps its zero value and other fields are dropped.
func ExtractAnalysis(text string) (models.AnalysisResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return models.AnalysisResult{}, parseError(errNoObject)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err != nil {
		return models.AnalysisResult{}, parseError(err)
	}

	var (
		r        models.AnalysisResult
		summary  string
		sev      models.SeverityBreakdown
		insights []string
		recs     []string
		failures []models.DeviceFailure
	)
	if lift(fields, "summary", &summary) {
		r.Summary = summary
	}
	if lift(fields, "severityBreakdown", &sev) {
		r.SeverityBreakdown = &sev
	}
	if lift(fields, "insights", &insights) {
		r.Insights = insights
	}
	if lift(fields, "recommendations", &recs) {
		r.Recommendations = recs
	}
	if lift(fields, "deviceFailures", &failures) {
		r.DeviceFailures = failures
	}
	return r, nil
}

// lift decodes fields[key] into dst and reports whether it succeeded.
func lift(fields map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Debug("ignoring analysis field with unexpected shape", "field", key, "error", err)
		return false
	}
	return true
}
