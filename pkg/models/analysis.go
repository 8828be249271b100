package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AnalysisStatusPending   = "pending"
	AnalysisStatusAnalyzing = "analyzing"
	AnalysisStatusCompleted = "completed"
	AnalysisStatusError     = "error"
)

// SeverityBreakdown counts log entries per severity bucket.
type SeverityBreakdown struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Success  int `json:"success"`
}

// DeviceFailure is a structured failure the model attributed to one device.
type DeviceFailure struct {
	Device         string `json:"device"`
	Error          string `json:"error"`
	Timestamp      string `json:"timestamp"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
}

// AnalysisResult is the set of fields lifted out of a model reply.
type AnalysisResult struct {
	Summary           string             `json:"summary"`
	SeverityBreakdown *SeverityBreakdown `json:"severityBreakdown,omitempty"`
	Insights          []string           `json:"insights"`
	Recommendations   []string           `json:"recommendations"`
	DeviceFailures    []DeviceFailure    `json:"deviceFailures,omitempty"`
}

// LogAnalysis is one submitted log file and the outcome of analysing it.
// The record is created as analyzing and moves to completed or error exactly once.
type LogAnalysis struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"fileName"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"`
	RawContent string    `json:"rawContent,omitempty"`
	Provider   string    `json:"provider"`

	Summary           string             `json:"summary,omitempty"`
	SeverityBreakdown *SeverityBreakdown `json:"severityBreakdown,omitempty"`
	Insights          []string           `json:"insights,omitempty"`
	Recommendations   []string           `json:"recommendations,omitempty"`
	DeviceFailures    []DeviceFailure    `json:"deviceFailures,omitempty"`

	Error       string     `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether the analysis has finished, successfully or not.
func (a *LogAnalysis) Terminal() bool {
	return a.Status == AnalysisStatusCompleted || a.Status == AnalysisStatusError
}

// Complete merges a result into the record and marks it completed.
func (a *LogAnalysis) Complete(r AnalysisResult, at time.Time) {
	a.Status = AnalysisStatusCompleted
	a.Summary = r.Summary
	a.SeverityBreakdown = r.SeverityBreakdown
	a.Insights = r.Insights
	a.Recommendations = r.Recommendations
	a.DeviceFailures = r.DeviceFailures
	a.Error = ""
	a.CompletedAt = &at
}

// Fail records the error message verbatim and marks the record failed.
func (a *LogAnalysis) Fail(msg string, at time.Time) {
	a.Status = AnalysisStatusError
	a.Error = msg
	a.CompletedAt = &at
}
