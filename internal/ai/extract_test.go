package ai_test

import (
	"testing"

	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioReply = `{"summary":"ok","severityBreakdown":{"critical":1,"warning":0,"info":2,"success":5},"insights":["x"],"recommendations":["y"]}`

func TestExtractAnalysis_PlainObject(t *testing.T) {
	r, err := ai.ExtractAnalysis(scenarioReply)
	require.NoError(t, err)

	assert.Equal(t, "ok", r.Summary)
	assert.Equal(t, &models.SeverityBreakdown{Critical: 1, Warning: 0, Info: 2, Success: 5}, r.SeverityBreakdown)
	assert.Equal(t, []string{"x"}, r.Insights)
	assert.Equal(t, []string{"y"}, r.Recommendations)
	assert.Nil(t, r.DeviceFailures)
}

func TestExtractAnalysis_SurroundedByProseAndFences(t *testing.T) {
	text := "Sure! Here is the analysis:\n```json\n" + scenarioReply + "\n```\nLet me know if you need more."
	r, err := ai.ExtractAnalysis(text)
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Summary)
}

func TestExtractAnalysis_NoBrace(t *testing.T) {
	_, err := ai.ExtractAnalysis("I could not analyse this log.")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
	assert.Equal(t, "Could not parse AI response as JSON", err.Error())
	assert.Equal(t, ai.ClassProtocol, ai.Classify(err))
}

func TestExtractAnalysis_ClosingBeforeOpening(t *testing.T) {
	_, err := ai.ExtractAnalysis("} nothing {")
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}

func TestExtractAnalysis_InvalidJSON(t *testing.T) {
	_, err := ai.ExtractAnalysis(`{"summary": "unterminated}`)
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}

func TestExtractAnalysis_DropsUnknownFields(t *testing.T) {
	r, err := ai.ExtractAnalysis(`{"summary":"s","confidence":0.9,"extra":{"a":1}}`)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisResult{Summary: "s"}, r)
}

func TestExtractAnalysis_ToleratesWrongShapes(t *testing.T) {
	r, err := ai.ExtractAnalysis(`{"summary":"s","severityBreakdown":"high","insights":["a",1],"recommendations":["r"]}`)
	require.NoError(t, err)

	assert.Equal(t, "s", r.Summary)
	assert.Nil(t, r.SeverityBreakdown)
	assert.Nil(t, r.Insights)
	assert.Equal(t, []string{"r"}, r.Recommendations)
}

func TestExtractAnalysis_DeviceFailures(t *testing.T) {
	r, err := ai.ExtractAnalysis(`{"summary":"s","deviceFailures":[{"device":"sw-core-01","error":"link down","timestamp":"14:32:01","severity":"critical","recommendation":"check uplink"}]}`)
	require.NoError(t, err)
	require.Len(t, r.DeviceFailures, 1)
	assert.Equal(t, "sw-core-01", r.DeviceFailures[0].Device)
	assert.Equal(t, "critical", r.DeviceFailures[0].Severity)
}
