package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/internal/ai/mock"
	"github.com/kiranshivaraju/citadel/internal/eventbus"
	"github.com/kiranshivaraju/citadel/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioReply = `{"summary":"ok","severityBreakdown":{"critical":1,"warning":0,"info":2,"success":5},"insights":["x"],"recommendations":["y"]}`

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AI_FINALIZE_DELAY", "1ms")
	t.Setenv("AI_HEALTH_TIMEOUT", "1s")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--quiet"))
	err := root.Execute()
	return out.String(), err
}

func writeSettings(t *testing.T, ollamaURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "citadel.yaml")
	body := fmt.Sprintf(`selected_provider: ollama
providers:
  - id: ollama
    enabled: true
    base_url: %s
    model: llama3.2
`, ollamaURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProvidersCmd(t *testing.T) {
	cfg := writeSettings(t, "http://localhost:11434")

	out, err := execute(t, "providers", "--config", cfg)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "ACTIVE")
	assert.Contains(t, lines[5], "ollama")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[5]), "yes"))
}

func TestTestCmd_Local(t *testing.T) {
	srv := mock.NewOllamaServer(mock.WithModels("llama3.2"))
	defer srv.Close()

	out, err := execute(t, "test", "--config", writeSettings(t, srv.URL))
	require.NoError(t, err)
	assert.Contains(t, out, "Connected to Ollama. Model llama3.2 is ready")
	assert.Contains(t, out, "Model replied: hello")
}

func TestTestCmd_Failure(t *testing.T) {
	srv := mock.NewOllamaServer(mock.WithBanner("nginx"))
	defer srv.Close()

	out, err := execute(t, "test", "ollama", "--config", writeSettings(t, srv.URL))
	require.Error(t, err)
	assert.Contains(t, out, "Ollama is not responding correctly")
}

func TestTestCmd_UnknownProvider(t *testing.T) {
	_, err := execute(t, "test", "claude", "--config", writeSettings(t, "http://localhost:11434"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "claude"`)
}

func TestPullCmd(t *testing.T) {
	srv := mock.NewOllamaServer(mock.WithPullLines(
		`{"status":"pulling manifest"}`,
		`{"status":"downloading","total":100,"completed":50}`,
		`{"status":"success"}`,
	))
	defer srv.Close()

	out, err := execute(t, "pull", "qwen2.5", "--config", writeSettings(t, srv.URL))
	require.NoError(t, err)
	assert.Contains(t, out, "Model qwen2.5 is ready")
	assert.Equal(t, 1, srv.Calls("/api/pull"))
}

func TestAnalyzeCmd_Text(t *testing.T) {
	srv := mock.NewOllamaServer(mock.WithModels("llama3.2"), mock.WithChatReply(scenarioReply))
	defer srv.Close()

	out, err := execute(t, "analyze", writeLog(t, "edge.log", "ERROR link down"), "--config", writeSettings(t, srv.URL))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "CITADEL SYSLOG AI - Analysis Report\n"))
	assert.Contains(t, out, "File: edge.log")
	assert.Contains(t, out, "1. y")
}

func TestAnalyzeCmd_JSON(t *testing.T) {
	srv := mock.NewOllamaServer(mock.WithModels("llama3.2"), mock.WithChatReply(scenarioReply))
	defer srv.Close()

	out, err := execute(t, "analyze", writeLog(t, "edge.log", "ERROR"), "--format", "json", "--config", writeSettings(t, srv.URL))
	require.NoError(t, err)
	assert.Contains(t, out, `"summary": "ok"`)
}

func TestAnalyzeCmd_Errors(t *testing.T) {
	cfg := writeSettings(t, "http://localhost:11434")

	_, err := execute(t, "analyze", writeLog(t, "image.png", "x"), "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please upload a log file")

	_, err = execute(t, "analyze", "/no/such/file.log", "--config", cfg)
	require.Error(t, err)

	_, err = execute(t, "analyze", writeLog(t, "a.log", "x"), "--format", "pdf", "--config", cfg)
	require.Error(t, err)
}

func TestAnalyzeCmd_NoProvider(t *testing.T) {
	// The built-in defaults select nvidia without an API key.
	_, err := execute(t, "analyze", writeLog(t, "a.log", "x"), "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No AI provider configured")
}

func TestPrintFinished(t *testing.T) {
	events := make(chan eventbus.Event, 2)
	events <- eventbus.Event{Type: ai.EventCompleted, Data: models.LogAnalysis{
		FileName:          "edge.log",
		Summary:           "ok",
		SeverityBreakdown: &models.SeverityBreakdown{Critical: 1},
	}}
	events <- eventbus.Event{Type: ai.EventError, Data: map[string]any{
		"message":  "Cannot reach Ollama",
		"analysis": models.LogAnalysis{FileName: "core.log"},
	}}
	close(events)

	var out bytes.Buffer
	printFinished(&out, events)
	assert.Contains(t, out.String(), "[done] edge.log: critical=1 warning=0 info=0 success=0")
	assert.Contains(t, out.String(), "[fail] core.log: Cannot reach Ollama")
}
