package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/internal/analysis"
	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/internal/report"
	"github.com/kiranshivaraju/citadel/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
)

type tools struct {
	settings ai.SettingsSource
	analyzer *ai.Analyzer
}

type providerRow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Model   string `json:"model"`
	Enabled bool   `json:"enabled"`
	Usable  bool   `json:"usable"`
	Active  bool   `json:"active"`
}

func (t *tools) listProviders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := t.settings.AI(ctx)
	if err != nil {
		return errResult(fmt.Sprintf("load settings: %v", err)), nil
	}
	active, hasActive := provider.Active(s)

	rows := make([]providerRow, 0, len(provider.All()))
	for _, spec := range provider.All() {
		p, ok := s.Provider(spec.ID)
		if !ok {
			p = models.AIProvider{ID: spec.ID}
		}
		rows = append(rows, providerRow{
			ID:      spec.ID,
			Name:    provider.DisplayName(p),
			Kind:    spec.Kind.String(),
			Model:   provider.Model(p),
			Enabled: p.Enabled,
			Usable:  provider.Usable(p),
			Active:  hasActive && active.ID == spec.ID,
		})
	}
	return jsonResult(rows)
}

func (t *tools) testConnection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := t.settings.AI(ctx)
	if err != nil {
		return errResult(fmt.Sprintf("load settings: %v", err)), nil
	}

	id := stringArg(getArgs(request), "provider", s.SelectedProvider)
	if _, ok := provider.Lookup(id); !ok {
		return errResult(fmt.Sprintf("unknown provider %q", id)), nil
	}
	p, ok := s.Provider(id)
	if !ok {
		p = models.AIProvider{ID: id}
	}

	res := t.analyzer.Prober().TestConnection(ctx, p, nil)
	out, err := jsonResult(res)
	if err != nil || !res.Success {
		out.IsError = true
	}
	return out, err
}

func (t *tools) analyzeLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	format := stringArg(args, "format", report.FormatJSON)
	if format != report.FormatJSON && format != report.FormatTXT {
		return errResult("format must be json or txt"), nil
	}

	name, content, err := logInput(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	s, err := t.settings.AI(ctx)
	if err != nil {
		return errResult(fmt.Sprintf("load settings: %v", err)), nil
	}
	// A missing provider is reported by the analyzer with setup guidance.
	p, _ := provider.Active(s)
	rec, err := t.analyzer.AnalyzeRecord(ctx, p, name, content, nil)
	if err != nil {
		return errResult(err.Error()), nil
	}

	body, _, err := report.Render(rec, format)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return newTextResult(string(body)), nil
}

// logInput reads the file at path, or falls back to inline content. Both go
// through the upload checks.
func logInput(args map[string]interface{}) (string, string, error) {
	if path := stringArg(args, "path", ""); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", "", fmt.Errorf("open %s: %w", path, err)
		}
		name := filepath.Base(path)
		if err := analysis.Validate(name, "", info.Size()); err != nil {
			return "", "", err
		}
		f, err := os.Open(path)
		if err != nil {
			return "", "", fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		content, err := analysis.ReadLimited(f)
		return name, content, err
	}

	content := stringArg(args, "content", "")
	if content == "" {
		return "", "", fmt.Errorf("either path or content is required")
	}
	if len(content) > analysis.MaxFileSize {
		return "", "", analysis.ErrTooLarge
	}
	return "inline.log", content, nil
}

func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

func stringArg(args map[string]interface{}, key, defaultVal string) string {
	s, ok := args[key].(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// errResult is a tool-level failure, not a JSON-RPC error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}
