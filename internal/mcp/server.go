// Package mcp exposes provider checks and log analysis as Model Context
// Protocol tools over stdio.
package mcp

import (
	"context"
	"os"

	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server whose tools read provider settings from
// settings and run analyses with analyzer.
func NewServer(version string, settings ai.SettingsSource, analyzer *ai.Analyzer) *Server {
	s := server.NewMCPServer("citadel", version, server.WithLogging())
	registerTools(s, &tools{settings: settings, analyzer: analyzer})
	return &Server{mcpServer: s}
}

// Start serves over stdin and stdout until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func registerTools(s *server.MCPServer, t *tools) {
	s.AddTool(mcp.NewTool("list_providers",
		mcp.WithDescription("List the known AI providers with whether each is enabled, usable and the active one."),
	), t.listProviders)

	s.AddTool(mcp.NewTool("test_connection",
		mcp.WithDescription("Check that an AI provider is reachable and its model answers. Pulls a missing Ollama model first."),
		mcp.WithString("provider",
			mcp.Description("Provider id (nvidia, openai, grok, deepseek, ollama). Defaults to the selected provider."),
		),
	), t.testConnection)

	s.AddTool(mcp.NewTool("analyze_log",
		mcp.WithDescription("Analyse a network or system log with the active AI provider and return a severity breakdown, insights and recommendations."),
		mcp.WithString("path",
			mcp.Description("Path of a .log, .txt, .json, .csv or .syslog file, at most 10MB."),
		),
		mcp.WithString("content",
			mcp.Description("Raw log text, used when path is not given."),
		),
		mcp.WithString("format",
			mcp.Description("Report format"),
			mcp.DefaultString("json"),
			mcp.Enum("json", "txt"),
		),
	), t.analyzeLog)
}
