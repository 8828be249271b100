// citadel is the operator CLI: provider checks, model pulls, one-off log
// analysis, directory watching and an MCP server for agents.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/internal/config"
	"github.com/kiranshivaraju/citadel/pkg/models"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// cli holds the persistent flags shared by every subcommand.
type cli struct {
	configPath string
	verbose    bool
	quiet      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "citadel",
		Short: "AI-assisted analysis of network and system logs",
		Long: `citadel sends network device and system logs to a configured AI provider
(NVIDIA NIM, OpenAI, Grok, DeepSeek or a local Ollama) and reports a severity
breakdown, key insights and recommendations.

Provider settings are read from --config (YAML, JSON or TOML), by default
~/.citadel.yaml. Without a file the built-in provider defaults are used.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.initLogger()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Provider settings file (default $HOME/.citadel.yaml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVarP(&c.quiet, "quiet", "q", false, "Only log errors and hide progress bars")

	root.AddCommand(
		newProvidersCmd(c),
		newTestCmd(c),
		newPullCmd(c),
		newAnalyzeCmd(c),
		newWatchCmd(c),
		newMCPCmd(c),
	)
	return root
}

func (c *cli) initLogger() {
	level := slog.LevelInfo
	switch {
	case c.quiet:
		level = slog.LevelError
	case c.verbose:
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// settings loads the provider settings file.
func (c *cli) settings() (models.AISettings, error) {
	return config.LoadSettingsFile(c.configPath)
}

// analyzer builds the pipeline from the AI_* environment settings.
func (c *cli) analyzer() (*ai.Analyzer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return ai.NewAnalyzer(ai.NewOptions(cfg.AI)), nil
}

// fileSettings serves settings read once from the CLI settings file.
type fileSettings struct {
	s models.AISettings
}

func (f fileSettings) AI(context.Context) (models.AISettings, error) { return f.s, nil }
