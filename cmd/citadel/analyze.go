package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/internal/analysis"
	"github.com/kiranshivaraju/citadel/internal/cache"
	"github.com/kiranshivaraju/citadel/internal/eventbus"
	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/internal/report"
	"github.com/kiranshivaraju/citadel/internal/session"
	"github.com/kiranshivaraju/citadel/internal/watcher"
	"github.com/kiranshivaraju/citadel/pkg/models"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyse a log file with the active provider and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != report.FormatJSON && format != report.FormatTXT {
				return fmt.Errorf("--format must be json or txt, got %q", format)
			}
			name, content, err := readLogFile(args[0])
			if err != nil {
				return err
			}

			s, err := c.settings()
			if err != nil {
				return err
			}
			a, err := c.analyzer()
			if err != nil {
				return err
			}

			// Without an active provider the analyzer fails with setup guidance.
			p, _ := provider.Active(s)
			bar := c.newStageBar()
			rec, err := a.AnalyzeRecord(cmd.Context(), p, name, content, bar.update)
			bar.finish()
			if err != nil {
				return err
			}

			body, _, err := report.Render(rec, format)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			out.Write(body)
			if format == report.FormatJSON {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", report.FormatTXT, "Report format: txt or json")
	return cmd
}

func newWatchCmd(c *cli) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Analyse every new log file dropped into a directory",
		Long: `Watches a directory and analyses each new log file once its writes settle.
Files already present when watching starts are skipped. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.settings()
			if err != nil {
				return err
			}
			if _, ok := provider.Active(s); !ok {
				return fmt.Errorf("no usable AI provider: enable one in %s", settingsPathHint(c.configPath))
			}
			a, err := c.analyzer()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			hub := eventbus.NewHub()
			mem := cache.NewMemoryCache()
			defer mem.Close()
			svc := ai.NewAnalysisService(a, fileSettings{s}, session.NewStore(mem, 24*time.Hour), hub)
			defer svc.Wait()

			w, err := watcher.New(watcher.DefaultConfig(args[0], sessionID), svc)
			if err != nil {
				return err
			}

			events := hub.Subscribe(ctx, 64)
			go printFinished(cmd.OutOrStdout(), events)

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", args[0])
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "watcher", "Session the analyses are recorded under")
	return cmd
}

// printFinished writes one line per finished analysis until events closes.
func printFinished(out io.Writer, events <-chan eventbus.Event) {
	for evt := range events {
		switch evt.Type {
		case ai.EventCompleted:
			rec, ok := evt.Data.(models.LogAnalysis)
			if !ok {
				continue
			}
			sb := rec.SeverityBreakdown
			if sb == nil {
				sb = &models.SeverityBreakdown{}
			}
			fmt.Fprintf(out, "[done] %s: critical=%d warning=%d info=%d success=%d\n       %s\n",
				rec.FileName, sb.Critical, sb.Warning, sb.Info, sb.Success, rec.Summary)
		case ai.EventError:
			data, ok := evt.Data.(map[string]any)
			if !ok {
				continue
			}
			rec, _ := data["analysis"].(models.LogAnalysis)
			fmt.Fprintf(out, "[fail] %s: %v\n", rec.FileName, data["message"])
		}
	}
}

func readLogFile(path string) (string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("file '%s' does not exist", path)
	}
	name := filepath.Base(path)
	if err := analysis.Validate(name, "", info.Size()); err != nil {
		return "", "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	content, err := analysis.ReadLimited(f)
	return name, content, err
}

func settingsPathHint(path string) string {
	if path != "" {
		return path
	}
	return "the settings file (--config)"
}

// stageBar renders analysis progress as a percentage with the stage message.
type stageBar struct {
	bar *progressbar.ProgressBar
}

func (c *cli) newStageBar() *stageBar {
	if c.quiet {
		return &stageBar{}
	}
	return &stageBar{bar: progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Starting..."),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)}
}

func (b *stageBar) update(p models.Progress) {
	if b.bar == nil {
		return
	}
	b.bar.Describe(p.Message)
	b.bar.Set(p.Percent)
}

func (b *stageBar) finish() {
	if b.bar != nil {
		b.bar.Finish()
	}
}
