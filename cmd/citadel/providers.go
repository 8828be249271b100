package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/pkg/models"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newProvidersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the AI providers and which one is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.settings()
			if err != nil {
				return err
			}
			active, hasActive := provider.Active(s)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tMODEL\tENABLED\tUSABLE\tACTIVE")
			for _, spec := range provider.All() {
				p := providerRow(s, spec.ID)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					spec.ID, provider.DisplayName(p), spec.Kind, provider.Model(p),
					yesNo(p.Enabled), yesNo(provider.Usable(p)), yesNo(hasActive && active.ID == spec.ID))
			}
			return tw.Flush()
		},
	}
}

func newTestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "test [provider]",
		Short: "Test the connection to a provider (default: the selected one)",
		Long: `Checks that the provider is reachable and its model answers. For Ollama a
missing model is pulled first, with a progress bar.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.settings()
			if err != nil {
				return err
			}
			id := s.SelectedProvider
			if len(args) == 1 {
				id = args[0]
			}
			if _, ok := provider.Lookup(id); !ok {
				return fmt.Errorf("unknown provider %q", id)
			}
			a, err := c.analyzer()
			if err != nil {
				return err
			}

			bar := c.newPullBar("pulling model")
			res := a.Prober().TestConnection(cmd.Context(), providerRow(s, id), bar.update)
			bar.finish()

			out := cmd.OutOrStdout()
			if res.Latency != nil {
				fmt.Fprintf(out, "%s (%dms)\n", res.Message, *res.Latency)
			} else {
				fmt.Fprintln(out, res.Message)
			}
			if res.ModelResponse != "" {
				fmt.Fprintf(out, "Model replied: %s\n", res.ModelResponse)
			}
			if !res.Success {
				return fmt.Errorf("connection test failed")
			}
			return nil
		},
	}
}

func newPullCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pull [model]",
		Short: "Pull a model into the local Ollama (default: the configured model)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.settings()
			if err != nil {
				return err
			}
			p := providerRow(s, provider.LocalID)
			model := provider.Model(p)
			if len(args) == 1 {
				model = args[0]
			}
			a, err := c.analyzer()
			if err != nil {
				return err
			}

			bar := c.newPullBar(model)
			res := a.Prober().Pull(cmd.Context(), p, model, bar.update)
			bar.finish()

			if !res.Success {
				return fmt.Errorf("Failed to pull model %s: %s", model, res.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model %s is ready\n", model)
			return nil
		},
	}
}

// pullBar renders model download progress in bytes. It stays hidden until the
// first snapshot with a known size arrives.
type pullBar struct {
	bar   *progressbar.ProgressBar
	quiet bool
	desc  string
}

func (c *cli) newPullBar(desc string) *pullBar {
	return &pullBar{quiet: c.quiet, desc: desc}
}

func (b *pullBar) update(p models.PullProgress) {
	if b.quiet || p.TotalBytes <= 0 {
		return
	}
	if b.bar == nil {
		b.bar = progressbar.NewOptions64(p.TotalBytes,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(b.desc),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	if b.bar.GetMax64() != p.TotalBytes {
		b.bar.ChangeMax64(p.TotalBytes)
	}
	b.bar.Describe(fmt.Sprintf("%s: %s", b.desc, p.Status))
	b.bar.Set64(p.CompletedBytes)
}

func (b *pullBar) finish() {
	if b.bar != nil {
		b.bar.Finish()
	}
}

func providerRow(s models.AISettings, id string) models.AIProvider {
	if p, ok := s.Provider(id); ok {
		return p
	}
	return models.AIProvider{ID: id}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
