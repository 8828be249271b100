package main

import (
	"github.com/kiranshivaraju/citadel/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start Model Context Protocol (MCP) server",
		Long: `Starts a JSON-RPC server implementing the Model Context Protocol (MCP) so AI
agents can list providers, test connections and analyse logs.

Communication happens over standard input/output (stdio). Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.settings()
			if err != nil {
				return err
			}
			a, err := c.analyzer()
			if err != nil {
				return err
			}
			return mcp.NewServer(version, fileSettings{s}, a).Start(cmd.Context())
		},
	}
}
