package commands

import (
	"context"
	"os"
	"os/signal"

	"flow-metrics/internal/mcp"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the flow analyses as MCP tools over stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout. Every tool runs the
reconstruction over the configured settings (or the --input snapshot) and
caches the resulting table until a tool asks for a refresh.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		source, err := newSource(settings)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return mcp.NewServer(settings, source).Serve(ctx, Version)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&inputPath, "input", "i", "", "replay a JSONL snapshot instead of querying Jira")
}
