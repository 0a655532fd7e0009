package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"flow-metrics/internal/jira"
	"flow-metrics/internal/pipeline"
	"flow-metrics/internal/report"
	"flow-metrics/internal/table"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	dumpPath    string
	openReport  bool
	previewRows int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch issues, reconstruct cycle data and write the configured outputs",
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

		session := pipeline.NewSession(settings, source, time.Time{})
		res, err := session.Run(ctx)
		if err != nil {
			return err
		}

		if dumpPath != "" {
			path := snapshotPath(dumpPath)
			if err := jira.SaveSnapshot(path, res.Issues); err != nil {
				log.Error().Err(err).Str("path", path).Msg("Failed to write snapshot")
			} else {
				log.Info().Str("path", path).Int("issues", len(res.Issues)).Msg("Snapshot written")
				res.Summary.Outputs = append(res.Summary.Outputs, pipeline.Output{Stage: "snapshot", Path: path})
			}
		}

		pipeline.WriteOutputs(res, settings, pipeline.OutputOptions{
			Now:      session.Now(),
			NoCharts: !cfg.EnableMermaidCharts,
		})
		res.Summary.Log()

		out := cmd.OutOrStdout()
		if previewRows > 0 && res.Table.Len() > 0 {
			if err := table.Preview(out, res.Table, previewRows); err != nil {
				return err
			}
		}
		if err := res.Summary.Print(out); err != nil {
			return err
		}

		if openReport {
			if settings.Outputs.Report == "" {
				log.Warn().Msg("--open needs outputs.report to be configured")
			} else if err := report.Open(settings.Outputs.Report); err != nil {
				log.Warn().Err(err).Msg("Failed to open report")
			}
		}

		if n := len(res.Summary.StageErrors); n > 0 {
			return fmt.Errorf("%d output stages failed", n)
		}
		return nil
	},
}

// snapshotPath places bare file names in the configured snapshot directory.
func snapshotPath(name string) string {
	if filepath.Dir(name) == "." && !filepath.IsAbs(name) {
		return filepath.Join(cfg.SnapshotDir, name)
	}
	return name
}

func init() {
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "", "replay a JSONL snapshot instead of querying Jira")
	runCmd.Flags().StringVar(&dumpPath, "dump", "", "write the fetched issues as a JSONL snapshot (bare names go to the snapshot directory)")
	runCmd.Flags().BoolVar(&openReport, "open", false, "open the HTML report in the browser when done")
	runCmd.Flags().IntVar(&previewRows, "preview", 10, "number of cycle data rows to print (0 disables)")
}
