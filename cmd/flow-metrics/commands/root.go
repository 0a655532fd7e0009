package commands

import (
	"fmt"
	"io"
	"os"

	"flow-metrics/internal/config"
	"flow-metrics/internal/jira"
	"flow-metrics/internal/logging"
	"flow-metrics/internal/pipeline"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose    bool
	configFile string
	inputPath  string

	cfg       *config.AppConfig
	v         *viper.Viper
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "flow-metrics",
	Short: "Flow metrics reconstructs cycle times from Jira changelogs",
	Long: `Replays the status and impediment history of Jira issues against a configured
workflow and derives cycle data, cumulative flow, throughput, percentiles and
Monte-Carlo forecasts from it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		closer, err := logging.Init(logging.Options{Verbose: verbose})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
		}
		logCloser = closer

		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("command", cmd.Name()).
			Msg("flow-metrics starting")
	},
}

// Execute runs the root command. The log file is closed on every exit path,
// including a failing RunE, which skips PersistentPostRun.
func Execute() error {
	defer closeLog()
	return rootCmd.Execute()
}

func closeLog() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}

func init() {
	v = config.NewViper()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "settings file (default is ./flow-metrics.yaml or $HOME/flow-metrics.yaml)")
	rootCmd.PersistentFlags().Int("workers", 0, "number of reconstruction workers (default: number of CPUs)")
	_ = v.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))

	rootCmd.AddCommand(runCmd, serveCmd, validateCmd)
}

// loadSettings reads and validates the settings file. Bound flags
// override file values only when set on the command line.
func loadSettings() (*config.Settings, error) {
	settings, err := config.ReadSettings(v, configFile)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Strs("steps", settings.Workflow.StepNames()).
		Int("queries", len(settings.Queries)).
		Int("workers", settings.Workers).
		Msg("Settings loaded")
	return settings, nil
}

// newSource picks the snapshot replay when --input is set, the live
// Jira instance otherwise.
func newSource(settings *config.Settings) (pipeline.Source, error) {
	if inputPath != "" {
		log.Info().Str("path", inputPath).Msg("Replaying snapshot")
		return pipeline.NewSnapshotSource(inputPath, cfg.Jira.BaseURL)
	}
	if cfg.Jira.BaseURL == "" {
		return nil, fmt.Errorf("JIRA_URL is not set (use --input to replay a snapshot)")
	}
	if !cfg.HasCredentials() {
		return nil, fmt.Errorf("no Jira credentials configured (set JIRA_TOKEN or JIRA_USERNAME/JIRA_PASSWORD)")
	}
	return &pipeline.JiraSource{
		Client:   jira.NewClient(cfg.Jira),
		URL:      cfg.Jira.BaseURL,
		PageSize: settings.MaxResults,
	}, nil
}
