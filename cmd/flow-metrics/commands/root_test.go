package commands

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"flow-metrics/internal/logging"

	"github.com/spf13/cobra"
)

func TestExecute_ClosesLogWhenCommandFails(t *testing.T) {
	logDir := t.TempDir()
	t.Setenv("LOGS_FOLDER", logDir)
	t.Setenv("DATA_PATH", t.TempDir())

	failing := &cobra.Command{
		Use: "fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			if logCloser == nil {
				t.Error("Expected the log file to be open while the command runs")
			}
			return errors.New("stage failed")
		},
	}
	rootCmd.AddCommand(failing)
	defer rootCmd.RemoveCommand(failing)
	rootCmd.SetArgs([]string{"fail"})
	defer rootCmd.SetArgs(nil)

	if err := Execute(); err == nil {
		t.Fatal("Expected the command error to propagate")
	}
	if logCloser != nil {
		t.Error("Expected the log file to be closed after a failed command")
	}
	if _, err := os.Stat(filepath.Join(logDir, logging.FileName)); err != nil {
		t.Errorf("Expected log file to exist: %v", err)
	}
}
