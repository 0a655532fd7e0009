package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the settings file without fetching anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		wf := settings.Workflow
		steps := tablewriter.NewWriter(out)
		steps.Header([]string{"#", "Step", "Kind", "Statuses", "Active"})
		for _, s := range wf.Steps() {
			active := ""
			if wf.IsActive(s.Name) {
				active = "yes"
			}
			if err := steps.Append([]string{fmt.Sprint(s.Ordinal), s.Name, string(s.Kind), strings.Join(s.Statuses, ", "), active}); err != nil {
				return err
			}
		}
		if err := steps.Render(); err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(out, "%s %d steps, committed %q, done %q, policy %s, %d queries, %d workers\n",
			green("Settings OK:"), wf.Len(), wf.Committed().Name, wf.Done().Name, wf.Policy(), len(settings.Queries), settings.Workers)
		return nil
	},
}
