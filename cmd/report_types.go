package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/scoutdeck-cli/internal/report"
)

var reportTypesCmd = &cobra.Command{
	Use:   "report-types",
	Short: "List the available report types",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, t := range report.Types {
			fmt.Fprintf(w, "%s\n  %s\n", t.Name, t.Description)
			if len(t.RequiredColumns) > 0 {
				fmt.Fprintf(w, "  requires: %s\n", strings.Join(t.RequiredColumns, ", "))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportTypesCmd)
}
