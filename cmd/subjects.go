package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/scoutdeck-cli/internal/pipeline"
	"github.com/KaramelBytes/scoutdeck-cli/internal/report"
)

var subjType string

var subjectsCmd = &cobra.Command{
	Use:   "subjects <file.csv>",
	Short: "List the players or teams a report type can be written about",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if subjType == "" {
			subjType = report.Types[0].Name
		}
		if _, ok := report.Lookup(subjType); !ok {
			return fmt.Errorf("unknown --type %q", subjType)
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		prep, err := pipeline.New(nil, nil, logger.Named("pipeline")).Prepare(pipeline.Request{
			FileName:      filepath.Base(args[0]),
			Data:          data,
			ReportType:    subjType,
			MaxFileSizeMB: maxFileSizeMB(),
		})
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "File type: %s\n", prep.FileType.Title())
		sel := prep.Selection
		if sel.Column == "" {
			fmt.Fprintf(w, "%s covers %s (%d rows)\n", subjType, sel.Subject, sel.Data.Len())
			return nil
		}
		fmt.Fprintf(w, "%s subjects from column %q:\n", subjType, sel.Column)
		for _, o := range sel.Options {
			fmt.Fprintf(w, "  - %s\n", o)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(subjectsCmd)
	subjectsCmd.Flags().StringVarP(&subjType, "type", "t", "", "report type (default Player Report)")
}
