package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/scoutdeck-cli/internal/utils"
)

var vizOut string

var vizCmd = &cobra.Command{
	Use:   "viz <file.csv> <code.py>",
	Short: "Run one visualization snippet against a CSV and save the plot",
	Long: `Runs a single visualization snippet through the same safety gate, auto-repair
and sandboxed executor that report --visuals uses. The snippet sees the
normalized table as df alongside plt, np, pd and Pitch.`,
	Example: `  scoutdeck viz events.csv shotmap.py --out shotmap.png`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, _, log, err := loadTable(args[0])
		if err != nil {
			return err
		}
		code, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		exec, err := buildExecutor(cfg, logger)
		if err != nil {
			return err
		}

		res := exec.Execute(context.Background(), string(code), t, log)
		w := cmd.OutOrStdout()
		printCorrections(w, log.Entries())
		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}
		if err := utils.SafeWriteFile(vizOut, res.Image); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		fmt.Fprintf(w, "✓ Saved visualization to %s\n", vizOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vizCmd)
	vizCmd.Flags().StringVarP(&vizOut, "out", "o", "plot.png", "path of the PNG to write")
}
