package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/scoutdeck-cli/internal/analysis"
	"github.com/KaramelBytes/scoutdeck-cli/internal/report"
	"github.com/KaramelBytes/scoutdeck-cli/internal/schema"
	"github.com/KaramelBytes/scoutdeck-cli/internal/utils"
	"github.com/KaramelBytes/scoutdeck-cli/internal/validate"
)

var (
	anaOutputPath string
	anaSampleRows int
	anaMaxRows    int
	anaGroupBy    []string
	anaCorr       bool
	anaOutliers   bool
	anaOutlierThr float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.csv>",
	Short: "Summarize a CSV the way the report pipeline sees it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opt := analysis.DefaultOptions()
		opt.Name = filepath.Base(path)
		if anaSampleRows > 0 {
			opt.SampleRows = anaSampleRows
		}
		if cmd.Flags().Changed("max-rows") {
			opt.MaxRows = anaMaxRows
		}
		// Analytics flags
		opt.GroupBy = anaGroupBy
		opt.Correlations = anaCorr
		if cmd.Flags().Changed("outliers") {
			opt.Outliers = anaOutliers
		} else {
			opt.Outliers = true
		}
		if anaOutlierThr > 0 {
			opt.OutlierThreshold = anaOutlierThr
		}

		normalized, removed, log, err := loadTable(path)
		if err != nil {
			return err
		}

		var b strings.Builder
		s := analysis.Summarize(normalized)
		b.WriteString("[OVERVIEW]\n")
		b.WriteString(fmt.Sprintf("File type: %s\n", report.DetectFileType(normalized).Title()))
		b.WriteString(fmt.Sprintf("Rows: %d, Columns: %d, Memory: %.2f MB, Nulls: %.1f%%\n", s.Rows, s.Columns, s.MemoryMB, s.NullPercentage))
		if len(removed) > 0 {
			b.WriteString(fmt.Sprintf("Removed sensitive columns: %s\n", strings.Join(removed, ", ")))
		}
		b.WriteString("\n[COLUMNS]\n")
		b.WriteString(schema.ColumnInfo(normalized))
		b.WriteString("\n")
		if entries := log.Entries(); len(entries) > 0 {
			b.WriteString("\n[NORMALIZATION]\n")
			for _, e := range entries {
				b.WriteString("- " + e + "\n")
			}
		}
		if warnings := validate.QualityWarnings(normalized); len(warnings) > 0 {
			b.WriteString("\n[QUALITY]\n")
			for _, w := range warnings {
				b.WriteString("- " + w + "\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(analysis.Profile(normalized, opt).Markdown())
		md := b.String()

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write analysis (Markdown)")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "number of sample rows to include")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 100000, "maximum rows to process (0 = unlimited)")
	analyzeCmd.Flags().StringSliceVar(&anaGroupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	analyzeCmd.Flags().BoolVar(&anaCorr, "correlations", false, "compute Pearson correlations among numeric columns")
	analyzeCmd.Flags().BoolVar(&anaOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	analyzeCmd.Flags().Float64Var(&anaOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}
