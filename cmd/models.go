package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/scoutdeck-cli/internal/ai"
	"github.com/KaramelBytes/scoutdeck-cli/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage or inspect model catalog and pricing",
	Example: `  scoutdeck models list
  scoutdeck models show
  scoutdeck models sync --file ./models.json --merge
  scoutdeck models fetch --url https://example.com/models.json
  scoutdeck models fetch --provider openrouter --merge --output models.json`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models offered for reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		avail := ai.AvailableModels()
		ids := make([]string, 0, len(avail))
		for id := range avail {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		w := cmd.OutOrStdout()
		for _, id := range ids {
			marker := " "
			if id == selectModel(cfg, "") {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %-40s %s\n", marker, id, avail[id])
		}
		return nil
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		// encoding/json sorts map keys, so output order is stable
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ai.Catalog())
	},
}

var (
	syncPath  string
	syncMerge bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if syncMerge {
			ai.MergeCatalog(m)
			fmt.Fprintln(cmd.OutOrStdout(), "Merged model catalog from file")
		} else {
			ai.OverrideCatalog(m)
			fmt.Fprintln(cmd.OutOrStdout(), "Replaced model catalog from file")
		}
		return nil
	},
}

// providerURL returns the catalog URL for a known provider. Empty string if unknown.
func providerURL(name string) string {
	switch name {
	case ai.ProviderOpenRouter:
		if v := os.Getenv("SCOUTDECK_OPENROUTER_CATALOG_URL"); v != "" {
			return v
		}
		if cfg != nil && cfg.ModelsCatalogURL != "" {
			return cfg.ModelsCatalogURL
		}
		return "https://raw.githubusercontent.com/KaramelBytes/scoutdeck-cli/main/docs/openrouter-models.json"
	case ai.ProviderOpenAI:
		return os.Getenv("SCOUTDECK_OPENAI_CATALOG_URL")
	default:
		return ""
	}
}

var (
	fetchURL      string
	fetchOutput   string
	fetchMerge    bool
	fetchProvider string
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL and apply it",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fetchURL
		if url == "" && fetchProvider != "" {
			url = providerURL(fetchProvider)
		}
		if url == "" {
			return fmt.Errorf("--url is required (or specify --provider openrouter)")
		}
		m, err := fetchCatalog(url)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		// Optionally write to file
		if fetchOutput != "" {
			data, err := utils.PrettyJSON(m)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(fetchOutput, data); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Fprintf(w, "Saved catalog to %s\n", fetchOutput)
		}
		if fetchMerge {
			ai.MergeCatalog(m)
			fmt.Fprintln(w, "Merged fetched catalog into in-memory catalog")
		} else {
			ai.OverrideCatalog(m)
			fmt.Fprintln(w, "Replaced in-memory catalog with fetched catalog")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")

	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "optional path to save the fetched JSON")
	modelsFetchCmd.Flags().BoolVar(&fetchMerge, "merge", false, "merge into existing catalog instead of replacing")
	modelsFetchCmd.Flags().StringVar(&fetchProvider, "provider", "", "provider (e.g. 'openrouter') to resolve the catalog URL if --url is not set")
}
