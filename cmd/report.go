package cmd

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/scoutdeck-cli/internal/ai"
	"github.com/KaramelBytes/scoutdeck-cli/internal/pipeline"
	"github.com/KaramelBytes/scoutdeck-cli/internal/report"
	"github.com/KaramelBytes/scoutdeck-cli/internal/utils"
	"github.com/KaramelBytes/scoutdeck-cli/internal/validate"
)

// Completion size assumed for cost estimates when max_tokens is unset.
const estimateCompletionTokens = 1024

var (
	repType        string
	repSubject     string
	repVisuals     bool
	repModel       string
	repProvider    string
	repTemp        float64
	repMaxTokens   int
	repDryRun      bool
	repQuiet       bool
	repJSON        bool
	repPrintPrompt bool
	repBudgetLimit float64
	repOutputPath  string
	repOutputFmt   string
	repSave        bool
	repImagesDir   string
	repStream      bool
	repOllamaHost  string
	repTimeoutSec  int
)

var reportCmd = &cobra.Command{
	Use:   "report <file.csv>",
	Short: "Generate a scouting report from a match or scouting CSV",
	Example: `  scoutdeck report events.csv --type "Match Report" --dry-run
  scoutdeck report events.csv --type "Opposition Report" --subject Arsenal --visuals --images-dir plots
  scoutdeck report scouting.csv --type "Player Report" --subject Saka --stream --save
  scoutdeck report events.csv --type "Player Report" --provider ollama --model llama3:latest`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if repJSON {
			repQuiet = true
		}

		// Ensure flags that can carry over between invocations are reset to defaults
		// unless explicitly provided in THIS run. Use Visit to detect set flags in this parse.
		if f := cmd.Flags(); f != nil {
			provided := map[string]bool{}
			f.Visit(func(fl *pflag.Flag) {
				provided[fl.Name] = true
			})
			if !provided["type"] {
				repType = ""
			}
			if !provided["budget-limit"] {
				repBudgetLimit = 0
			}
			if !provided["print-prompt"] {
				repPrintPrompt = false
			}
			if !provided["provider"] {
				repProvider = ""
			}
			if !provided["model"] {
				repModel = ""
			}
			if !provided["subject"] {
				repSubject = ""
			}
			if !provided["temperature"] {
				repTemp = 0
			}
			if !provided["max-tokens"] {
				repMaxTokens = 0
			}
			if !provided["timeout-sec"] {
				repTimeoutSec = 180
			}
			if !provided["dry-run"] {
				repDryRun = false
			}
			if !provided["visuals"] {
				repVisuals = false
			}
		}

		if repType == "" {
			return fmt.Errorf("--type is required (one of: %s)", strings.Join(report.Names(), ", "))
		}
		if _, ok := report.Lookup(repType); !ok {
			return fmt.Errorf("unknown --type %q (one of: %s)", repType, strings.Join(report.Names(), ", "))
		}

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		exec, err := buildExecutor(cfg, logger)
		if err != nil {
			return err
		}
		p := pipeline.New(nil, exec, logger.Named("pipeline"))

		model := selectModel(cfg, repModel)
		temp := repTemp
		if temp <= 0 && cfg != nil {
			temp = cfg.Temperature
		}
		if temp <= 0 {
			temp = ai.DefaultTemperature
		}
		maxTokens := repMaxTokens
		if maxTokens == 0 && cfg != nil {
			maxTokens = cfg.MaxTokens
		}

		req := pipeline.Request{
			FileName:      filepath.Base(path),
			Data:          data,
			ReportType:    repType,
			Subject:       repSubject,
			Visuals:       repVisuals,
			Model:         model,
			Temperature:   temp,
			MaxFileSizeMB: maxFileSizeMB(),
		}
		prep, err := p.Prepare(req)
		if err != nil {
			return err
		}

		if !repQuiet {
			fmt.Printf("📂 %s: %d rows × %d columns (%s, %.1f%% null)\n",
				req.FileName, prep.Summary.Rows, prep.Summary.Columns, prep.FileType.Title(), prep.Summary.NullPercentage)
			if len(prep.Removed) > 0 {
				fmt.Printf("🔒 Removed sensitive columns: %s\n", strings.Join(prep.Removed, ", "))
			}
			for _, w := range prep.Warnings {
				fmt.Printf("⚠ %s\n", strings.TrimSpace(strings.TrimPrefix(w, "⚠️")))
			}
			fmt.Printf("🎯 %s about %s (%d rows)\n", repType, prep.Selection.Subject, prep.Selection.Data.Len())
		}

		// Token breakdown
		prompt := prep.SystemPrompt + "\n\n" + prep.UserPrompt
		breakdown := utils.TokenBreakdown(map[string]string{
			"system": prep.SystemPrompt,
			"user":   prep.UserPrompt,
		})
		tokens := breakdown["system"] + breakdown["user"]
		if !repQuiet {
			fmt.Printf("Tokens: total≈%d (system≈%d, user≈%d)\n", tokens, breakdown["system"], breakdown["user"])
		}

		completion := maxTokens
		if completion <= 0 {
			completion = estimateCompletionTokens
		}

		// Model metadata and pricing warnings
		var estCost float64
		if mi, ok := ai.LookupModel(model); ok {
			if tokens+completion > mi.ContextTokens {
				if !repQuiet {
					fmt.Printf("⚠ Prompt (%d tokens) + completion (%d) exceeds %s context window (~%d tokens).\n",
						tokens, completion, mi.Name, mi.ContextTokens)
				}
				if !repDryRun && tokens > mi.ContextTokens {
					return &ai.ContextWindowError{Model: model, Tokens: tokens, Limit: mi.ContextTokens}
				}
			}
			if cost, ok := ai.EstimateCostUSD(model, tokens, completion); ok {
				estCost = cost
				if !repQuiet && cost > 0 {
					fmt.Printf("Estimated max cost: ~$%.4f (in %.4f/out %.4f per 1K tokens)\n", cost, mi.InputPerK, mi.OutputPerK)
				}
			}
		}

		if err := enforceBudget(estCost, repBudgetLimit); err != nil {
			return err
		}

		if repDryRun {
			if !repQuiet {
				// Deterministic dry-run request id for observability
				sum := sha1.Sum([]byte(prompt))
				rid := fmt.Sprintf("sim_%x", sum[:6])
				fmt.Println("\n--dry-run: no API call will be made. Prompt preview below --")
				fmt.Printf("Request ID (dry-run): %s\n", rid)
			}
			fmt.Println(prompt)
			return nil
		}

		client, providerName, err := buildRuntime(cfg, runtimeOptions{
			ProviderFlag: repProvider,
			OllamaHost:   repOllamaHost,
		})
		if err != nil {
			return err
		}
		apiKey := resolveAPIKey(cfg)
		if ai.NeedsAPIKey(providerName) {
			if ok, msg := validate.APIKey(apiKey); !ok {
				if apiKey == "" {
					return errors.New(msg)
				}
				if !repQuiet {
					fmt.Printf("⚠ %s\n", msg)
				}
			}
		}

		svc := ai.NewService(client, apiKey, ai.NeedsAPIKey(providerName), logger.Named("ai"))
		svc.Model = model
		svc.Temperature = temp
		svc.MaxTokens = maxTokens
		var genErr error
		svc.OnError = func(err error) { genErr = err }
		p.Service = svc

		onFragment, streamed := handleStreaming(client, streamingOptions{
			Enabled:     repStream,
			Quiet:       repQuiet,
			PrintPrompt: repPrintPrompt,
			Prompt:      prompt,
			Writer:      os.Stdout,
			DeltaWriter: os.Stdout,
		})
		if repPrintPrompt && !streamed && !repQuiet {
			fmt.Println("\n--print-prompt: sending the following prompt --")
			fmt.Println(prompt)
		}
		req.OnFragment = onFragment

		// Request timeout
		timeoutSec := repTimeoutSec
		if timeoutSec <= 0 {
			timeoutSec = 180
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
		defer cancel()

		if !repQuiet {
			fmt.Printf("⚙ Generating with provider=%s model=%s (prompt tokens≈%d) ...\n", providerName, model, tokens)
		}
		out := p.Complete(ctx, prep, req)
		if streamed && !repQuiet {
			fmt.Println()
		}
		if out.GenerationError != "" {
			if genErr != nil {
				return explainGenerationError(genErr, providerName, model, tokens)
			}
			return errors.New(strings.TrimPrefix(out.GenerationError, ai.ErrorPrefix))
		}

		images, err := writeImages(out.Blocks, repImagesDir, out.Filename)
		if err != nil {
			return err
		}

		outputPath := repOutputPath
		if outputPath == "" && repSave {
			outputPath = out.Filename
		}
		if err := formatAndWriteOutput(out.Prose, outputOptions{
			JSON:         repJSON,
			Quiet:        repQuiet,
			Streamed:     streamed,
			RunID:        out.Log.SessionID(),
			ReportType:   repType,
			Subject:      out.Subject(),
			FileType:     string(out.FileType),
			Model:        model,
			Temperature:  temp,
			PromptTokens: tokens,
			Warnings:     out.Warnings,
			Corrections:  out.Log.Entries(),
			Images:       images,
			OutputPath:   outputPath,
			OutputFormat: repOutputFmt,
			Writer:       os.Stdout,
		}); err != nil {
			return err
		}

		if repQuiet {
			return nil
		}
		if repVisuals {
			printVisualizations(os.Stdout, images)
		}
		printCorrections(os.Stdout, out.Log.Entries())
		return nil
	},
}

func printVisualizations(w io.Writer, images []imageRecord) {
	if len(images) == 0 {
		fmt.Fprintln(w, "\nℹ No visualization code found in the report.")
		return
	}
	fmt.Fprintln(w, "\n📊 Visualizations")
	for _, img := range images {
		switch {
		case !img.OK:
			fmt.Fprintf(w, "  %d. ✗ %s\n", img.Block, img.Message)
		case img.Path != "":
			fmt.Fprintf(w, "  %d. ✓ saved %s\n", img.Block, img.Path)
		default:
			fmt.Fprintf(w, "  %d. ✓ rendered (use --images-dir to save)\n", img.Block)
		}
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&repType, "type", "t", "", "report type: "+strings.Join(report.Names(), " | "))
	reportCmd.Flags().StringVarP(&repSubject, "subject", "s", "", "player or team to report on (default: first in file)")
	reportCmd.Flags().BoolVar(&repVisuals, "visuals", false, "ask for and render suggested visualizations")
	reportCmd.Flags().StringVar(&repModel, "model", "", "override model (default from config)")
	reportCmd.Flags().StringVar(&repProvider, "provider", "", "runtime: openrouter|openai|ollama")
	reportCmd.Flags().Float64Var(&repTemp, "temperature", 0, "sampling temperature (default 0.7)")
	reportCmd.Flags().IntVar(&repMaxTokens, "max-tokens", 0, "max tokens for the report (0 lets the provider decide)")
	reportCmd.Flags().BoolVar(&repDryRun, "dry-run", false, "build the prompt and print token breakdown without calling the API")
	reportCmd.Flags().BoolVar(&repPrintPrompt, "print-prompt", false, "print the prompt being sent to the API")
	reportCmd.Flags().Float64Var(&repBudgetLimit, "budget-limit", 0, "fail if estimated max cost (USD) exceeds this budget")
	reportCmd.Flags().StringVar(&repOutputPath, "output", "", "optional path to write the report")
	reportCmd.Flags().StringVar(&repOutputFmt, "format", "text", "output file format: text|markdown|json")
	reportCmd.Flags().BoolVar(&repSave, "save", false, "write the report to its default file name when --output is not set")
	reportCmd.Flags().StringVar(&repImagesDir, "images-dir", "", "directory to save rendered visualizations as PNG")
	reportCmd.Flags().BoolVar(&repQuiet, "quiet", false, "suppress non-essential output")
	reportCmd.Flags().BoolVar(&repJSON, "json", false, "emit the report as JSON to stdout")
	reportCmd.Flags().BoolVar(&repStream, "stream", false, "stream the report as it is written if supported by the provider")
	reportCmd.Flags().StringVar(&repOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	reportCmd.Flags().IntVar(&repTimeoutSec, "timeout-sec", 180, "request timeout in seconds (default 180)")
}
