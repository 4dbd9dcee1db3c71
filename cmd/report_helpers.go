package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/scoutdeck-cli/internal/ai"
	"github.com/KaramelBytes/scoutdeck-cli/internal/audit"
	"github.com/KaramelBytes/scoutdeck-cli/internal/codesafety"
	cfgpkg "github.com/KaramelBytes/scoutdeck-cli/internal/config"
	"github.com/KaramelBytes/scoutdeck-cli/internal/pipeline"
	"github.com/KaramelBytes/scoutdeck-cli/internal/sandbox"
	"github.com/KaramelBytes/scoutdeck-cli/internal/schema"
	"github.com/KaramelBytes/scoutdeck-cli/internal/table"
	"github.com/KaramelBytes/scoutdeck-cli/internal/utils"
	"github.com/KaramelBytes/scoutdeck-cli/internal/validate"
)

// providerAliases maps accepted --provider values onto registered runtimes.
var providerAliases = map[string]string{
	"openrouter": ai.ProviderOpenRouter,
	"openai":     ai.ProviderOpenAI,
	"ollama":     ai.ProviderOllama,
	"local":      ai.ProviderOllama,
}

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	httpTimeout := 180 * time.Second
	retryMax := 1
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := strings.ToLower(strings.TrimSpace(opts.ProviderFlag))
	if providerName == "" && cfg != nil && cfg.DefaultProvider != "" {
		providerName = strings.ToLower(cfg.DefaultProvider)
	}
	if providerName == "" {
		providerName = ai.ProviderOpenRouter
	}
	resolved, ok := providerAliases[providerName]
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (use openrouter, openai or ollama)", providerName)
	}
	providerName = resolved

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		APIKey:      resolveAPIKey(cfg),
	}
	switch providerName {
	case ai.ProviderOpenAI:
		if cfg != nil {
			rc.BaseURL = cfg.OpenAIBaseURL
		}
	case ai.ProviderOllama:
		rc.Host = resolveOllamaHost(cfg, opts.OllamaHost)
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s", providerName)
	}
	return client, providerName, nil
}

// resolveAPIKey prefers the environment over the config file.
func resolveAPIKey(cfg *cfgpkg.Global) string {
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); v != "" {
		return v
	}
	if cfg != nil {
		return strings.TrimSpace(cfg.APIKey)
	}
	return ""
}

func resolveOllamaHost(cfg *cfgpkg.Global, flag string) string {
	host := strings.TrimSpace(flag)
	if host == "" {
		host = os.Getenv("SCOUTDECK_OLLAMA_HOST")
	}
	if host == "" && cfg != nil && cfg.OllamaHost != "" {
		host = cfg.OllamaHost
	}
	if host == "" {
		host = ai.DefaultOllamaHost
	}
	return host
}

// buildExecutor configures the snippet executor from config.
func buildExecutor(cfg *cfgpkg.Global, logger *zap.Logger) (*sandbox.Executor, error) {
	exec := sandbox.New(logger.Named("sandbox"))
	if cfg == nil {
		return exec, nil
	}
	profile, err := codesafety.ParseProfile(cfg.SafetyProfile)
	if err != nil {
		return nil, err
	}
	exec.Gate = codesafety.NewGate(profile)
	if cfg.ExecTimeoutSec > 0 {
		exec.Timeout = time.Duration(cfg.ExecTimeoutSec) * time.Second
	}
	if cfg.MaxCodeLength > 0 {
		exec.MaxCodeLength = cfg.MaxCodeLength
	}
	if cfg.DPI > 0 {
		exec.DPI = cfg.DPI
	}
	return exec, nil
}

// loadTable reads, validates, sanitizes and normalizes one CSV the way a
// report run does.
func loadTable(path string) (*table.Table, []string, *audit.Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	res := validate.File(filepath.Base(path), data, maxFileSizeMB())
	if err := res.Err(); err != nil {
		return nil, nil, nil, err
	}
	clean, removed := table.Sanitize(res.Table, logger)
	log := audit.New(logger)
	return schema.Normalize(clean, schema.DefaultAliases, log), removed, log, nil
}

func maxFileSizeMB() int {
	if cfg != nil && cfg.MaxFileSizeMB > 0 {
		return cfg.MaxFileSizeMB
	}
	return validate.DefaultMaxFileSizeMB
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return ai.DefaultModel
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("✗ Estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

type streamingOptions struct {
	Enabled     bool
	Quiet       bool
	PrintPrompt bool
	Prompt      string
	Writer      io.Writer
	DeltaWriter io.Writer
}

// handleStreaming returns the fragment callback for a run. It is nil when
// output is not streamed live, either by choice or because the runtime
// cannot stream.
func handleStreaming(runtime ai.Runtime, opts streamingOptions) (func(string), bool) {
	if !opts.Enabled {
		return nil, false
	}

	logWriter := opts.Writer
	if logWriter == nil {
		logWriter = os.Stdout
	}
	deltaWriter := opts.DeltaWriter
	if deltaWriter == nil {
		deltaWriter = os.Stdout
	}

	if _, ok := runtime.(ai.StreamRuntime); !ok {
		if !opts.Quiet {
			fmt.Fprintln(logWriter, "⚠ Streaming not supported for this provider; falling back to non-streaming.")
		}
		return nil, false
	}

	if opts.PrintPrompt && !opts.Quiet {
		fmt.Fprintln(logWriter, "\n--print-prompt: sending the following prompt --")
		fmt.Fprintln(logWriter, opts.Prompt)
	}
	if !opts.Quiet {
		fmt.Fprintln(logWriter, "(streaming)")
	}
	return func(delta string) {
		if !ai.IsErrorFragment(delta) {
			fmt.Fprint(deltaWriter, delta)
		}
	}, true
}

// explainGenerationError turns a runtime error into a user-facing hint.
func explainGenerationError(err error, providerName, model string, tokens int) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		cwErr   *ai.ContextWindowError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.As(err, &unreach):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running (see https://ollama.com) and host is correct. You can set SCOUTDECK_OLLAMA_HOST or config 'ollama_host'. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: set OPENROUTER_API_KEY or add openrouter_api_key in config (~/.scoutdeck/config.yaml): %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name or list models via 'scoutdeck models list': %w", model, err)
	case errors.As(err, &cwErr):
		return fmt.Errorf("prompt (~%d tokens) does not fit the context window of %s. Pick a subject to narrow the rows or use a larger model: %w", tokens, model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a smaller file or another model: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	default:
		return fmt.Errorf("generation failed: %w", err)
	}
}

type outputOptions struct {
	JSON         bool
	Quiet        bool
	Streamed     bool
	RunID        string
	ReportType   string
	Subject      string
	FileType     string
	Model        string
	Temperature  float64
	PromptTokens int
	Warnings     []string
	Corrections  []string
	Images       []imageRecord
	OutputPath   string
	OutputFormat string
	Writer       io.Writer
}

type imageRecord struct {
	Block   int    `json:"block"`
	OK      bool   `json:"ok"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

func (o outputOptions) document(content string) map[string]any {
	return map[string]any{
		"run_id":         o.RunID,
		"report_type":    o.ReportType,
		"subject":        o.Subject,
		"file_type":      o.FileType,
		"model":          o.Model,
		"temperature":    o.Temperature,
		"prompt_tokens":  o.PromptTokens,
		"warnings":       o.Warnings,
		"corrections":    o.Corrections,
		"visualizations": o.Images,
		"content":        content,
	}
}

func formatAndWriteOutput(content string, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	switch {
	case opts.JSON:
		b, err := utils.PrettyJSON(opts.document(content))
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(w, string(b))
	case opts.Streamed:
		// already on screen
	case opts.Quiet:
		fmt.Fprintln(w, content)
	default:
		fmt.Fprintln(w, "\n=== AI Response ===")
		fmt.Fprintln(w, content)
	}

	if opts.OutputPath == "" {
		return nil
	}

	var data []byte
	switch opts.OutputFormat {
	case "", "text", "markdown", "md":
		data = []byte(content)
	case "json":
		b, err := utils.PrettyJSON(opts.document(content))
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		data = b
	default:
		return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", opts.OutputFormat)
	}
	if err := utils.SafeWriteFile(opts.OutputPath, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if !opts.Quiet {
		fmt.Fprintf(w, "\n💾 Saved output to %s\n", opts.OutputPath)
	}
	return nil
}

// writeImages saves successful visualizations as <base>_viz<N>.png under dir.
// Failed blocks are recorded with their message. An empty dir records
// results without writing anything.
func writeImages(blocks []pipeline.Block, dir, base string) ([]imageRecord, error) {
	base = strings.TrimSuffix(base, filepath.Ext(base))
	records := make([]imageRecord, 0, len(blocks))
	for i, b := range blocks {
		rec := imageRecord{Block: i + 1, OK: b.Result.OK}
		if !b.Result.OK {
			rec.Message = b.Result.Message
			records = append(records, rec)
			continue
		}
		if dir != "" {
			rec.Path = filepath.Join(dir, fmt.Sprintf("%s_viz%d.png", base, i+1))
			if err := utils.SafeWriteFile(rec.Path, b.Result.Image); err != nil {
				return records, fmt.Errorf("write image: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// printCorrections renders the correction summary shown after a run.
func printCorrections(w io.Writer, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "\n🔧 Auto-corrections applied (%d)\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
