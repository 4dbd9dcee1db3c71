package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/scoutdeck-cli/internal/ai"
	"github.com/KaramelBytes/scoutdeck-cli/internal/codesafety"
	cfgpkg "github.com/KaramelBytes/scoutdeck-cli/internal/config"
	"github.com/KaramelBytes/scoutdeck-cli/internal/pipeline"
	"github.com/KaramelBytes/scoutdeck-cli/internal/sandbox"
	"go.uber.org/zap"
)

type stubRuntime struct{}

func (stubRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return nil, nil
}

type stubStreamRuntime struct{ stubRuntime }

func (s *stubStreamRuntime) GenerateStream(ctx context.Context, req ai.GenerateRequest, onDelta func(string)) error {
	onDelta("chunk")
	return nil
}

func TestSelectModelPrecedence(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultModel: "cfg-model"}

	if got := selectModel(cfg, "cli-model"); got != "cli-model" {
		t.Fatalf("expected CLI model, got %q", got)
	}
	if got := selectModel(cfg, ""); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	cfg.DefaultModel = ""
	if got := selectModel(cfg, ""); got != ai.DefaultModel {
		t.Fatalf("expected fallback model, got %q", got)
	}
	if got := selectModel(nil, ""); got != ai.DefaultModel {
		t.Fatalf("expected fallback model without config, got %q", got)
	}
}

func TestEnforceBudget(t *testing.T) {
	if err := enforceBudget(0.0, 1.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enforceBudget(0.5, 0); err != nil {
		t.Fatalf("no limit should never fail: %v", err)
	}
	if err := enforceBudget(2.0, 1.0); err == nil {
		t.Fatal("expected error when cost exceeds budget")
	}
}

func TestHandleStreamingHappyPath(t *testing.T) {
	buf := &bytes.Buffer{}
	delta := &bytes.Buffer{}

	onFragment, streamed := handleStreaming(&stubStreamRuntime{}, streamingOptions{
		Enabled:     true,
		PrintPrompt: true,
		Prompt:      "example",
		Writer:      buf,
		DeltaWriter: delta,
	})
	if !streamed || onFragment == nil {
		t.Fatal("expected streaming to be handled")
	}
	onFragment("## Overview\n")
	onFragment("❌ Error generating report: boom")
	if got := delta.String(); got != "## Overview\n" {
		t.Fatalf("expected only report text in delta output, got %q", got)
	}
	out := buf.String()
	if !strings.Contains(out, "(streaming)") || !strings.Contains(out, "example") {
		t.Fatalf("expected streaming log output, got %q", out)
	}
}

func TestHandleStreamingFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	onFragment, streamed := handleStreaming(stubRuntime{}, streamingOptions{Enabled: true, Writer: buf})
	if streamed || onFragment != nil {
		t.Fatal("expected fallback to non-streaming")
	}
	if out := buf.String(); !strings.Contains(out, "Streaming not supported") {
		t.Fatalf("expected fallback message, got %q", out)
	}

	buf.Reset()
	if _, streamed := handleStreaming(&stubStreamRuntime{}, streamingOptions{Writer: buf}); streamed {
		t.Fatal("streaming disabled should not stream")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output when disabled, got %q", buf.String())
	}
}

func TestBuildRuntimeDefaults(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultProvider: "local", OllamaHost: "http://example"}
	client, provider, err := buildRuntime(cfg, runtimeOptions{})
	if err != nil {
		t.Fatalf("buildRuntime error: %v", err)
	}
	if provider != ai.ProviderOllama {
		t.Fatalf("expected ollama provider, got %q", provider)
	}
	if client == nil {
		t.Fatal("expected runtime client")
	}

	for _, name := range []string{"", "openrouter", "OpenAI", "ollama"} {
		client, _, err := buildRuntime(nil, runtimeOptions{ProviderFlag: name})
		if err != nil || client == nil {
			t.Fatalf("provider %q: client=%v err=%v", name, client, err)
		}
	}
	if _, _, err := buildRuntime(nil, runtimeOptions{ProviderFlag: "anthropic"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestResolveOllamaHost(t *testing.T) {
	t.Setenv("SCOUTDECK_OLLAMA_HOST", "")
	if got := resolveOllamaHost(nil, ""); got != ai.DefaultOllamaHost {
		t.Fatalf("expected default host, got %q", got)
	}
	cfg := &cfgpkg.Global{OllamaHost: "http://cfg:11434"}
	if got := resolveOllamaHost(cfg, ""); got != "http://cfg:11434" {
		t.Fatalf("expected config host, got %q", got)
	}
	t.Setenv("SCOUTDECK_OLLAMA_HOST", "http://env:11434")
	if got := resolveOllamaHost(cfg, ""); got != "http://env:11434" {
		t.Fatalf("expected env host, got %q", got)
	}
	if got := resolveOllamaHost(cfg, "http://flag:11434"); got != "http://flag:11434" {
		t.Fatalf("expected flag host, got %q", got)
	}
}

func TestResolveAPIKeyPrefersEnv(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	cfg := &cfgpkg.Global{APIKey: " sk-or-config "}
	if got := resolveAPIKey(cfg); got != "sk-or-config" {
		t.Fatalf("expected config key, got %q", got)
	}
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	if got := resolveAPIKey(cfg); got != "sk-or-env" {
		t.Fatalf("expected env key, got %q", got)
	}
}

func TestBuildExecutorFromConfig(t *testing.T) {
	exec, err := buildExecutor(&cfgpkg.Global{SafetyProfile: "strict", ExecTimeoutSec: 5, MaxCodeLength: 100, DPI: 72}, zap.NewNop())
	if err != nil {
		t.Fatalf("buildExecutor error: %v", err)
	}
	if exec.Gate.Profile() != codesafety.ProfileStrict {
		t.Fatalf("expected strict gate, got %q", exec.Gate.Profile())
	}
	if exec.Timeout != 5*time.Second || exec.MaxCodeLength != 100 || exec.DPI != 72 {
		t.Fatalf("config not applied: %+v", exec)
	}
	if _, err := buildExecutor(&cfgpkg.Global{SafetyProfile: "lenient"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestExplainGenerationError(t *testing.T) {
	api := &ai.APIError{StatusCode: 401, Message: "bad key"}
	cases := []struct {
		err  error
		want string
	}{
		{&ai.AuthError{APIError: api}, "authentication failed"},
		{&ai.RateLimitError{APIError: api, RetryAfter: 3 * time.Second}, "try again in ~3s"},
		{&ai.ModelNotFoundError{APIError: api}, "scoutdeck models list"},
		{&ai.ContextWindowError{Model: "m", Tokens: 9000, Limit: 8192}, "context window"},
		{&ai.QuotaExceededError{APIError: api}, "quota/billing"},
		{&ai.ServerError{APIError: api}, "server error"},
		{&ai.UnreachableError{Host: "http://x"}, "endpoint unreachable"},
		{errors.New("boom"), "generation failed: boom"},
	}
	for _, tc := range cases {
		got := explainGenerationError(tc.err, ai.ProviderOpenRouter, "m", 9000)
		if !strings.Contains(got.Error(), tc.want) {
			t.Errorf("%T: expected %q in %q", tc.err, tc.want, got.Error())
		}
		if !errors.Is(got, tc.err) {
			t.Errorf("%T: hint should wrap the original error", tc.err)
		}
	}
	got := explainGenerationError(&ai.UnreachableError{Host: "http://127.0.0.1:11434"}, ai.ProviderOllama, "llama3", 0)
	if !strings.Contains(got.Error(), "Ollama not reachable at http://127.0.0.1:11434") {
		t.Fatalf("expected ollama hint, got %q", got)
	}
}

func TestFormatAndWriteOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "out.txt")
	buf := &bytes.Buffer{}
	if err := formatAndWriteOutput("content", outputOptions{
		ReportType:   "Player Report",
		Subject:      "Saka",
		Model:        "model",
		Temperature:  0.5,
		PromptTokens: 4,
		OutputPath:   path,
		OutputFormat: "text",
		Writer:       buf,
	}); err != nil {
		t.Fatalf("formatAndWriteOutput error: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "=== AI Response ===") || !strings.Contains(out, "Saved output to") {
		t.Fatalf("expected formatted output, got %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output file: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("unexpected file content: %q", string(data))
	}
}

func TestFormatAndWriteOutputJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	err := formatAndWriteOutput("report body", outputOptions{
		JSON:    true,
		Quiet:   true,
		RunID:   "run-1",
		Subject: "Arsenal",
		Images:  []imageRecord{{Block: 1, OK: false, Message: "Code blocked for security reasons: x"}},
		Writer:  buf,
	})
	if err != nil {
		t.Fatalf("formatAndWriteOutput error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"run_id": "run-1"`, `"subject": "Arsenal"`, `"content": "report body"`, `"message": "Code blocked`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
	if err := formatAndWriteOutput("x", outputOptions{Quiet: true, OutputPath: filepath.Join(t.TempDir(), "x"), OutputFormat: "pdf", Writer: buf}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestWriteImages(t *testing.T) {
	dir := t.TempDir()
	blocks := []pipeline.Block{
		{Code: "a", Result: sandbox.Result{OK: true, Image: []byte("\x89PNG")}},
		{Code: "b", Result: sandbox.Result{Message: "Error executing code: boom"}},
	}
	recs, err := writeImages(blocks, dir, "match_report_the match.txt")
	if err != nil {
		t.Fatalf("writeImages error: %v", err)
	}
	if len(recs) != 2 || !recs[0].OK || recs[1].OK || recs[1].Message == "" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	want := filepath.Join(dir, "match_report_the match_viz1.png")
	if recs[0].Path != want {
		t.Fatalf("expected %s, got %s", want, recs[0].Path)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("image not written: %v", err)
	}

	recs, err = writeImages(blocks, "", "x.txt")
	if err != nil || recs[0].Path != "" {
		t.Fatalf("no dir should record without writing: %+v %v", recs, err)
	}
}

func TestPrintCorrections(t *testing.T) {
	buf := &bytes.Buffer{}
	printCorrections(buf, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
	printCorrections(buf, []string{"Column fix: 'minut' → 'minute'"})
	if out := buf.String(); !strings.Contains(out, "Auto-corrections applied (1)") || !strings.Contains(out, "'minut' → 'minute'") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestMask(t *testing.T) {
	if mask("") != "" || mask("short") != "******" {
		t.Fatal("unexpected mask of short values")
	}
	if got := mask("sk-or-v1-abcdef"); got != "sk-****def" {
		t.Fatalf("unexpected mask: %q", got)
	}
}
