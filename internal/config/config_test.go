package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.DefaultModel != "meta-llama/llama-3-70b-instruct" || c.Temperature != 0.7 {
		t.Fatalf("unexpected model defaults: %+v", c)
	}
	if c.HTTPTimeoutSec != 180 || c.RetryMaxAttempts != 1 {
		t.Fatalf("unexpected transport defaults: %+v", c)
	}
	if c.SafetyProfile != "narrow" || c.MaxCodeLength != 5000 || c.ExecTimeoutSec != 30 || c.DPI != 150 || c.MaxFileSizeMB != 50 {
		t.Fatalf("unexpected pipeline defaults: %+v", c)
	}
	if c.LogLevel != "warn" || c.LogFormat != "console" {
		t.Fatalf("unexpected logging defaults: %+v", c)
	}
}

func TestLoadEnvOverridesAndFallbackKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	t.Setenv("SCOUTDECK_SAFETY_PROFILE", "strict")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.APIKey != "sk-or-env" {
		t.Fatalf("expected OPENROUTER_API_KEY fallback, got %q", c.APIKey)
	}
	if c.SafetyProfile != "strict" {
		t.Fatalf("expected env override, got %q", c.SafetyProfile)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("OPENROUTER_API_KEY", "")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load missing file: %v", err)
	}
	if err := c.Set("dpi", "96"); err != nil {
		t.Fatalf("Set dpi: %v", err)
	}
	if err := c.Set("openrouter_api_key", "sk-or-file"); err != nil {
		t.Fatalf("Set key: %v", err)
	}
	if err := Save(c, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.DPI != 96 || again.APIKey != "sk-or-file" {
		t.Fatalf("values not persisted: %+v", again)
	}
}

func TestSetValidates(t *testing.T) {
	c := &Global{}
	for key, val := range map[string]string{
		"nope":             "1",
		"safety_profile":   "loose",
		"max_code_length":  "-1",
		"temperature":      "warm",
		"models_auto_sync": "maybe",
		"log_format":       "xml",
	} {
		if err := c.Set(key, val); err == nil {
			t.Errorf("expected error for %s=%s", key, val)
		}
	}
	if err := c.Set("LOG_LEVEL", "DEBUG"); err != nil || c.LogLevel != "debug" {
		t.Fatalf("case-insensitive set failed: %v %q", err, c.LogLevel)
	}
}
