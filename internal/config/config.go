package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".scoutdeck"

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"openrouter_api_key" yaml:"openrouter_api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Models catalog auto-sync
	ModelsCatalogURL string `mapstructure:"models_catalog_url" yaml:"models_catalog_url"`
	ModelsAutoSync   bool   `mapstructure:"models_auto_sync" yaml:"models_auto_sync"`
	ModelsMerge      bool   `mapstructure:"models_merge" yaml:"models_merge"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int    `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int    `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int    `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	OpenAIBaseURL    string `mapstructure:"openai_base_url" yaml:"openai_base_url"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Snippet execution and upload limits
	SafetyProfile  string  `mapstructure:"safety_profile" yaml:"safety_profile"`
	MaxCodeLength  int     `mapstructure:"max_code_length" yaml:"max_code_length"`
	ExecTimeoutSec int     `mapstructure:"exec_timeout_sec" yaml:"exec_timeout_sec"`
	DPI            float64 `mapstructure:"dpi" yaml:"dpi"`
	MaxFileSizeMB  int     `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("openrouter_api_key", "")
	v.SetDefault("models_catalog_url", "")
	v.SetDefault("default_model", "meta-llama/llama-3-70b-instruct")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("max_tokens", 0)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("models_auto_sync", false)
	v.SetDefault("models_merge", true)
	// HTTP/retry defaults; a report request is attempted once
	v.SetDefault("http_timeout_sec", 180)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("openai_base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("safety_profile", "narrow")
	v.SetDefault("max_code_length", 5000)
	v.SetDefault("exec_timeout_sec", 30)
	v.SetDefault("dpi", 150.0)
	v.SetDefault("max_file_size_mb", 50)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")
}

// Dir returns ~/.scoutdeck.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.scoutdeck/config.yaml, creating the directory if necessary.
// The file holds the API key, so it is owner-only.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
// OPENROUTER_API_KEY is honoured when no SCOUTDECK_ key is set.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOUTDECK")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// A missing file means defaults; a malformed one is an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return &c, nil
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	var keys []string
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(c *Global, val string) error{
	"openrouter_api_key":  func(c *Global, v string) error { c.APIKey = v; return nil },
	"default_model":       func(c *Global, v string) error { c.DefaultModel = v; return nil },
	"default_provider":    func(c *Global, v string) error { c.DefaultProvider = strings.ToLower(v); return nil },
	"max_tokens":          intSetter(func(c *Global) *int { return &c.MaxTokens }),
	"temperature":         floatSetter(func(c *Global) *float64 { return &c.Temperature }),
	"models_catalog_url":  func(c *Global, v string) error { c.ModelsCatalogURL = v; return nil },
	"models_auto_sync":    boolSetter(func(c *Global) *bool { return &c.ModelsAutoSync }),
	"models_merge":        boolSetter(func(c *Global) *bool { return &c.ModelsMerge }),
	"http_timeout_sec":    intSetter(func(c *Global) *int { return &c.HTTPTimeoutSec }),
	"retry_max_attempts":  intSetter(func(c *Global) *int { return &c.RetryMaxAttempts }),
	"retry_base_delay_ms": intSetter(func(c *Global) *int { return &c.RetryBaseDelayMs }),
	"retry_max_delay_ms":  intSetter(func(c *Global) *int { return &c.RetryMaxDelayMs }),
	"openai_base_url":     func(c *Global, v string) error { c.OpenAIBaseURL = v; return nil },
	"ollama_host":         func(c *Global, v string) error { c.OllamaHost = v; return nil },
	"safety_profile": func(c *Global, v string) error {
		v = strings.ToLower(v)
		if v != "narrow" && v != "strict" {
			return fmt.Errorf("safety_profile must be narrow or strict, got %q", v)
		}
		c.SafetyProfile = v
		return nil
	},
	"max_code_length":  intSetter(func(c *Global) *int { return &c.MaxCodeLength }),
	"exec_timeout_sec": intSetter(func(c *Global) *int { return &c.ExecTimeoutSec }),
	"dpi":              floatSetter(func(c *Global) *float64 { return &c.DPI }),
	"max_file_size_mb": intSetter(func(c *Global) *int { return &c.MaxFileSizeMB }),
	"log_level": func(c *Global, v string) error {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", v)
	},
	"log_format": func(c *Global, v string) error {
		switch strings.ToLower(v) {
		case "console", "json":
			c.LogFormat = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("log_format must be console or json, got %q", v)
	},
}

// Set assigns a string value to a known key, parsing numbers and bools.
func (c *Global) Set(key, val string) error {
	f, ok := setters[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(Keys(), ", "))
	}
	return f(c, val)
}

func intSetter(field func(*Global) *int) func(*Global, string) error {
	return func(c *Global, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid non-negative integer %q", v)
		}
		*field(c) = n
		return nil
	}
}

func floatSetter(field func(*Global) *float64) func(*Global, string) error {
	return func(c *Global, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid non-negative number %q", v)
		}
		*field(c) = f
		return nil
	}
}

func boolSetter(field func(*Global) *bool) func(*Global, string) error {
	return func(c *Global, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*field(c) = b
		return nil
	}
}
