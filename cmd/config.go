package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/scoutdeck-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/scoutdeck-cli/internal/config"
	"github.com/KaramelBytes/scoutdeck-cli/internal/validate"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set ScoutDeck configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		shown := *cfg
		shown.APIKey = mask(cfg.APIKey)
		b, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if key == "default_provider" {
			if _, ok := providerAliases[val]; !ok {
				return fmt.Errorf("invalid default_provider: %s (use openrouter, openai or ollama)", val)
			}
		}
		if err := cfg.Set(key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the API key with a one-token request",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, providerName, err := buildRuntime(cfg, runtimeOptions{})
		if err != nil {
			return err
		}
		key := resolveAPIKey(cfg)
		needsKey := ai.NeedsAPIKey(providerName)
		if needsKey {
			ok, msg := validate.APIKey(key)
			if !ok {
				return errors.New(msg)
			}
		}
		svc := ai.NewService(client, key, needsKey, logger.Named("ai"))
		svc.Model = selectModel(cfg, "")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := svc.ValidateKey(ctx); err != nil {
			return explainGenerationError(err, providerName, svc.Model, 0)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ API key validated (%s)\n", providerName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configSetCmd.Long = "Known keys:\n  " + strings.Join(cfgpkg.Keys(), "\n  ")
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
