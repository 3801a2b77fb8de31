package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/poldna/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envKeys are bound explicitly so Unmarshal sees them without a config file
var envKeys = []string{
	"log_level",
	"store.driver", "store.sqlite_path", "store.postgres_dsn",
	"llm.provider", "llm.model", "llm.api_key", "llm.base_url", "llm.timeout", "llm.max_tokens",
	"llm.http_proxy", "llm.https_proxy", "llm.no_proxy",
	"categorization.workers", "categorization.requests_per_second", "categorization.burst_size",
	"categorization.max_retries", "categorization.backoff_base", "categorization.checkpoint_every",
	"categorization.reaggregate_at_checkpoint", "categorization.force",
	"categorization.cache_enabled", "categorization.cache_dir", "categorization.cache_ttl",
	"engine.coalition", "engine.pivot_sample_size",
	"output.format", "output.metrics_file", "output.verbose",
}

// loadConfig layers v's settings over the defaults, then fills provider
// credentials from their conventional environment variables
func loadConfig(v *viper.Viper, getenv func(string) string) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyProviderEnv(&cfg.LLM, getenv)
	return cfg, nil
}

func applyProviderEnv(c *model.LLMConfig, getenv func(string) string) {
	switch c.Provider {
	case "openai":
		if c.APIKey == "" {
			c.APIKey = getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if c.APIKey == "" {
			c.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if c.BaseURL == "" {
			c.BaseURL = getenv("OLLAMA_BASE_URL")
		}
	}
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage poldna configuration",
	Long: `Manage poldna configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (POLDNA_*)
3. Config file (~/.poldna/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file, env vars and flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), os.Getenv)
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		_, _ = fmt.Fprintln(out, "  Current Configuration")
		_, _ = fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, string(yamlData))
		if cfg.LLM.APIKey != "" {
			_, _ = fmt.Fprintln(out, "# llm api key: set (hidden)")
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.poldna/config.yaml with every option present.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}
		configPath := filepath.Join(home, ".poldna", "config.yaml")

		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		_, _ = fmt.Fprintf(out, "\nTo view the configuration:\n  poldna config show\n")
		return nil
	},
}

// writeDefaultConfig writes the defaults as commented YAML. It refuses to
// overwrite an existing file.
func writeDefaultConfig(path string) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'poldna config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	header := `# poldna configuration file
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (POLDNA_*, e.g. POLDNA_STORE_DRIVER=memory)
#   3. This config file
#   4. Built-in defaults

`
	footer := `
# API keys are never written here. Export them instead:
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export OLLAMA_BASE_URL=http://localhost:11434
`
	for _, chunk := range [][]byte{[]byte(header), yamlData, []byte(footer)} {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
