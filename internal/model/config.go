package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config is the complete engine configuration
type Config struct {
	LogLevel       string               `yaml:"log_level" mapstructure:"log_level"`
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	LLM            LLMConfig            `yaml:"llm" mapstructure:"llm"`
	Categorization CategorizationConfig `yaml:"categorization" mapstructure:"categorization"`
	Engine         EngineConfig         `yaml:"engine" mapstructure:"engine"`
	Output         OutputConfig         `yaml:"output" mapstructure:"output"`
}

// StoreConfig selects the vote/profile store backend
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty" mapstructure:"postgres_dsn"`
}

// LLMConfig configures the categorizer's text-classification provider
type LLMConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL    string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CategorizationConfig bounds the categorization pass
type CategorizationConfig struct {
	Workers                 int           `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond       float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize               int           `yaml:"burst_size" mapstructure:"burst_size"`
	MaxRetries              int           `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffBase             time.Duration `yaml:"backoff_base" mapstructure:"backoff_base"`
	CheckpointEvery         int           `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	ReaggregateAtCheckpoint bool          `yaml:"reaggregate_at_checkpoint" mapstructure:"reaggregate_at_checkpoint"`
	Force                   bool          `yaml:"force" mapstructure:"force"`
	CacheEnabled            bool          `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CacheDir                string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheTTL                time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// EngineConfig holds inputs that are configured rather than computed
type EngineConfig struct {
	Coalition       []string `yaml:"coalition" mapstructure:"coalition"`                 // Government parties; their line is aye
	PivotSampleSize int      `yaml:"pivot_sample_size" mapstructure:"pivot_sample_size"` // 0 = full membership
}

// OutputConfig controls rendering and exports
type OutputConfig struct {
	Format      string `yaml:"format" mapstructure:"format"` // text, json
	MetricsFile string `yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
	Verbose     bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".poldna")

	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(dataDir, "poldna.db"),
		},
		LLM: LLMConfig{
			Provider:  "", // Disabled by default
			Timeout:   30,
			MaxTokens: 200,
		},
		Categorization: CategorizationConfig{
			Workers:           min(runtime.NumCPU(), 4),
			RequestsPerSecond: 2,
			BurstSize:         2,
			MaxRetries:        3,
			BackoffBase:       time.Second,
			CheckpointEvery:   50,
			CacheEnabled:      true,
			CacheDir:          filepath.Join(dataDir, "cache"),
			CacheTTL:          30 * 24 * time.Hour,
		},
		Engine: EngineConfig{
			PivotSampleSize: 0,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}
