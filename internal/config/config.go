// Package config loads FoodieBot configuration from a YAML file with
// environment variable overrides. A missing config file is not an error;
// defaults keep the system fully functional offline (the LLM provider is
// simply left unconfigured and every call path falls back deterministically).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all FoodieBot configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configures the external intent/reply service.
	LLM LLMConfig `yaml:"llm"`

	// Storage configures the catalog and analytics databases.
	Storage StorageConfig `yaml:"storage"`

	// Recommend configures the ranking stage.
	Recommend RecommendConfig `yaml:"recommend"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Logging configures zap output.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the external language-model service.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // groq, gemini
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	Timeout   string `yaml:"timeout"`
	MaxRetry  int    `yaml:"max_retry"`  // retries after the first attempt
	MaxTokens int    `yaml:"max_tokens"` // reply token budget
}

// StorageConfig configures the sqlite databases.
type StorageConfig struct {
	CatalogPath   string `yaml:"catalog_path"`
	AnalyticsPath string `yaml:"analytics_path"`
	SeedPath      string `yaml:"seed_path"`  // product seed file (JSON)
	WatchSeed     bool   `yaml:"watch_seed"` // hot-reload seed file in serve mode
}

// RecommendConfig configures candidate selection.
type RecommendConfig struct {
	CandidateCap int `yaml:"candidate_cap"` // max rows fetched per catalog query
	DefaultLimit int `yaml:"default_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "FoodieBot",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider:  "groq",
			Model:     "llama-3.1-8b-instant",
			BaseURL:   "https://api.groq.com/openai/v1",
			Timeout:   "20s",
			MaxRetry:  1,
			MaxTokens: 300,
		},

		Storage: StorageConfig{
			CatalogPath:   "data/foodie_products.db",
			AnalyticsPath: "data/analytics.db",
			SeedPath:      "data/products.json",
		},

		Recommend: RecommendConfig{
			CandidateCap: 200,
			DefaultLimit: 6,
		},

		Server: ServerConfig{
			Addr:            ":8000",
			ShutdownTimeout: "10s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM API key from environment (checked in priority order).
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "groq"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if model := os.Getenv("GROQ_MODEL"); model != "" {
		c.LLM.Model = model
	}

	// Database paths from environment.
	if path := os.Getenv("FOODIE_DB"); path != "" {
		c.Storage.CatalogPath = path
	}
	if path := os.Getenv("ANALYTICS_DB"); path != "" {
		c.Storage.AnalyticsPath = path
	}

	if addr := os.Getenv("FOODIE_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// LLMTimeout returns the LLM call timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// ServerShutdownTimeout returns the graceful shutdown budget as a duration.
func (c *Config) ServerShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
