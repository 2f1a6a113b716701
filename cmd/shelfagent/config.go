package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// envKeyReplacer maps nested config keys to env var names, so
// openai.base_url becomes SHELFAGENT_OPENAI_BASE_URL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config is the full application configuration, populated from the
// config file, SHELFAGENT_* environment variables, and flags.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// GatePolicy selects how the execution gate treats skills after
	// the first execution: per_skill or strict_single.
	GatePolicy string `mapstructure:"gate_policy"`

	// Store selects the vector store backend: memory or sqlite.
	Store      string `mapstructure:"store"`
	SQLitePath string `mapstructure:"sqlite_path"`

	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	OpenLibrary OpenLibraryConfig `mapstructure:"openlibrary"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// OpenAIConfig configures the chat and embedding clients.
type OpenAIConfig struct {
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv      string `mapstructure:"api_key_env"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// APIKey resolves the API key from the configured environment variable.
func (c OpenAIConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// OpenLibraryConfig configures the book metadata client.
type OpenLibraryConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// TracingConfig configures OpenTelemetry trace export.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("host", "localhost")
	viper.SetDefault("port", 8080)
	viper.SetDefault("gate_policy", "per_skill")
	viper.SetDefault("store", "memory")
	viper.SetDefault("openai.api_key_env", "OPENAI_API_KEY")
	viper.SetDefault("tracing.sampler", "always")
	viper.SetDefault("tracing.ratio", 0.1)
}

// loadConfig decodes the merged viper state into a typed Config.
func loadConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	return &cfg, nil
}
