package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Localizer LocalizerConfig           `mapstructure:"localizer"`
	Codebase  CodebaseConfig            `mapstructure:"codebase"`
	Trace     TraceConfig               `mapstructure:"trace"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Server    ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents completion backend configuration such as OpenAI, Anthropic, or Ollama.
type ProviderConfig struct {
	Type      string        `mapstructure:"type"`       // openai, openrouter, vllm, lmstudio, custom, anthropic, ollama
	BaseURL   string        `mapstructure:"base_url"`   // API base URL
	APIKey    string        `mapstructure:"api_key"`    // optional API key
	Timeout   time.Duration `mapstructure:"timeout"`    // request timeout
	MaxTokens int           `mapstructure:"max_tokens"` // optional provider-level token cap
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
}

// LocalizerConfig describes the fault localization loop.
type LocalizerConfig struct {
	Model         string  `mapstructure:"model"`
	MaxIterations int     `mapstructure:"max_iterations"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Temperature   float64 `mapstructure:"temperature"`
}

// CodebaseConfig controls the local source index answering tool calls.
type CodebaseConfig struct {
	SourceRoot     string   `mapstructure:"source_root"`
	Extensions     []string `mapstructure:"extensions"`
	CandidateLimit int      `mapstructure:"candidate_limit"`
	MaxFiles       int      `mapstructure:"max_files"`
	MaxFileBytes   int      `mapstructure:"max_file_bytes"`
	Workers        int      `mapstructure:"workers"`
}

// TraceConfig controls where per-bug trace logs are written.
type TraceConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: GENLOC_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GENLOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("localizer.model", "")
	v.SetDefault("localizer.max_iterations", 10)
	v.SetDefault("localizer.max_tokens", 0)
	v.SetDefault("localizer.temperature", 0)

	v.SetDefault("codebase.source_root", ".")
	v.SetDefault("codebase.extensions", []string{".java"})
	v.SetDefault("codebase.candidate_limit", 50)
	v.SetDefault("codebase.max_files", 20000)
	v.SetDefault("codebase.max_file_bytes", 512*1024)
	v.SetDefault("codebase.workers", 8)

	v.SetDefault("trace.dir", "traces")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	var defaultFound bool
	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("provider %q must define type", name)
		}
	}

	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}

		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}

		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}

		if m.Default {
			defaultFound = true
		}
	}

	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	if model := strings.TrimSpace(c.Localizer.Model); model != "" {
		if _, ok := c.Models[model]; !ok {
			return fmt.Errorf("localizer references unknown model %q", model)
		}
	}
	// The None policy lands on max_iterations-2, so anything below 2 leaves no room for it.
	if c.Localizer.MaxIterations < 2 {
		return errors.New("localizer.max_iterations must be >= 2")
	}
	if c.Localizer.MaxTokens < 0 {
		return errors.New("localizer.max_tokens must be >= 0")
	}
	if c.Localizer.Temperature < 0 || c.Localizer.Temperature > 2 {
		return errors.New("localizer.temperature must be within [0,2]")
	}

	if c.Codebase.CandidateLimit < 0 {
		return errors.New("codebase.candidate_limit must be >= 0")
	}
	if c.Codebase.MaxFiles < 0 {
		return errors.New("codebase.max_files must be >= 0")
	}
	if c.Codebase.MaxFileBytes < 0 {
		return errors.New("codebase.max_file_bytes must be >= 0")
	}
	if c.Codebase.Workers < 0 {
		return errors.New("codebase.workers must be >= 0")
	}

	if strings.TrimSpace(c.Trace.Dir) == "" {
		return errors.New("trace.dir must be set")
	}

	return nil
}
