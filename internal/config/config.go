// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds all application configuration.
type Config struct {
	Port               string   `env:"PORT" envDefault:"8080"`
	FrontendURL        string   `env:"FRONTEND_URL"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	// MaxRequestBodyBytes caps the body of POST /api/chat.
	MaxRequestBodyBytes int64 `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`

	Database        DatabaseConfig
	History         HistoryConfig
	LLM             LLMConfig
	ConversationLog ConversationLogConfig
	Telemetry       TelemetryConfig
}

// DatabaseConfig selects and locates the store.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
	Path   string `env:"DB_PATH" envDefault:"./data/tutor.db"`
	URL    string `env:"DATABASE_URL"`
}

// HistoryConfig controls the prompt window and message retention.
type HistoryConfig struct {
	Limit int `env:"HISTORY_LIMIT" envDefault:"20"`
	// Retention of zero keeps messages forever. Sweeping is opt-in.
	Retention time.Duration `env:"HISTORY_RETENTION" envDefault:"0"`
	Interval  time.Duration `env:"RETENTION_INTERVAL" envDefault:"1h"`
}

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider           string        `env:"LLM_PROVIDER" envDefault:"gemini"`
	Model              string        `env:"LLM_MODEL"`
	Timeout            time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	GeminiAPIKey       string        `env:"GEMINI_API_KEY"`
	GeminiBaseURL      string        `env:"GEMINI_BASE_URL"`
	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey    string        `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL   string        `env:"ANTHROPIC_BASE_URL"`
	OllamaServerURL    string        `env:"OLLAMA_SERVER_URL"`
	QualityPhrasesPath string        `env:"QUALITY_PHRASES_PATH"`
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool   `env:"CONVERSATION_LOG_ENABLED" envDefault:"true"`
	Dir       string `env:"CONVERSATION_LOG_DIR" envDefault:"./data/logs/conversations"`
	QueueSize int    `env:"CONVERSATION_LOG_QUEUE_SIZE" envDefault:"1000"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SamplerRatio float64 `env:"OTEL_SAMPLER_RATIO" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return errors.New("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.History.Limit <= 0 {
		return errors.New("HISTORY_LIMIT must be > 0")
	}
	if c.History.Retention < 0 {
		return errors.New("HISTORY_RETENTION cannot be negative")
	}
	if c.History.Retention > 0 && c.History.Interval <= 0 {
		return errors.New("RETENTION_INTERVAL must be > 0")
	}

	if c.LLM.Timeout <= 0 {
		return errors.New("LLM_TIMEOUT must be > 0")
	}
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
	case "ollama":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}

	if c.ConversationLog.Enabled {
		if c.ConversationLog.Dir == "" {
			return errors.New("CONVERSATION_LOG_DIR cannot be empty")
		}
		if c.ConversationLog.QueueSize <= 0 {
			return errors.New("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
		}
	}

	if c.Telemetry.SamplerRatio < 0 || c.Telemetry.SamplerRatio > 1 {
		return errors.New("OTEL_SAMPLER_RATIO must be within [0,1]")
	}
	return nil
}

// APIKey returns the key of the selected provider.
func (c *LLMConfig) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "ollama":
		return ""
	default:
		return c.GeminiAPIKey
	}
}

// BaseURL returns the endpoint override of the selected provider.
func (c *LLMConfig) BaseURL() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIBaseURL
	case "anthropic":
		return c.AnthropicBaseURL
	case "ollama":
		return c.OllamaServerURL
	default:
		return c.GeminiBaseURL
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// Environment names the deployment for telemetry resources.
func (c *Config) Environment() string {
	if c.IsDevelopment() {
		return "development"
	}
	return "production"
}

// ParseLogLevel maps LOG_LEVEL to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}
