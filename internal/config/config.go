package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Provider identifiers selectable via AI_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderQwen   = "qwen"
)

// Config holds all configuration for the relay-api service.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"relay-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// OpenTelemetry
	EnableTracing bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`

	// Shared store. When empty the service falls back to a process-local
	// store, which is not suitable for multi-instance deployments.
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// Access control
	AccessPassword string        `env:"ACCESS_PASSWORD" envDefault:""`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"30s"`

	// Session limits
	SessionTimeLimit time.Duration `env:"SESSION_TIME_LIMIT" envDefault:"300s"`
	DailyUserLimit   time.Duration `env:"DAILY_USER_LIMIT" envDefault:"3600s"`
	MaxMessageSize   int           `env:"MAX_MESSAGE_SIZE" envDefault:"1048576"`

	// CORS (comma-separated origins; empty = same-origin only)
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:""`

	// Conversation backend selection
	Provider string `env:"AI_PROVIDER" envDefault:"gemini"`

	// Gemini Live (Vertex AI)
	ProjectID string `env:"PROJECT_ID" envDefault:""`
	Location  string `env:"LOCATION" envDefault:"us-central1"`
	Model     string `env:"MODEL" envDefault:"gemini-live-2.5-flash-native-audio"`

	// Qwen Omni realtime (DashScope)
	DashScopeAPIKey string `env:"DASHSCOPE_API_KEY" envDefault:""`
	QwenModel       string `env:"QWEN_MODEL" envDefault:"qwen3-omni-flash-realtime"`
	QwenRegion      string `env:"QWEN_REGION" envDefault:"intl"`

	// Media settings
	InputSampleRate   int           `env:"INPUT_SAMPLE_RATE" envDefault:"16000"`
	KeepaliveInterval time.Duration `env:"KEEPALIVE_INTERVAL" envDefault:"15s"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	switch cfg.Provider {
	case ProviderGemini:
		if strings.TrimSpace(cfg.ProjectID) == "" {
			return nil, fmt.Errorf("PROJECT_ID is required when AI_PROVIDER is %q", ProviderGemini)
		}
	case ProviderQwen:
		if strings.TrimSpace(cfg.DashScopeAPIKey) == "" {
			return nil, fmt.Errorf("DASHSCOPE_API_KEY is required when AI_PROVIDER is %q", ProviderQwen)
		}
		if cfg.QwenRegion != "intl" && cfg.QwenRegion != "cn" {
			return nil, fmt.Errorf("QWEN_REGION must be \"intl\" or \"cn\", got %q", cfg.QwenRegion)
		}
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.Provider)
	}

	if cfg.SessionTimeLimit <= 0 {
		return nil, fmt.Errorf("SESSION_TIME_LIMIT must be positive")
	}
	if cfg.MaxMessageSize <= 0 {
		return nil, fmt.Errorf("MAX_MESSAGE_SIZE must be positive")
	}

	// Trim stray whitespace from the origin list.
	origins := cfg.CORSOrigins[:0]
	for _, o := range cfg.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSOrigins = origins

	return cfg, nil
}

// Addr returns the HTTP server address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
