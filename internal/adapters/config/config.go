package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"redteam/pkg/errors"
)

type Config struct {
	App           AppConfig
	AI            AIConfig
	Analysis      AnalysisConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Metrics       MetricsConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"redteam"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// AIConfig selects the model backend. Provider is one of anthropic, openrouter, gemini.
type AIConfig struct {
	Provider    string  `envconfig:"AI_PROVIDER" default:"anthropic"`
	Model       string  `envconfig:"AI_MODEL"`
	Temperature float64 `envconfig:"AI_TEMPERATURE" default:"0.7"`

	AnthropicKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicURL string `envconfig:"ANTHROPIC_API_URL" default:"https://api.anthropic.com/v1/messages"`

	OpenRouterKey     string `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	SiteURL           string `envconfig:"OPENROUTER_SITE_URL"`
	SiteName          string `envconfig:"OPENROUTER_SITE_NAME" default:"Strategic Red Team Analyzer"`

	GeminiKey string `envconfig:"GEMINI_API_KEY"`

	// Provider-side request budget; 0 disables the limiter
	ReqPerMinute float64 `envconfig:"AI_REQ_PER_MINUTE" default:"50"`
	Burst        int     `envconfig:"AI_BURST" default:"10"`
}

// APIKey returns the credential for the selected provider.
func (c AIConfig) APIKey() string {
	switch strings.ToLower(strings.TrimSpace(c.Provider)) {
	case "anthropic", "claude":
		return c.AnthropicKey
	case "openrouter":
		return c.OpenRouterKey
	case "gemini", "google":
		return c.GeminiKey
	default:
		return ""
	}
}

// AnalysisConfig holds the orchestration knobs. All durations are per call.
type AnalysisConfig struct {
	MaxRetries          int           `envconfig:"ANALYSIS_MAX_RETRIES" default:"3"`
	RequestTimeout      time.Duration `envconfig:"ANALYSIS_REQUEST_TIMEOUT" default:"60s"`
	PerspectiveTimeout  time.Duration `envconfig:"ANALYSIS_PERSPECTIVE_TIMEOUT" default:"45s"`
	RetryBaseDelay      time.Duration `envconfig:"ANALYSIS_RETRY_BASE_DELAY" default:"4s"`
	RetryMaxDelay       time.Duration `envconfig:"ANALYSIS_RETRY_MAX_DELAY" default:"10s"`
	RateLimitDelay      time.Duration `envconfig:"ANALYSIS_RATE_LIMIT_DELAY" default:"1s"`
	MaxConcurrency      int           `envconfig:"ANALYSIS_MAX_CONCURRENCY" default:"3"`
	PerspectiveTokens   int           `envconfig:"ANALYSIS_PERSPECTIVE_MAX_TOKENS" default:"2000"`
	SynthesisTokens     int           `envconfig:"ANALYSIS_SYNTHESIS_MAX_TOKENS" default:"6000"`
	SynthesisAttempts   int           `envconfig:"ANALYSIS_SYNTHESIS_ATTEMPTS" default:"3"`
	MinAnalysisLength   int           `envconfig:"ANALYSIS_MIN_LENGTH" default:"20"`
	MaxStrategyLength   int           `envconfig:"ANALYSIS_MAX_STRATEGY_LENGTH" default:"10000"`
	ContextTimeout      time.Duration `envconfig:"ANALYSIS_CONTEXT_TIMEOUT" default:"15s"`
	ContextCacheTTL     time.Duration `envconfig:"ANALYSIS_CONTEXT_CACHE_TTL" default:"24h"`
	CatalogPath         string        `envconfig:"ANALYSIS_CATALOG_PATH"`
	FollowUpMaxQuestion int           `envconfig:"ANALYSIS_FOLLOW_UP_MAX" default:"7"`
}

// RedisConfig is optional; an empty host disables the context cache and
// the distributed rate limiter.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig is optional; without brokers events are dropped.
type KafkaConfig struct {
	Brokers     []string `envconfig:"KAFKA_BROKERS"`
	TopicPrefix string   `envconfig:"KAFKA_TOPIC_PREFIX" default:"redteam"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR"`
}

// Load reads configuration from environment variables.
// It first tries to load .env file (useful for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the orchestration engine cannot run with.
// Missing provider credentials are checked when the gateway is built.
func (c *Config) Validate() error {
	a := c.Analysis
	switch {
	case a.MaxRetries < 1:
		return errors.Wrap(errors.ErrConfiguration, "ANALYSIS_MAX_RETRIES must be >= 1")
	case a.MaxConcurrency < 1:
		return errors.Wrap(errors.ErrConfiguration, "ANALYSIS_MAX_CONCURRENCY must be >= 1")
	case a.RequestTimeout <= 0 || a.PerspectiveTimeout <= 0:
		return errors.Wrap(errors.ErrConfiguration, "request timeouts must be positive")
	case a.RateLimitDelay < 0:
		return errors.Wrap(errors.ErrConfiguration, "ANALYSIS_RATE_LIMIT_DELAY must not be negative")
	case a.SynthesisAttempts < 1:
		return errors.Wrap(errors.ErrConfiguration, "ANALYSIS_SYNTHESIS_ATTEMPTS must be >= 1")
	case c.AI.Temperature < 0 || c.AI.Temperature > 2:
		return errors.Wrap(errors.ErrConfiguration, "AI_TEMPERATURE must be within [0, 2]")
	}
	return nil
}

// Default returns the configuration Load would produce with an empty environment.
// Tests build on it instead of touching process env.
func Default() Config {
	return Config{
		App: AppConfig{Name: "redteam", Env: "development", LogLevel: "info"},
		AI: AIConfig{
			Provider:          "anthropic",
			Temperature:       0.7,
			AnthropicURL:      "https://api.anthropic.com/v1/messages",
			OpenRouterBaseURL: "https://openrouter.ai/api/v1",
			SiteName:          "Strategic Red Team Analyzer",
			ReqPerMinute:      50,
			Burst:             10,
		},
		Analysis: AnalysisConfig{
			MaxRetries:          3,
			RequestTimeout:      60 * time.Second,
			PerspectiveTimeout:  45 * time.Second,
			RetryBaseDelay:      4 * time.Second,
			RetryMaxDelay:       10 * time.Second,
			RateLimitDelay:      time.Second,
			MaxConcurrency:      3,
			PerspectiveTokens:   2000,
			SynthesisTokens:     6000,
			SynthesisAttempts:   3,
			MinAnalysisLength:   20,
			MaxStrategyLength:   10000,
			ContextTimeout:      15 * time.Second,
			ContextCacheTTL:     24 * time.Hour,
			FollowUpMaxQuestion: 7,
		},
		Redis:         RedisConfig{Port: 6379},
		Kafka:         KafkaConfig{TopicPrefix: "redteam"},
		ErrorTracking: ErrorTrackingConfig{Environment: "production"},
	}
}
