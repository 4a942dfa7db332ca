package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	GroqBaseURL = "https://api.groq.com/openai/v1"
)

type Config struct {
	// Server
	Port string `env:"PORT" envDefault:"3000"`
	Env  string `env:"ENV" envDefault:"production"`

	// Model provider
	ModelProvider    string        `env:"MODEL_PROVIDER" envDefault:"openai"`
	ModelTimeout     time.Duration `env:"MODEL_TIMEOUT" envDefault:"20s"`
	ModelTemperature float64       `env:"MODEL_TEMPERATURE" envDefault:"0.7"`

	// Gemini AI
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	// OpenAI-compatible, Groq by default. GROQ_API_KEY is read when
	// OPENAI_API_KEY is unset.
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	GroqAPIKey    string `env:"GROQ_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"llama3-8b-8192"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`

	// HTTP
	CORSOrigins        []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	JWTSecret          string   `env:"JWT_SECRET"`
	TrustProxy         bool     `env:"TRUST_PROXY" envDefault:"false"`

	// Usage ledger (optional, needs both)
	RedisURL      string `env:"REDIS_URL"`
	DatabaseURL   string `env:"DATABASE_URL"`
	UsageWorkers  int    `env:"USAGE_WORKERS" envDefault:"2"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = cfg.GroqAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected provider is known and has its API key.
func (c *Config) Validate() error {
	switch c.ModelProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("required environment variable GEMINI_API_KEY is not set")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("required environment variable OPENAI_API_KEY (or GROQ_API_KEY) is not set")
		}
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q (expected %q or %q)", c.ModelProvider, ProviderGemini, ProviderOpenAI)
	}

	if c.ModelTimeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT must be positive, got %s", c.ModelTimeout)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	if c.UsageWorkers < 1 {
		return fmt.Errorf("USAGE_WORKERS must be >= 1")
	}
	return nil
}

// UsageLedgerEnabled reports whether usage events are queued to Redis and persisted to Postgres.
func (c *Config) UsageLedgerEnabled() bool {
	return c.RedisURL != "" && c.DatabaseURL != ""
}

func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}
