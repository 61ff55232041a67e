package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// EnvPrefix is prepended to every variable name, e.g. ECHOVAULT_HTTP_PORT.
const EnvPrefix = "ECHOVAULT"

// Config holds the configuration for the journal service.
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived driver: postgres | sqlite | memory
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// Embeddings: ollama | hashing
	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"ollama"`
	EmbedModel    string `envconfig:"EMBED_MODEL" default:"nomic-embed-text"`
	OllamaURL     string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`

	// Text analysis
	LLMProvider string `envconfig:"LLM_PROVIDER" default:"heuristic"`
	LLMAPIKey   string `envconfig:"LLM_API_KEY" default:""`
	LLMBaseURL  string `envconfig:"LLM_BASE_URL" default:""`
	LLMModel    string `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`

	// Transcription
	TranscribeURL    string `envconfig:"TRANSCRIBE_URL" default:"https://api.openai.com/v1"`
	TranscribeAPIKey string `envconfig:"TRANSCRIBE_API_KEY" default:""`
	TranscribeModel  string `envconfig:"TRANSCRIBE_MODEL" default:"whisper-1"`

	// Pipeline
	AnalyzerTimeoutSeconds int     `envconfig:"ANALYZER_TIMEOUT_SECONDS" default:"30"`
	LowMoodThreshold       float64 `envconfig:"LOW_MOOD_THRESHOLD" default:"0.3"`

	// Retrieval
	RelevanceThreshold float64 `envconfig:"RELEVANCE_THRESHOLD" default:"0.3"`
	RelevanceTopK      int     `envconfig:"RELEVANCE_TOP_K" default:"10"`
	RecentWindow       int     `envconfig:"RECENT_WINDOW" default:"5"`

	// Maintenance
	ContextVersion       int    `envconfig:"CONTEXT_VERSION" default:"1"`
	RetrofitBatchSize    int    `envconfig:"RETROFIT_BATCH_SIZE" default:"5"`
	RetrofitBatchDelayMs int    `envconfig:"RETROFIT_BATCH_DELAY_MS" default:"2000"`
	BackfillCap          int    `envconfig:"BACKFILL_CAP" default:"5"`
	BackfillDelayMs      int    `envconfig:"BACKFILL_DELAY_MS" default:"1000"`
	MaintenanceSchedule  string `envconfig:"MAINTENANCE_SCHEDULE" default:"@every 6h"`

	// Health
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"10"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud-dev", "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true, "memory": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		c.SQLitePath = defaultSQLitePath()
	}

	allowedEmbed := map[string]bool{"ollama": true, "hashing": true}
	if !allowedEmbed[c.EmbedProvider] {
		return fmt.Errorf("unsupported EMBED_PROVIDER: %s", c.EmbedProvider)
	}

	allowedLLM := map[string]bool{"heuristic": true, "openai": true, "anthropic": true, "openrouter": true}
	if !allowedLLM[c.LLMProvider] {
		return fmt.Errorf("unsupported LLM_PROVIDER: %s", c.LLMProvider)
	}
	if c.LowMoodThreshold < 0 || c.LowMoodThreshold > 1 {
		return fmt.Errorf("LOW_MOOD_THRESHOLD must be within [0,1], got %v", c.LowMoodThreshold)
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("RELEVANCE_THRESHOLD must be within [0,1], got %v", c.RelevanceThreshold)
	}
	if c.RelevanceTopK < 1 {
		return fmt.Errorf("RELEVANCE_TOP_K must be >= 1, got %d", c.RelevanceTopK)
	}
	if c.ContextVersion < 1 {
		return fmt.Errorf("CONTEXT_VERSION must be >= 1, got %d", c.ContextVersion)
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with ECHOVAULT_
// Example: ECHOVAULT_POSTGRES_DSN, ECHOVAULT_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Str("llm_provider", cfg.LLMProvider).
		Int("context_version", cfg.ContextVersion).
		Str("maintenance_schedule", cfg.MaintenanceSchedule).
		Str("postgres_dsn_present", func() string {
			if cfg.PostgresDSN != "" {
				return "true"
			}
			return "false"
		}()).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
		BuildTarget: "local",
		DBDriver:    "memory",
		LogLevel:    "debug",
		HTTPPort:    8080,

		EmbedProvider: "hashing",
		EmbedModel:    "nomic-embed-text",
		OllamaURL:     "http://localhost:11434",
		LLMProvider:   "heuristic",

		AnalyzerTimeoutSeconds: 2,
		LowMoodThreshold:       0.3,
		RelevanceThreshold:     0.3,
		RelevanceTopK:          10,
		RecentWindow:           5,

		ContextVersion:       1,
		RetrofitBatchSize:    5,
		RetrofitBatchDelayMs: 0,
		BackfillCap:          5,
		BackfillDelayMs:      0,
		MaintenanceSchedule:  "@every 6h",

		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// AnalyzerTimeout bounds every external analyzer or embedder call.
func (c *Config) AnalyzerTimeout() time.Duration {
	if c.AnalyzerTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.AnalyzerTimeoutSeconds) * time.Second
}

func (c *Config) RetrofitBatchDelay() time.Duration {
	return time.Duration(c.RetrofitBatchDelayMs) * time.Millisecond
}

func (c *Config) BackfillDelay() time.Duration {
	return time.Duration(c.BackfillDelayMs) * time.Millisecond
}

func defaultSQLitePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".echovault", "journal.db")
	}
	return "journal.db"
}
