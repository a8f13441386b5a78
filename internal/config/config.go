package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"vidsage"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"vidsage"`

	NSQDHost  string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	QuizTopic string `envconfig:"QUIZ_TOPIC" default:"quiz.generate"`

	TranscriptBaseURL string `envconfig:"TRANSCRIPT_BASE_URL" default:"http://transcripts:9000"`
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingDim      int    `envconfig:"EMBEDDING_DIM" default:"384"`

	// Worker
	EnableWorker        bool    `envconfig:"ENABLE_WORKER" default:"true"`
	WorkerMaxConcurrent int     `envconfig:"WORKER_MAX_CONCURRENT" default:"3"`
	WorkerPollSeconds   int     `envconfig:"WORKER_POLL_SECONDS" default:"5"`
	WorkerMaxRetries    int     `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	RateDelayMinSeconds float64 `envconfig:"RATE_DELAY_MIN_SECONDS" default:"2"`
	RateDelayMaxSeconds float64 `envconfig:"RATE_DELAY_MAX_SECONDS" default:"5"`
	StaleReclaimMinutes int     `envconfig:"STALE_RECLAIM_MINUTES" default:"15"`

	// Server
	EnableAPI     bool   `envconfig:"ENABLE_API" default:"true"`
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: EMBEDDING_DIM must be positive", ErrMissingRequired)
	}
	if c.WorkerMaxConcurrent <= 0 {
		return fmt.Errorf("%w: WORKER_MAX_CONCURRENT must be positive", ErrMissingRequired)
	}
	if c.RateDelayMaxSeconds < c.RateDelayMinSeconds {
		return fmt.Errorf("%w: RATE_DELAY_MAX_SECONDS below RATE_DELAY_MIN_SECONDS", ErrMissingRequired)
	}
	return nil
}
