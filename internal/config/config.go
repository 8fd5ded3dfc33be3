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
	DBUser string `envconfig:"DB_USER" default:"inkwell"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"inkwell"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	GeminiModel    string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-pro"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`

	EnableAPI     bool   `envconfig:"ENABLE_API" default:"true"`
	EnableWorkers bool   `envconfig:"ENABLE_WORKERS" default:"true"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Worker tuning
	GenerateConcurrency int `envconfig:"GENERATE_CONCURRENCY" default:"3"`
	DistillConcurrency  int `envconfig:"DISTILL_CONCURRENCY" default:"5"`
	ChunkConcurrency    int `envconfig:"CHUNK_CONCURRENCY" default:"2"`
	GenerateRatePerMin  int `envconfig:"GENERATE_RATE_PER_MIN" default:"20"`

	// External call timeouts (seconds)
	GenerateTimeoutSeconds int `envconfig:"GENERATE_TIMEOUT_SECONDS" default:"120"`
	EmbedTimeoutSeconds    int `envconfig:"EMBED_TIMEOUT_SECONDS" default:"60"`

	// Server
	ServerPort int `envconfig:"SERVER_PORT" default:"8081"`

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
	if err := envconfig.Process("", &cfg); err != nil {
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
	if c.GenerateConcurrency <= 0 || c.DistillConcurrency <= 0 || c.ChunkConcurrency <= 0 {
		return fmt.Errorf("%w: worker concurrency must be positive", ErrMissingRequired)
	}
	return nil
}
