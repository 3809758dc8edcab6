package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// AI backend selection. The driver decides how the endpoint and key are
	// interpreted; see internal/ai.
	AIDriver   string `envconfig:"AI_DRIVER" default:"openai"`
	AIAPIKey   string `envconfig:"AI_API_KEY"`
	AIEndpoint string `envconfig:"AI_ENDPOINT"`

	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	// EmbeddingDimensions overrides the model preset; 0 means use the preset.
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`
	CompletionModel     string `envconfig:"COMPLETION_MODEL" default:"gpt-4o-mini"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"10s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LOREKEEP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
