// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds every setting of the preview and registrar functions.
type Config struct {
	ProjectID           string  `env:"PROJECT_ID"`
	DocumentsCollection string  `env:"DOCUMENTS_COLLECTION,default=documents"`
	ContentBucket       string  `env:"CONTENT_BUCKET"`
	VertexAIRegion      string  `env:"VERTEX_AI_REGION,default=us-central1"`
	VertexModel         string  `env:"VERTEX_MODEL,default=gemini-1.5-pro"`
	CacheCapacity       int     `env:"CACHE_CAPACITY,default=100"`
	CacheTTLMillis      int64   `env:"CACHE_TTL_MILLIS,default=1800000"`
	VisibilityThreshold float64 `env:"VISIBILITY_THRESHOLD,default=0.1"`
	RenderScale         float64 `env:"RENDER_SCALE,default=1.5"`
	BatchConcurrency    int     `env:"BATCH_CONCURRENCY,default=10"`
	MaxContentBytes     int64   `env:"MAX_CONTENT_BYTES,default=52428800"`
	LogLevel            string  `env:"LOG_LEVEL,default=info"`
	LogFormat           string  `env:"LOG_FORMAT,default=json"`
}

// Load reads an optional .env file from the working directory, then the
// process environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric settings. Variables required only by one
// function are checked by that function.
func (c *Config) Validate() error {
	var errs []error
	if c.CacheCapacity <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_CAPACITY must be positive, got %d", c.CacheCapacity))
	}
	if c.CacheTTLMillis <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL_MILLIS must be positive, got %d", c.CacheTTLMillis))
	}
	if c.VisibilityThreshold <= 0 || c.VisibilityThreshold > 1 {
		errs = append(errs, fmt.Errorf("VISIBILITY_THRESHOLD must be in (0, 1], got %g", c.VisibilityThreshold))
	}
	if c.RenderScale <= 0 {
		errs = append(errs, fmt.Errorf("RENDER_SCALE must be positive, got %g", c.RenderScale))
	}
	if c.BatchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency))
	}
	if c.MaxContentBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONTENT_BYTES must be positive, got %d", c.MaxContentBytes))
	}
	return errors.Join(errs...)
}

// RequireProject fails when PROJECT_ID is unset.
func (c *Config) RequireProject() error {
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMillis) * time.Millisecond
}
