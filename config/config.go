package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the service configuration. Environment variables are parsed
// from the SPARK_ prefix.
type Config struct {
	Port           int      `envconfig:"PORT" default:"8080" validate:"gt=0,lte=65535"`
	AWSRegion      string   `envconfig:"AWS_REGION" default:"us-east-1" validate:"required"`
	S3Bucket       string   `envconfig:"S3_BUCKET" default:""`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Discovery queue sizing. QueueTarget is capped at 100 so a repopulation
	// always fits a single transactional write.
	QueueTarget    int `envconfig:"QUEUE_TARGET" default:"25" validate:"gt=0,lte=100"`
	QueueMinUnseen int `envconfig:"QUEUE_MIN_UNSEEN" default:"5" validate:"gte=0"`
	PerRangeLimit  int `envconfig:"PER_RANGE_LIMIT" default:"50" validate:"gt=0"`
	PageSize       int `envconfig:"PAGE_SIZE" default:"10" validate:"gt=0,lte=50"`

	// Cache reads are off by default: discovery results must reflect
	// interaction state immediately, so the read path is an opt-in
	// performance layer. Writes and invalidation always run.
	CacheReads bool          `envconfig:"CACHE_READS" default:"false"`
	CacheTTL   time.Duration `envconfig:"CACHE_TTL" default:"2m"`
}

// Load parses and validates the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("spark", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
