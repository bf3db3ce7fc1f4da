package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Port           string   `env:"PORT" envDefault:"8000"`
		GinMode        string   `env:"GIN_MODE" envDefault:"release"`
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	Database struct {
		// sqlite or postgres
		Driver       string `env:"DB_DRIVER" envDefault:"sqlite"`
		DSN          string `env:"DB_DSN" envDefault:"database/toperty.db"`
		MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	}

	Geocoding struct {
		APIKey   string        `env:"GOOGLE_API_KEY"`
		BaseURL  string        `env:"GEOCODING_URL" envDefault:"https://maps.googleapis.com/maps/api/geocode/json"`
		Region   string        `env:"GEOCODING_REGION" envDefault:"co"`
		Language string        `env:"GEOCODING_LANGUAGE" envDefault:"es"`
		CacheDir string        `env:"GEOCODING_CACHE_DIR"`
		Timeout  time.Duration `env:"GEOCODING_TIMEOUT" envDefault:"10s"`
	}

	Search struct {
		DefaultLimit int `env:"SEARCH_DEFAULT_LIMIT" envDefault:"50"`
		MaxLimit     int `env:"SEARCH_MAX_LIMIT" envDefault:"500"`
	}

	Zones struct {
		// A zone needs strictly more listings than this to be reported
		MinProperties    int     `env:"ZONES_MIN_PROPERTIES" envDefault:"3"`
		LowPercentile    float64 `env:"ZONES_LOW_PERCENTILE" envDefault:"0.2"`
		HighPercentile   float64 `env:"ZONES_HIGH_PERCENTILE" envDefault:"0.8"`
		OutlierSigma     float64 `env:"ZONES_OUTLIER_SIGMA" envDefault:"3"`
		ComparisonDays   int     `env:"ZONES_COMPARISON_DAYS" envDefault:"30"`
		GeohashPrecision uint    `env:"ZONES_GEOHASH_PRECISION" envDefault:"6"`
	}

	Summary struct {
		// Day boundaries of the listing summary
		Timezone string `env:"SUMMARY_TIMEZONE" envDefault:"America/Bogota"`
	}

	// BatchProcessing configuration
	BatchProcessing struct {
		// Maximum number of listings accepted in one batch
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"100"`

		// Number of batches the queue holds before rejecting
		QueueSize int `env:"BATCH_QUEUE_SIZE" envDefault:"100"`

		// Number of concurrent batch processors
		ProcessorCount int `env:"BATCH_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"5"`
	}

	Ingest struct {
		AMQPURL  string `env:"AMQP_URL"`
		Queue    string `env:"AMQP_QUEUE" envDefault:"listings"`
		Prefetch int    `env:"AMQP_PREFETCH" envDefault:"10"`
	}

	Logging struct {
		Level      string `env:"LOG_LEVEL" envDefault:"info"`
		Format     string `env:"LOG_FORMAT" envDefault:"json"`
		FluentHost string `env:"FLUENT_HOST"`
		FluentPort int    `env:"FLUENT_PORT" envDefault:"24224"`
		FluentTag  string `env:"FLUENT_TAG" envDefault:"toperty.server"`
	}
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Search.DefaultLimit < 1 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search limits out of range: default %d, max %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	z := c.Zones
	if z.LowPercentile < 0 || z.HighPercentile > 1 || z.LowPercentile >= z.HighPercentile {
		return fmt.Errorf("zone percentiles out of range: %v..%v", z.LowPercentile, z.HighPercentile)
	}
	if z.OutlierSigma <= 0 {
		return fmt.Errorf("ZONES_OUTLIER_SIGMA must be positive")
	}
	if z.GeohashPrecision < 1 || z.GeohashPrecision > 12 {
		return fmt.Errorf("ZONES_GEOHASH_PRECISION must be within 1..12")
	}
	if _, err := time.LoadLocation(c.Summary.Timezone); err != nil {
		return fmt.Errorf("invalid SUMMARY_TIMEZONE: %w", err)
	}
	if c.BatchProcessing.ProcessorCount < 1 || c.BatchProcessing.QueueSize < 1 || c.BatchProcessing.MaxBatchSize < 1 {
		return fmt.Errorf("batch processing sizes must be positive")
	}
	return nil
}

// Location is the summary timezone, UTC when unset or unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Summary.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
