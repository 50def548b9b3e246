package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all application configuration.
type Config struct {
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr       string        `env:"SERVER_ADDR" envDefault:":8080"`
	MetricsAddr      string        `env:"METRICS_ADDR" envDefault:":9091"`
	StorageBackend   string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	PostgresURL      string        `env:"POSTGRES_URL"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	WALDir           string        `env:"WAL_DIR"`
	WALSegmentSize   int64         `env:"WAL_SEGMENT_SIZE_BYTES" envDefault:"67108864"`    // 64MB
	WALMaxDiskSize   int64         `env:"WAL_MAX_DISK_SIZE_BYTES" envDefault:"1073741824"` // 1GB
	MaxRequestSize   int64         `env:"MAX_REQUEST_SIZE_BYTES" envDefault:"65536"`       // 64KB
	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH" envDefault:"10000"`
	RecentPageSize   int           `env:"RECENT_PAGE_SIZE" envDefault:"100"`
	StorageTimeout   time.Duration `env:"STORAGE_TIMEOUT" envDefault:"5s"`
	TracingEnabled   bool          `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint  string        `env:"TRACING_ENDPOINT"` // e.g. "localhost:4318" for an OTLP/HTTP collector
	TracingProtocol  string        `env:"TRACING_PROTOCOL" envDefault:"http"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field requirements that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required when STORAGE_BACKEND=postgres"))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when STORAGE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	if c.MaxRequestSize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_SIZE_BYTES must be positive"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.RecentPageSize <= 0 {
		errs = append(errs, errors.New("RECENT_PAGE_SIZE must be positive"))
	}
	if c.StorageTimeout <= 0 {
		errs = append(errs, errors.New("STORAGE_TIMEOUT must be positive"))
	}
	if c.WALDir != "" && (c.WALSegmentSize <= 0 || c.WALMaxDiskSize < c.WALSegmentSize) {
		errs = append(errs, errors.New("WAL sizes must be positive and WAL_MAX_DISK_SIZE_BYTES >= WAL_SEGMENT_SIZE_BYTES"))
	}

	if c.TracingEnabled {
		if c.TracingEndpoint == "" {
			errs = append(errs, errors.New("TRACING_ENDPOINT is required when TRACING_ENABLED=true"))
		}
		if c.TracingProtocol != "http" && c.TracingProtocol != "grpc" {
			errs = append(errs, fmt.Errorf("unsupported TRACING_PROTOCOL %q", c.TracingProtocol))
		}
	}

	return errors.Join(errs...)
}
