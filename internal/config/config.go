// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration for the server and the worker.
type Config struct {
	AppEnv           string        `envconfig:"APP_ENV" default:"development"`
	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL        string        `envconfig:"DATABASE_URL"`
	DBMaxConns         int32         `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns         int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	DBStatementTimeout time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"5s"`
	StorageDriver      string        `envconfig:"STORAGE_DRIVER" default:"postgres"`

	JWTSecret    string   `envconfig:"JWT_SECRET"`
	JWTIssuer    string   `envconfig:"JWT_ISSUER" default:"bakery"`
	AuthDisabled bool     `envconfig:"AUTH_DISABLED" default:"false"`
	WriteRoles   []string `envconfig:"WRITE_ROLES"`

	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	MetricsEnabled bool          `envconfig:"METRICS_ENABLED" default:"true"`
	ReceiptPrefix  string        `envconfig:"RECEIPT_PREFIX" default:"SI"`
	WorkerInterval time.Duration `envconfig:"WORKER_INTERVAL" default:"5m"`

	// AuditCompressThreshold is the snapshot size in bytes above which audit
	// payloads are stored zstd-compressed.
	AuditCompressThreshold int `envconfig:"AUDIT_COMPRESS_THRESHOLD" default:"1024"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	var errs []error
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, errors.New("STORAGE_DRIVER must be postgres or memory"))
	}
	if !c.AuthDisabled && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required unless AUTH_DISABLED is set"))
	}
	if strings.TrimSpace(c.ReceiptPrefix) == "" {
		errs = append(errs, errors.New("RECEIPT_PREFIX must not be empty"))
	}
	if c.WorkerInterval <= 0 {
		errs = append(errs, errors.New("WORKER_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether logs should be human readable.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}
