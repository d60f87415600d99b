// Package config loads server settings from LGATES_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Required unless serving from memory.
	DatabaseURL string `env:"LGATES_DATABASE_URL"`
	// REST API and /metrics.
	HTTPAddr string `env:"LGATES_HTTP_ADDR" envDefault:":8080"`
	// gRPC health and reflection.
	GRPCAddr string `env:"LGATES_GRPC_ADDR" envDefault:":9090"`
	// Empty means no events are published.
	NATSURL  string `env:"LGATES_NATS_URL"`
	LogLevel string `env:"LGATES_LOG_LEVEL" envDefault:"info"`

	// An empty secret trusts the X-User-ID header (development only).
	JWTSecret string `env:"LGATES_JWT_SECRET"`
	JWTIssuer string `env:"LGATES_JWT_ISSUER"`

	// Sync settings. An interval of 0 disables sync; S3 is enabled by a
	// bucket and git by a clone path.
	SyncInterval   time.Duration `env:"LGATES_SYNC_INTERVAL" envDefault:"3m"`
	SyncS3Bucket   string        `env:"LGATES_SYNC_S3_BUCKET"`
	SyncS3Endpoint string        `env:"LGATES_SYNC_S3_ENDPOINT"`
	SyncS3Region   string        `env:"LGATES_SYNC_S3_REGION" envDefault:"us-east-1"`
	SyncS3Key      string        `env:"LGATES_SYNC_S3_KEY" envDefault:"lgates/backup.jsonl"`
	SyncGitRepo    string        `env:"LGATES_SYNC_GIT_REPO"`
	SyncGitFile    string        `env:"LGATES_SYNC_GIT_FILE" envDefault:"lgates.jsonl"`
	SyncGitBranch  string        `env:"LGATES_SYNC_GIT_BRANCH" envDefault:"main"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &c, c.check()
}

// LoadFrom reads the configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &c, c.check()
}

func (c *Config) check() error {
	if c.SyncInterval < 0 {
		return errors.New("LGATES_SYNC_INTERVAL must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// RequireDatabase reports an error when no database is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("LGATES_DATABASE_URL is required (or use --memory)")
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LGATES_LOG_LEVEL: %w", err)
	}
	return l, nil
}
