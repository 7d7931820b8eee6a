// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings for the pairing server and the moderator
// service. DatabaseURL is optional: without it the moderator skips the
// Postgres audit trail and only logs.
type Config struct {
	ListenAddr     string        `env:"LISTEN_ADDR" envDefault:":8080"`
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	NatsURL        string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	WorkerPoolSize int           `env:"WORKER_POOL_SIZE" envDefault:"256"`
	MaxConnections int           `env:"MAX_CONNECTIONS" envDefault:"100000"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the parsed values for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("config: WORKER_POOL_SIZE must be positive, got %d", c.WorkerPoolSize)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("config: MAX_CONNECTIONS must be positive, got %d", c.MaxConnections)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}
