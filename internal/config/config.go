// Affinity - Related-Project Recommendation Engine
// Copyright 2026 CampusKit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/campuskit/affinity

// Package config loads and validates service configuration with layered
// sources: built-in defaults, an optional YAML file, and AFFINITY_*
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the affinity service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Affinity AffinityConfig `koanf:"affinity"`
	Signals  SignalsConfig  `koanf:"signals"`
	Logging  LoggingConfig  `koanf:"logging"`
	Admin    AdminConfig    `koanf:"admin"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig controls the DuckDB store.
type DatabaseConfig struct {
	// Path is the database file, or ":memory:" for an ephemeral store.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`

	// MaxRetries bounds transaction-conflict retries on atomic updates.
	MaxRetries int `koanf:"max_retries"`
}

// AffinityConfig tunes the recommendation core.
type AffinityConfig struct {
	// ClickIncrement is the strength delta per observed click-through.
	ClickIncrement float64 `koanf:"click_increment"`

	// MaxRelated is the related-projects result quota.
	MaxRelated int `koanf:"max_related"`

	// FallbackBatch is the initial most-viewed fetch size for padding.
	FallbackBatch int `koanf:"fallback_batch"`

	// BreakerTimeout is the selection circuit breaker open interval.
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// Signal transport selectors.
const (
	TransportChannel = "channel"
	TransportNATS    = "nats"
)

// SignalsConfig controls the behavioural signal pipeline.
type SignalsConfig struct {
	// Transport selects the message bus: "channel" (in-process) or "nats".
	Transport string `koanf:"transport"`

	// NATSURL is the broker address when Transport is "nats".
	NATSURL string `koanf:"nats_url"`

	// Topic is the signal event topic.
	Topic string `koanf:"topic"`

	// Consumers is the number of concurrent signal consumers.
	Consumers int `koanf:"consumers"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AdminConfig guards the privileged affinity adjustment endpoint.
type AdminConfig struct {
	// Token is the static bearer token required for admin calls.
	// Empty disables the privileged surface entirely.
	Token string `koanf:"token"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8087,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:       "/data/affinity.duckdb",
			MaxMemory:  "1GB",
			Threads:    0, // 0 = use runtime.NumCPU()
			MaxRetries: 3,
		},
		Affinity: AffinityConfig{
			ClickIncrement: 0.05,
			MaxRelated:     4,
			FallbackBatch:  8,
			BreakerTimeout: 30 * time.Second,
		},
		Signals: SignalsConfig{
			Transport: TransportChannel,
			NATSURL:   "nats://127.0.0.1:4222",
			Topic:     "affinity.signals",
			Consumers: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Admin: AdminConfig{
			Token: "",
		},
	}
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateAffinity,
		c.validateSignals,
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("server.rate_limit_reqs must be positive, got %d", c.Server.RateLimitReqs)
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive, got %s", c.Server.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.MaxRetries < 1 {
		return fmt.Errorf("database.max_retries must be positive, got %d", c.Database.MaxRetries)
	}
	return nil
}

func (c *Config) validateAffinity() error {
	if c.Affinity.ClickIncrement <= 0 || c.Affinity.ClickIncrement > 1 {
		return fmt.Errorf("affinity.click_increment must be in (0, 1], got %v", c.Affinity.ClickIncrement)
	}
	if c.Affinity.MaxRelated < 1 {
		return fmt.Errorf("affinity.max_related must be positive, got %d", c.Affinity.MaxRelated)
	}
	if c.Affinity.FallbackBatch < c.Affinity.MaxRelated {
		return fmt.Errorf("affinity.fallback_batch %d must be >= affinity.max_related %d",
			c.Affinity.FallbackBatch, c.Affinity.MaxRelated)
	}
	return nil
}

func (c *Config) validateSignals() error {
	switch c.Signals.Transport {
	case TransportChannel, TransportNATS:
	default:
		return fmt.Errorf("signals.transport must be \"channel\" or \"nats\", got %q", c.Signals.Transport)
	}
	if c.Signals.Transport == TransportNATS && c.Signals.NATSURL == "" {
		return fmt.Errorf("signals.nats_url is required when signals.transport is \"nats\"")
	}
	if c.Signals.Topic == "" {
		return fmt.Errorf("signals.topic is required")
	}
	if c.Signals.Consumers < 1 {
		return fmt.Errorf("signals.consumers must be positive, got %d", c.Signals.Consumers)
	}
	return nil
}

// ListenAddr returns the host:port pair for the HTTP listener.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
