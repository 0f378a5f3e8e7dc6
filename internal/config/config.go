// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package config defines the server configuration and loads it from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"time"

	"github.com/BrianFlannery/mage-server-1/internal/database"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  database.Config `koanf:"database"`
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	Locations LocationsConfig `koanf:"locations"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// StorageConfig holds the on-disk stores: the keyed document store and
// the attachment blob root.
type StorageConfig struct {
	BadgerDir  string        `koanf:"badger_dir"`
	BlobDir    string        `koanf:"blob_dir"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

// LocationsConfig tunes location read paths.
type LocationsConfig struct {
	HistoryMaxLimit int `koanf:"history_max_limit"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then the config file and environment variables override them.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            4242,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute, // attachment uploads and ranged reads
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Database: database.DefaultConfig(),
		Storage: StorageConfig{
			BadgerDir:  "data/badger",
			BlobDir:    "data/attachments",
			GCInterval: 10 * time.Minute,
		},
		Auth: AuthConfig{
			JWTSecret: "",
			TokenTTL:  8 * time.Hour,
		},
		Locations: LocationsConfig{
			HistoryMaxLimit: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("server.rate_limit_reqs must not be negative")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BadgerDir == "" {
		return fmt.Errorf("storage.badger_dir is required")
	}
	if c.Storage.BlobDir == "" {
		return fmt.Errorf("storage.blob_dir is required")
	}
	if c.Storage.GCInterval < time.Minute {
		return fmt.Errorf("storage.gc_interval %s below one minute", c.Storage.GCInterval)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Locations.HistoryMaxLimit < 1 {
		return fmt.Errorf("locations.history_max_limit must be positive")
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q not recognized", c.Logging.Level)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
