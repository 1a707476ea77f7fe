// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

// Package config provides layered configuration loading for Mailfold.
//
// Configuration is loaded via Koanf v2 with the following precedence
// (highest wins):
//   - Environment variables (SMTP_HOST, JWT_SECRET, ...)
//   - Config file (config.yaml)
//   - Built-in defaults
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the Mailfold server and CLI.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Import    ImportConfig    `koanf:"import"`
	API       APIConfig       `koanf:"api"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite storage settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" is supported for tests.
	Path string `koanf:"path"`

	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	UseTLS   bool   `koanf:"use_tls"`

	// FromEmail and FromName are campaign-level defaults. A campaign may
	// override both.
	FromEmail string `koanf:"from_email"`
	FromName  string `koanf:"from_name"`

	// Timeout is the SMTP connection timeout.
	Timeout time.Duration `koanf:"timeout"`

	// MessagesPerSecond throttles outbound sends. 0 disables throttling.
	MessagesPerSecond float64 `koanf:"messages_per_second"`
}

// SchedulerConfig holds settings for the scheduled-campaign poller.
type SchedulerConfig struct {
	Enabled       bool          `koanf:"enabled"`
	CheckInterval time.Duration `koanf:"check_interval"`

	// DispatchTimeout is the maximum time allowed for a single campaign dispatch.
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxUploadBytes caps the size of an uploaded CSV file.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// APIConfig holds API pagination settings.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	// AuthMode selects the authentication scheme: "jwt", "basic", or "none".
	AuthMode string `koanf:"auth_mode"`

	// JWTSecret signs session tokens. Required (32+ chars) when AuthMode is "jwt".
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ServerAddr returns the host:port listen address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8825,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "/data/mailfold.db",
			BusyTimeout: 5 * time.Second,
		},
		SMTP: SMTPConfig{
			Host:              "",
			Port:              587,
			Username:          "",
			Password:          "",
			UseTLS:            true,
			FromEmail:         "",
			FromName:          "",
			Timeout:           30 * time.Second,
			MessagesPerSecond: 10,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			CheckInterval:   time.Minute,
			DispatchTimeout: 10 * time.Minute,
		},
		Import: ImportConfig{
			MaxUploadBytes: 5 << 20, // 5 MiB
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			AdminUsername:     "",
			AdminPassword:     "",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateSMTP(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// validateSMTP checks SMTP settings only when a host is configured.
// Mailfold starts without SMTP so campaigns can be drafted before
// delivery is set up; dispatch fails with a clear error instead.
func (c *Config) validateSMTP() error {
	if c.SMTP.Host == "" {
		return nil
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port)
	}
	if c.SMTP.FromEmail == "" {
		return fmt.Errorf("SMTP from_email is required when SMTP host is set")
	}
	if !strings.Contains(c.SMTP.FromEmail, "@") {
		return fmt.Errorf("invalid SMTP from_email: %s", c.SMTP.FromEmail)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters when auth_mode is jwt")
		}
		if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
			return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required when auth_mode is jwt")
		}
	case "basic":
		if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
			return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required when auth_mode is basic")
		}
	case "none":
		// Explicitly unauthenticated, intended for development.
	default:
		return fmt.Errorf("invalid auth_mode: %s (must be jwt, basic, or none)", c.Security.AuthMode)
	}

	if c.Security.RateLimitReqs <= 0 {
		return fmt.Errorf("rate_limit_reqs must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console", "":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logging.Format)
	}
	return nil
}
