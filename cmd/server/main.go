// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

// Package main is the entry point for the Mailfold server.
//
// Mailfold is a self-hosted bulk email campaign manager: contacts and
// contact groups, reusable templates, and campaigns dispatched through a
// configured SMTP server with per-recipient delivery logs.
//
// The server initializes components in the following order:
//
//  1. Configuration: koanf v2 layered load (defaults, YAML file, env vars)
//  2. Database: SQLite store with WAL mode
//  3. Authentication: JWT, Basic Auth, or no-auth mode
//  4. Mailer: SMTP sender with circuit breaker and send throttle
//  5. Scheduler: polling dispatcher for scheduled campaigns (optional)
//  6. HTTP server: REST API under /api/v1 plus /metrics
//
// Everything long-running is attached to a suture supervision tree, so a
// crashed component is restarted without taking the process down.
//
// For JWT authentication (default):
//   - JWT_SECRET: 32+ character secret for token signing
//   - ADMIN_USERNAME / ADMIN_PASSWORD: single-admin credentials
//
// Example usage:
//
//	export SMTP_HOST=smtp.example.com
//	export SMTP_USERNAME=mailer
//	export SMTP_PASSWORD=secret
//	export SMTP_FROM_EMAIL=news@example.com
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export ADMIN_USERNAME=admin
//	export ADMIN_PASSWORD=secure-password
//	./mailfold
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mreyes/mailfold/internal/api"
	"github.com/mreyes/mailfold/internal/auth"
	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/database"
	"github.com/mreyes/mailfold/internal/logging"
	"github.com/mreyes/mailfold/internal/mailer"
	"github.com/mreyes/mailfold/internal/supervisor"
	"github.com/mreyes/mailfold/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("smtp_host", cfg.SMTP.Host).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("scheduler", cfg.Scheduler.Enabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	jwtManager, basicAuthManager := setupAuth(cfg)

	authMiddleware := auth.NewMiddleware(
		jwtManager,
		basicAuthManager,
		cfg.Security.AuthMode,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
		cfg.Security.TrustedProxies,
	)
	defer authMiddleware.Stop()

	sender := mailer.NewSMTPSender(&cfg.SMTP)
	dispatcher := mailer.NewDispatcher(db, sender, &cfg.SMTP)

	handler := api.NewHandler(db, cfg, jwtManager, basicAuthManager, dispatcher)
	router := api.NewRouter(handler, authMiddleware, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	if cfg.Scheduler.Enabled {
		scheduler := mailer.NewScheduler(db, dispatcher, &cfg.Scheduler)
		tree.AddJobService(services.NewSchedulerService(scheduler))
		logging.Info().
			Dur("check_interval", cfg.Scheduler.CheckInterval).
			Msg("Campaign scheduler service added")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Mailfold stopped gracefully")
}

// setupAuth builds the auth managers the configured mode requires. Basic
// credentials are also prepared in JWT mode so the login endpoint can
// verify them.
func setupAuth(cfg *config.Config) (*auth.JWTManager, *auth.BasicAuthManager) {
	var jwtManager *auth.JWTManager
	var basicAuthManager *auth.BasicAuthManager
	var err error

	switch cfg.Security.AuthMode {
	case "jwt":
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		basicAuthManager, err = auth.NewBasicAuthManager(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize admin credentials")
		}
		logging.Info().Msg("JWT authentication enabled")

	case "basic":
		basicAuthManager, err = auth.NewBasicAuthManager(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize Basic Auth manager")
		}
		logging.Info().Msg("Basic authentication enabled")
		logging.Warn().Msg("Basic Auth transmits credentials with each request. Use HTTPS in production!")

	default:
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); all endpoints are public")
	}

	return jwtManager, basicAuthManager
}
