// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

// Package main is the mailctl command line tool. It operates on the same
// configuration and SQLite store as the Mailfold server, so campaigns can
// be dispatched and SMTP settings verified without going through the API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/database"
	"github.com/mreyes/mailfold/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "mailctl",
	Short: "Operate a Mailfold instance from the command line",
	Long: `mailctl manages a Mailfold installation directly: it loads the same
configuration as the server (config file plus environment variables) and
opens the SQLite store without going through the HTTP API.

Use "mailctl send" to dispatch a campaign and "mailctl test-email" to
verify the SMTP configuration.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvironment loads configuration and opens the database. Logging is
// kept at warn level so command output stays readable.
func loadEnvironment() (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{Level: "warn", Format: "console"})

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}
