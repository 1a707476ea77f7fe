// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

// Package database provides SQLite-backed storage for contacts, groups,
// templates, campaigns, and delivery logs.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/logging"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a uniqueness constraint is violated,
// e.g. creating a contact with an email that already exists.
var ErrDuplicate = errors.New("already exists")

// DB wraps the SQLite connection and provides data access methods
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New creates a new database connection and initializes the schema
func New(cfg *config.DatabaseConfig) (*DB, error) {
	// Ensure parent directory exists for database file.
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	dsn := buildDSN(cfg)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY
	// contention and keeps in-memory databases on one connection.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, cfg: cfg}

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// buildDSN constructs the go-sqlite3 connection string with WAL journaling,
// a busy timeout, and foreign keys enforced.
func buildDSN(cfg *config.DatabaseConfig) string {
	if cfg.Path == ":memory:" {
		return "file::memory:?_foreign_keys=on"
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// initialize creates tables and indexes
func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return err
	}
	return db.createIndexes()
}

// createTables creates the schema if it does not exist
func (db *DB) createTables() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS contact_groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			group_id TEXT REFERENCES contact_groups(id) ON DELETE SET NULL,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS email_templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL,
			body_html TEXT NOT NULL,
			body_text TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			subject TEXT NOT NULL,
			from_email TEXT NOT NULL DEFAULT '',
			from_name TEXT NOT NULL DEFAULT '',
			reply_to TEXT NOT NULL DEFAULT '',
			cc TEXT NOT NULL DEFAULT '',
			bcc TEXT NOT NULL DEFAULT '',
			body_html TEXT NOT NULL,
			body_text TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft',
			scheduled_at DATETIME,
			started_at DATETIME,
			completed_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_groups (
			campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			group_id TEXT NOT NULL REFERENCES contact_groups(id) ON DELETE CASCADE,
			PRIMARY KEY (campaign_id, group_id)
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_contacts (
			campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			PRIMARY KEY (campaign_id, contact_id)
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_cc_groups (
			campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			group_id TEXT NOT NULL REFERENCES contact_groups(id) ON DELETE CASCADE,
			PRIMARY KEY (campaign_id, group_id)
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_bcc_groups (
			campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			group_id TEXT NOT NULL REFERENCES contact_groups(id) ON DELETE CASCADE,
			PRIMARY KEY (campaign_id, group_id)
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_logs (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			status TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT NOT NULL DEFAULT '',
			sent_at DATETIME,
			opened INTEGER NOT NULL DEFAULT 0,
			opened_at DATETIME,
			clicked INTEGER NOT NULL DEFAULT 0,
			clicked_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (campaign_id, contact_id)
		)`,
	}

	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// createIndexes creates secondary indexes for common query paths
func (db *DB) createIndexes() error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_contacts_group ON contacts(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_active ON contacts(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_scheduled ON campaigns(scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_logs_campaign ON delivery_logs(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_logs_status ON delivery_logs(status)`,
	}

	for _, stmt := range indexes {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this for cleanup in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}

// scanFunc is a function that scans a single row into a result type
type scanFunc[T any] func(*sql.Rows) (T, error)

// queryAndScan executes a query and scans all rows using the provided scan function
func queryAndScan[T any](ctx context.Context, db *sql.DB, query string, args []interface{}, scan scanFunc[T]) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close rows")
		}
	}()

	var results []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// go-sqlite3 exposes sqlite3.Error, but matching the message avoids
	// scattering driver-specific types through the storage layer.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
