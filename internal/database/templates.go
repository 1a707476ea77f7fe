// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mreyes/mailfold/internal/models"
)

const templateColumns = `id, name, description, subject, body_html, body_text, is_active, created_at, updated_at`

// CreateTemplate inserts a new email template.
func (db *DB) CreateTemplate(ctx context.Context, tmpl *models.EmailTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO email_templates (id, name, description, subject, body_html, body_text, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tmpl.ID, tmpl.Name, tmpl.Description, tmpl.Subject, tmpl.BodyHTML, tmpl.BodyText,
		tmpl.IsActive, tmpl.CreatedAt, tmpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetTemplate fetches a template by ID. Returns ErrNotFound if absent.
func (db *DB) GetTemplate(ctx context.Context, id string) (*models.EmailTemplate, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE id = ?`, id)

	var t models.EmailTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Subject, &t.BodyHTML, &t.BodyText,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}
	return &t, nil
}

// ListTemplates returns all templates ordered by name.
func (db *DB) ListTemplates(ctx context.Context, activeOnly bool) ([]models.EmailTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM email_templates`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name`

	templates, err := queryAndScan(ctx, db.conn, query, nil,
		func(rows *sql.Rows) (models.EmailTemplate, error) {
			var t models.EmailTemplate
			err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Subject, &t.BodyHTML, &t.BodyText,
				&t.IsActive, &t.CreatedAt, &t.UpdatedAt)
			return t, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// UpdateTemplate updates a template's content and active flag.
func (db *DB) UpdateTemplate(ctx context.Context, tmpl *models.EmailTemplate) error {
	tmpl.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE email_templates
		 SET name = ?, description = ?, subject = ?, body_html = ?, body_text = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		tmpl.Name, tmpl.Description, tmpl.Subject, tmpl.BodyHTML, tmpl.BodyText,
		tmpl.IsActive, tmpl.UpdatedAt, tmpl.ID)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	return requireRowAffected(res)
}

// DeleteTemplate removes a template. Campaigns created from it are
// unaffected since they copied the content at creation time.
func (db *DB) DeleteTemplate(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM email_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return requireRowAffected(res)
}
