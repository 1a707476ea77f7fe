// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mreyes/mailfold/internal/metrics"
	"github.com/mreyes/mailfold/internal/models"
)

// ContactFilter narrows contact listings.
type ContactFilter struct {
	GroupID    string
	Search     string // matches email, first name, or last name
	ActiveOnly bool
	Limit      int
	Offset     int
}

const contactColumns = `id, group_id, email, first_name, last_name, is_active, created_at, updated_at`

// CreateContact inserts a new contact. Returns ErrDuplicate if the email
// is already registered.
func (db *DB) CreateContact(ctx context.Context, contact *models.Contact) error {
	start := time.Now()

	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	contact.Email = strings.ToLower(strings.TrimSpace(contact.Email))

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO contacts (id, group_id, email, first_name, last_name, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		contact.ID, contact.GroupID, contact.Email, contact.FirstName, contact.LastName,
		contact.IsActive, contact.CreatedAt, contact.UpdatedAt)
	metrics.RecordDBQuery("insert", "contacts", time.Since(start), err)

	if isUniqueViolation(err) {
		return fmt.Errorf("contact %s: %w", contact.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// GetContact fetches a contact by ID. Returns ErrNotFound if absent.
func (db *DB) GetContact(ctx context.Context, id string) (*models.Contact, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	return scanContactRow(row)
}

// GetContactByEmail fetches a contact by email (case-insensitive).
// Returns ErrNotFound if absent.
func (db *DB) GetContactByEmail(ctx context.Context, email string) (*models.Contact, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanContactRow(row)
}

// ListContacts returns contacts matching the filter plus the total count
// before pagination.
func (db *DB) ListContacts(ctx context.Context, filter ContactFilter) ([]models.Contact, int, error) {
	start := time.Now()

	var conditions []string
	var args []interface{}

	if filter.GroupID != "" {
		conditions = append(conditions, "group_id = ?")
		args = append(args, filter.GroupID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = 1")
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conditions = append(conditions, "(email LIKE ? OR first_name LIKE ? OR last_name LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count contacts: %w", err)
	}

	query := `SELECT ` + contactColumns + ` FROM contacts` + where + ` ORDER BY email LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	contacts, err := queryAndScan(ctx, db.conn, query, args, scanContact)
	metrics.RecordDBQuery("select", "contacts", time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contacts: %w", err)
	}

	return contacts, total, nil
}

// UpdateContact updates a contact's mutable fields. Returns ErrNotFound
// if the contact does not exist, ErrDuplicate on an email collision.
func (db *DB) UpdateContact(ctx context.Context, contact *models.Contact) error {
	contact.UpdatedAt = time.Now().UTC()
	contact.Email = strings.ToLower(strings.TrimSpace(contact.Email))

	res, err := db.conn.ExecContext(ctx,
		`UPDATE contacts SET group_id = ?, email = ?, first_name = ?, last_name = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		contact.GroupID, contact.Email, contact.FirstName, contact.LastName,
		contact.IsActive, contact.UpdatedAt, contact.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("contact %s: %w", contact.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return requireRowAffected(res)
}

// DeleteContact removes a contact and its delivery logs (via FK cascade).
func (db *DB) DeleteContact(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return requireRowAffected(res)
}

// UnassignContactFromGroup clears a contact's group membership. It fails
// with ErrNotFound when the contact is not a member of the group.
func (db *DB) UnassignContactFromGroup(ctx context.Context, groupID, contactID string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE contacts SET group_id = NULL, updated_at = ? WHERE id = ? AND group_id = ?`,
		time.Now().UTC(), contactID, groupID)
	if err != nil {
		return fmt.Errorf("failed to unassign contact: %w", err)
	}
	return requireRowAffected(res)
}

// requireRowAffected converts a zero-row update/delete into ErrNotFound.
func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanContact scans a contact from a rows cursor
func scanContact(rows *sql.Rows) (models.Contact, error) {
	var c models.Contact
	var groupID sql.NullString
	err := rows.Scan(&c.ID, &groupID, &c.Email, &c.FirstName, &c.LastName,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if groupID.Valid {
		c.GroupID = &groupID.String
	}
	return c, nil
}

// scanContactRow scans a contact from a single-row query
func scanContactRow(row *sql.Row) (*models.Contact, error) {
	var c models.Contact
	var groupID sql.NullString
	err := row.Scan(&c.ID, &groupID, &c.Email, &c.FirstName, &c.LastName,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}
	if groupID.Valid {
		c.GroupID = &groupID.String
	}
	return &c, nil
}
