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

const groupColumns = `g.id, g.name, g.description, g.created_at, g.updated_at,
	(SELECT COUNT(*) FROM contacts c WHERE c.group_id = g.id) AS contact_count`

// CreateGroup inserts a new contact group. Group names are unique;
// returns ErrDuplicate on collision.
func (db *DB) CreateGroup(ctx context.Context, group *models.ContactGroup) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO contact_groups (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		group.ID, group.Name, group.Description, group.CreatedAt, group.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("group %s: %w", group.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetGroup fetches a group by ID with its contact count.
func (db *DB) GetGroup(ctx context.Context, id string) (*models.ContactGroup, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM contact_groups g WHERE g.id = ?`, id)

	var g models.ContactGroup
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt, &g.ContactCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	return &g, nil
}

// GetGroupByName fetches a group by exact name.
func (db *DB) GetGroupByName(ctx context.Context, name string) (*models.ContactGroup, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM contact_groups g WHERE g.name = ?`, name)

	var g models.ContactGroup
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt, &g.ContactCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	return &g, nil
}

// ListGroups returns all groups ordered by name, with contact counts.
func (db *DB) ListGroups(ctx context.Context) ([]models.ContactGroup, error) {
	groups, err := queryAndScan(ctx, db.conn,
		`SELECT `+groupColumns+` FROM contact_groups g ORDER BY g.name`, nil,
		func(rows *sql.Rows) (models.ContactGroup, error) {
			var g models.ContactGroup
			err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt, &g.ContactCount)
			return g, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// UpdateGroup updates a group's name and description.
func (db *DB) UpdateGroup(ctx context.Context, group *models.ContactGroup) error {
	group.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE contact_groups SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		group.Name, group.Description, group.UpdatedAt, group.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("group %s: %w", group.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return requireRowAffected(res)
}

// DeleteGroup removes a group. Member contacts are kept with their
// group_id cleared (FK ON DELETE SET NULL).
func (db *DB) DeleteGroup(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM contact_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return requireRowAffected(res)
}

// GroupContacts returns the contacts belonging to a group.
func (db *DB) GroupContacts(ctx context.Context, groupID string) ([]models.Contact, error) {
	contacts, err := queryAndScan(ctx, db.conn,
		`SELECT `+contactColumns+` FROM contacts WHERE group_id = ? ORDER BY email`,
		[]interface{}{groupID}, scanContact)
	if err != nil {
		return nil, fmt.Errorf("failed to list group contacts: %w", err)
	}
	return contacts, nil
}

// GroupMemberEmails returns distinct emails of active contacts across the
// given groups. Used to expand CC/BCC group lists at dispatch time.
func (db *DB) GroupMemberEmails(ctx context.Context, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(groupIDs)
	emails, err := queryAndScan(ctx, db.conn,
		`SELECT DISTINCT email FROM contacts
		 WHERE is_active = 1 AND group_id IN (`+placeholders+`) ORDER BY email`,
		args,
		func(rows *sql.Rows) (string, error) {
			var email string
			err := rows.Scan(&email)
			return email, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve group member emails: %w", err)
	}
	return emails, nil
}

// inClause builds a "?, ?, ?" placeholder list and matching args slice.
func inClause(ids []string) (string, []interface{}) {
	placeholders := make([]byte, 0, len(ids)*3)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',', ' ')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}
	return string(placeholders), args
}
