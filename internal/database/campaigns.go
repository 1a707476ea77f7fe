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

	"github.com/mreyes/mailfold/internal/metrics"
	"github.com/mreyes/mailfold/internal/models"
)

// CampaignFilter narrows campaign listings.
type CampaignFilter struct {
	Status string
	Limit  int
	Offset int
}

const campaignColumns = `id, name, subject, from_email, from_name, reply_to, cc, bcc,
	body_html, body_text, status, scheduled_at, started_at, completed_at, created_at, updated_at`

// campaign link tables, one per recipient role
var campaignLinkTables = map[string]string{
	"campaign_groups":     "group_id",
	"campaign_contacts":   "contact_id",
	"campaign_cc_groups":  "group_id",
	"campaign_bcc_groups": "group_id",
}

// CreateCampaign inserts a campaign and its group/contact links in one
// transaction. A future ScheduledAt creates the campaign as "scheduled",
// otherwise as "draft".
func (db *DB) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
		if c.ScheduledAt != nil && c.ScheduledAt.After(now) {
			c.Status = models.CampaignStatusScheduled
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Subject, c.FromEmail, c.FromName, c.ReplyTo, c.CC, c.BCC,
		c.BodyHTML, c.BodyText, c.Status, c.ScheduledAt, c.StartedAt, c.CompletedAt,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	if err := syncCampaignLinks(ctx, tx, c); err != nil {
		return err
	}

	return tx.Commit()
}

// GetCampaign fetches a campaign with its linked group and contact IDs.
func (db *DB) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)

	c, err := scanCampaignRow(row)
	if err != nil {
		return nil, err
	}

	if err := db.loadCampaignLinks(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns returns campaigns matching the filter, newest first,
// plus the total count before pagination. Link IDs are not loaded.
func (db *DB) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]models.Campaign, int, error) {
	start := time.Now()

	where := ""
	var args []interface{}
	if filter.Status != "" {
		where = " WHERE status = ?"
		args = append(args, filter.Status)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	campaigns, err := queryAndScan(ctx, db.conn, query, args, scanCampaign)
	metrics.RecordDBQuery("select", "campaigns", time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, total, nil
}

// UpdateCampaign updates a campaign's content fields and replaces its
// group/contact links. Status and dispatch timestamps are managed by
// UpdateCampaignStatus.
func (db *DB) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	c.UpdatedAt = time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	res, err := tx.ExecContext(ctx,
		`UPDATE campaigns
		 SET name = ?, subject = ?, from_email = ?, from_name = ?, reply_to = ?, cc = ?, bcc = ?,
		     body_html = ?, body_text = ?, scheduled_at = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, c.Subject, c.FromEmail, c.FromName, c.ReplyTo, c.CC, c.BCC,
		c.BodyHTML, c.BodyText, c.ScheduledAt, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if err := requireRowAffected(res); err != nil {
		return err
	}

	for table := range campaignLinkTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE campaign_id = ?`, c.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := syncCampaignLinks(ctx, tx, c); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteCampaign removes a campaign, its links, and its delivery logs.
func (db *DB) DeleteCampaign(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return requireRowAffected(res)
}

// UpdateCampaignStatus transitions a campaign's status. Entering "sending"
// stamps started_at; entering "sent" or "failed" stamps completed_at.
func (db *DB) UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	now := time.Now().UTC()

	var query string
	switch status {
	case models.CampaignStatusSending:
		query = `UPDATE campaigns SET status = ?, started_at = ?, completed_at = NULL, updated_at = ? WHERE id = ?`
	case models.CampaignStatusSent, models.CampaignStatusFailed:
		query = `UPDATE campaigns SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`
	default:
		res, err := db.conn.ExecContext(ctx,
			`UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
		if err != nil {
			return fmt.Errorf("failed to update campaign status: %w", err)
		}
		return requireRowAffected(res)
	}

	res, err := db.conn.ExecContext(ctx, query, status, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	return requireRowAffected(res)
}

// DueScheduledCampaigns returns scheduled campaigns whose scheduled_at has
// passed, oldest first. The scheduler polls this to trigger dispatch.
func (db *DB) DueScheduledCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	campaigns, err := queryAndScan(ctx, db.conn,
		`SELECT `+campaignColumns+` FROM campaigns
		 WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		 ORDER BY scheduled_at`,
		[]interface{}{models.CampaignStatusScheduled, now.UTC()}, scanCampaign)
	if err != nil {
		return nil, fmt.Errorf("failed to query due campaigns: %w", err)
	}
	return campaigns, nil
}

// ResolveRecipients returns the campaign's primary audience: active
// contacts that are members of any linked group or linked individually,
// deduplicated by contact ID.
func (db *DB) ResolveRecipients(ctx context.Context, campaignID string) ([]models.Contact, error) {
	start := time.Now()

	contacts, err := queryAndScan(ctx, db.conn,
		`SELECT DISTINCT `+contactColumns+` FROM contacts
		 WHERE is_active = 1
		   AND (id IN (SELECT contact_id FROM campaign_contacts WHERE campaign_id = ?)
		     OR group_id IN (SELECT group_id FROM campaign_groups WHERE campaign_id = ?))
		 ORDER BY email`,
		[]interface{}{campaignID, campaignID}, scanContact)
	metrics.RecordDBQuery("select", "contacts", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}
	return contacts, nil
}

// syncCampaignLinks inserts the campaign's link rows within a transaction
func syncCampaignLinks(ctx context.Context, tx *sql.Tx, c *models.Campaign) error {
	links := []struct {
		table string
		ids   []string
	}{
		{"campaign_groups", c.GroupIDs},
		{"campaign_contacts", c.ContactIDs},
		{"campaign_cc_groups", c.CCGroupIDs},
		{"campaign_bcc_groups", c.BCCGroupIDs},
	}

	for _, link := range links {
		column := campaignLinkTables[link.table]
		for _, id := range link.ids {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+link.table+` (campaign_id, `+column+`) VALUES (?, ?)`,
				c.ID, id)
			if err != nil {
				return fmt.Errorf("failed to link %s: %w", link.table, err)
			}
		}
	}
	return nil
}

// loadCampaignLinks populates the campaign's linked ID slices
func (db *DB) loadCampaignLinks(ctx context.Context, c *models.Campaign) error {
	load := func(table, column string) ([]string, error) {
		return queryAndScan(ctx, db.conn,
			`SELECT `+column+` FROM `+table+` WHERE campaign_id = ?`,
			[]interface{}{c.ID},
			func(rows *sql.Rows) (string, error) {
				var id string
				err := rows.Scan(&id)
				return id, err
			})
	}

	var err error
	if c.GroupIDs, err = load("campaign_groups", "group_id"); err != nil {
		return fmt.Errorf("failed to load campaign groups: %w", err)
	}
	if c.ContactIDs, err = load("campaign_contacts", "contact_id"); err != nil {
		return fmt.Errorf("failed to load campaign contacts: %w", err)
	}
	if c.CCGroupIDs, err = load("campaign_cc_groups", "group_id"); err != nil {
		return fmt.Errorf("failed to load campaign cc groups: %w", err)
	}
	if c.BCCGroupIDs, err = load("campaign_bcc_groups", "group_id"); err != nil {
		return fmt.Errorf("failed to load campaign bcc groups: %w", err)
	}
	return nil
}

// rollbackQuietly rolls back a transaction, ignoring ErrTxDone after commit
func rollbackQuietly(tx *sql.Tx) {
	_ = tx.Rollback()
}

// scanCampaign scans a campaign from a rows cursor
func scanCampaign(rows *sql.Rows) (models.Campaign, error) {
	var c models.Campaign
	var scheduledAt, startedAt, completedAt sql.NullTime
	err := rows.Scan(&c.ID, &c.Name, &c.Subject, &c.FromEmail, &c.FromName, &c.ReplyTo,
		&c.CC, &c.BCC, &c.BodyHTML, &c.BodyText, &c.Status,
		&scheduledAt, &startedAt, &completedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	assignNullTime(&c.ScheduledAt, scheduledAt)
	assignNullTime(&c.StartedAt, startedAt)
	assignNullTime(&c.CompletedAt, completedAt)
	return c, nil
}

// scanCampaignRow scans a campaign from a single-row query
func scanCampaignRow(row *sql.Row) (*models.Campaign, error) {
	var c models.Campaign
	var scheduledAt, startedAt, completedAt sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.Subject, &c.FromEmail, &c.FromName, &c.ReplyTo,
		&c.CC, &c.BCC, &c.BodyHTML, &c.BodyText, &c.Status,
		&scheduledAt, &startedAt, &completedAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan campaign: %w", err)
	}
	assignNullTime(&c.ScheduledAt, scheduledAt)
	assignNullTime(&c.StartedAt, startedAt)
	assignNullTime(&c.CompletedAt, completedAt)
	return &c, nil
}

func assignNullTime(dst **time.Time, src sql.NullTime) {
	if src.Valid {
		t := src.Time
		*dst = &t
	}
}
