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

// DeliveryLogFilter narrows delivery log listings.
type DeliveryLogFilter struct {
	Status string
	Limit  int
	Offset int
}

// UpsertDeliveryLog records the delivery outcome for one (campaign, contact)
// pair. Re-sending a campaign updates the existing row instead of inserting
// a duplicate, so each pair has at most one log entry.
func (db *DB) UpsertDeliveryLog(ctx context.Context, log *models.DeliveryLog) error {
	start := time.Now()

	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO delivery_logs (id, campaign_id, contact_id, status, error_message, sent_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(campaign_id, contact_id) DO UPDATE SET
		     status = excluded.status,
		     error_message = excluded.error_message,
		     sent_at = excluded.sent_at,
		     updated_at = excluded.updated_at`,
		log.ID, log.CampaignID, log.ContactID, log.Status, log.ErrorMessage,
		log.SentAt, log.CreatedAt, log.UpdatedAt)
	metrics.RecordDBQuery("upsert", "delivery_logs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert delivery log: %w", err)
	}
	return nil
}

// MarkDeliveryOpened flags a delivery log as opened, first time only.
func (db *DB) MarkDeliveryOpened(ctx context.Context, campaignID, contactID string) error {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE delivery_logs
		 SET opened = 1, opened_at = COALESCE(opened_at, ?), updated_at = ?
		 WHERE campaign_id = ? AND contact_id = ?`,
		now, now, campaignID, contactID)
	if err != nil {
		return fmt.Errorf("failed to mark delivery opened: %w", err)
	}
	return requireRowAffected(res)
}

// MarkDeliveryClicked flags a delivery log as clicked, first time only.
// A click implies an open.
func (db *DB) MarkDeliveryClicked(ctx context.Context, campaignID, contactID string) error {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE delivery_logs
		 SET clicked = 1, clicked_at = COALESCE(clicked_at, ?),
		     opened = 1, opened_at = COALESCE(opened_at, ?), updated_at = ?
		 WHERE campaign_id = ? AND contact_id = ?`,
		now, now, now, campaignID, contactID)
	if err != nil {
		return fmt.Errorf("failed to mark delivery clicked: %w", err)
	}
	return requireRowAffected(res)
}

// ListDeliveryLogs returns a campaign's delivery logs with contact emails,
// plus the total count before pagination.
func (db *DB) ListDeliveryLogs(ctx context.Context, campaignID string, filter DeliveryLogFilter) ([]models.DeliveryLog, int, error) {
	where := ` WHERE l.campaign_id = ?`
	args := []interface{}{campaignID}
	if filter.Status != "" {
		where += ` AND l.status = ?`
		args = append(args, filter.Status)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delivery_logs l`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count delivery logs: %w", err)
	}

	query := `SELECT l.id, l.campaign_id, l.contact_id, c.email, l.status, l.error_message,
	       l.sent_at, l.opened, l.opened_at, l.clicked, l.clicked_at, l.created_at, l.updated_at
	  FROM delivery_logs l
	  JOIN contacts c ON c.id = l.contact_id` + where + ` ORDER BY c.email LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	logs, err := queryAndScan(ctx, db.conn, query, args,
		func(rows *sql.Rows) (models.DeliveryLog, error) {
			var l models.DeliveryLog
			var sentAt, openedAt, clickedAt sql.NullTime
			err := rows.Scan(&l.ID, &l.CampaignID, &l.ContactID, &l.ContactEmail, &l.Status,
				&l.ErrorMessage, &sentAt, &l.Opened, &openedAt, &l.Clicked, &clickedAt,
				&l.CreatedAt, &l.UpdatedAt)
			if err != nil {
				return l, err
			}
			assignNullTime(&l.SentAt, sentAt)
			assignNullTime(&l.OpenedAt, openedAt)
			assignNullTime(&l.ClickedAt, clickedAt)
			return l, nil
		})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list delivery logs: %w", err)
	}
	return logs, total, nil
}

// GetCampaignStats aggregates delivery log counts and rates for a campaign.
func (db *DB) GetCampaignStats(ctx context.Context, campaignID string) (*models.CampaignStats, error) {
	stats := &models.CampaignStats{CampaignID: campaignID}

	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'sending' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'bounced' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(opened), 0),
		        COALESCE(SUM(clicked), 0)
		 FROM delivery_logs WHERE campaign_id = ?`, campaignID).
		Scan(&stats.TotalRecipients, &stats.Pending, &stats.Sending, &stats.Sent,
			&stats.Failed, &stats.Bounced, &stats.Opened, &stats.Clicked)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate campaign stats: %w", err)
	}

	if stats.TotalRecipients > 0 {
		stats.DeliveryRate = float64(stats.Sent) / float64(stats.TotalRecipients) * 100
	}
	if stats.Sent > 0 {
		stats.OpenRate = float64(stats.Opened) / float64(stats.Sent) * 100
		stats.ClickRate = float64(stats.Clicked) / float64(stats.Sent) * 100
	}
	return stats, nil
}

// GetDashboardStats summarizes the whole system for the dashboard endpoint.
func (db *DB) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{CampaignsByStatus: make(map[string]int)}

	err := db.conn.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM contacts),
		        (SELECT COUNT(*) FROM contacts WHERE is_active = 1),
		        (SELECT COUNT(*) FROM contact_groups),
		        (SELECT COUNT(*) FROM email_templates),
		        (SELECT COUNT(*) FROM campaigns),
		        (SELECT COUNT(*) FROM delivery_logs WHERE status = 'sent'),
		        (SELECT COUNT(*) FROM delivery_logs WHERE status IN ('failed', 'bounced'))`).
		Scan(&stats.TotalContacts, &stats.ActiveContacts, &stats.TotalGroups,
			&stats.TotalTemplates, &stats.TotalCampaigns, &stats.EmailsSent, &stats.EmailsFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate dashboard stats: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM campaigns GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count campaigns by status: %w", err)
	}
	defer closeQuietly(rows)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.CampaignsByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := queryAndScan(ctx, db.conn,
		`SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC LIMIT 5`,
		nil, scanCampaign)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent campaigns: %w", err)
	}
	stats.RecentCampaigns = recent

	return stats, nil
}
