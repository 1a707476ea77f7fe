// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package database

import (
	"context"
	"testing"
	"time"

	"github.com/mreyes/mailfold/internal/models"
)

func TestUpsertDeliveryLogIsIdempotentPerPair(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	contact := mustCreateContact(t, db, "once@example.com", nil, true)
	c := mustCreateCampaign(t, db, &models.Campaign{ContactIDs: []string{contact.ID}})

	if err := db.UpsertDeliveryLog(ctx, &models.DeliveryLog{
		CampaignID:   c.ID,
		ContactID:    contact.ID,
		Status:       models.DeliveryStatusFailed,
		ErrorMessage: "connection refused",
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	sentAt := time.Now().UTC()
	if err := db.UpsertDeliveryLog(ctx, &models.DeliveryLog{
		CampaignID: c.ID,
		ContactID:  contact.ID,
		Status:     models.DeliveryStatusSent,
		SentAt:     &sentAt,
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	logs, total, err := db.ListDeliveryLogs(ctx, c.ID, DeliveryLogFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListDeliveryLogs: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("expected single upserted row, got %d", total)
	}
	log := logs[0]
	if log.Status != models.DeliveryStatusSent {
		t.Errorf("expected status updated to sent, got %q", log.Status)
	}
	if log.SentAt == nil {
		t.Error("expected sent_at set")
	}
	if log.ContactEmail != "once@example.com" {
		t.Errorf("expected contact email joined, got %q", log.ContactEmail)
	}
}

func TestListDeliveryLogsStatusFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ok := mustCreateContact(t, db, "ok@example.com", nil, true)
	bad := mustCreateContact(t, db, "bad@example.com", nil, true)
	c := mustCreateCampaign(t, db, &models.Campaign{ContactIDs: []string{ok.ID, bad.ID}})

	for _, log := range []*models.DeliveryLog{
		{CampaignID: c.ID, ContactID: ok.ID, Status: models.DeliveryStatusSent},
		{CampaignID: c.ID, ContactID: bad.ID, Status: models.DeliveryStatusFailed, ErrorMessage: "550 no such user"},
	} {
		if err := db.UpsertDeliveryLog(ctx, log); err != nil {
			t.Fatalf("UpsertDeliveryLog: %v", err)
		}
	}

	failed, total, err := db.ListDeliveryLogs(ctx, c.ID, DeliveryLogFilter{Status: "failed", Limit: 10})
	if err != nil {
		t.Fatalf("ListDeliveryLogs: %v", err)
	}
	if total != 1 || len(failed) != 1 || failed[0].ErrorMessage != "550 no such user" {
		t.Errorf("unexpected failed logs: total=%d %+v", total, failed)
	}
}

func TestMarkOpenedAndClicked(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	contact := mustCreateContact(t, db, "reader@example.com", nil, true)
	c := mustCreateCampaign(t, db, &models.Campaign{ContactIDs: []string{contact.ID}})

	if err := db.UpsertDeliveryLog(ctx, &models.DeliveryLog{
		CampaignID: c.ID, ContactID: contact.ID, Status: models.DeliveryStatusSent,
	}); err != nil {
		t.Fatalf("UpsertDeliveryLog: %v", err)
	}

	if err := db.MarkDeliveryClicked(ctx, c.ID, contact.ID); err != nil {
		t.Fatalf("MarkDeliveryClicked: %v", err)
	}

	logs, _, err := db.ListDeliveryLogs(ctx, c.ID, DeliveryLogFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListDeliveryLogs: %v", err)
	}
	log := logs[0]
	if !log.Clicked || log.ClickedAt == nil {
		t.Error("expected clicked flag and timestamp")
	}
	if !log.Opened || log.OpenedAt == nil {
		t.Error("expected click to imply open")
	}

	firstOpened := *log.OpenedAt
	if err := db.MarkDeliveryOpened(ctx, c.ID, contact.ID); err != nil {
		t.Fatalf("MarkDeliveryOpened: %v", err)
	}
	logs, _, _ = db.ListDeliveryLogs(ctx, c.ID, DeliveryLogFilter{Limit: 10})
	if !logs[0].OpenedAt.Equal(firstOpened) {
		t.Error("opened_at should keep the first open timestamp")
	}
}

func TestGetCampaignStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var contactIDs []string
	for _, email := range []string{"s1@example.com", "s2@example.com", "f1@example.com", "p1@example.com"} {
		contactIDs = append(contactIDs, mustCreateContact(t, db, email, nil, true).ID)
	}
	c := mustCreateCampaign(t, db, &models.Campaign{ContactIDs: contactIDs})

	statuses := []models.DeliveryStatus{
		models.DeliveryStatusSent, models.DeliveryStatusSent,
		models.DeliveryStatusFailed, models.DeliveryStatusPending,
	}
	for i, id := range contactIDs {
		if err := db.UpsertDeliveryLog(ctx, &models.DeliveryLog{
			CampaignID: c.ID, ContactID: id, Status: statuses[i],
		}); err != nil {
			t.Fatalf("UpsertDeliveryLog: %v", err)
		}
	}
	if err := db.MarkDeliveryOpened(ctx, c.ID, contactIDs[0]); err != nil {
		t.Fatalf("MarkDeliveryOpened: %v", err)
	}

	stats, err := db.GetCampaignStats(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCampaignStats: %v", err)
	}
	if stats.TotalRecipients != 4 || stats.Sent != 2 || stats.Failed != 1 || stats.Pending != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.DeliveryRate != 50 {
		t.Errorf("expected 50%% delivery rate, got %v", stats.DeliveryRate)
	}
	if stats.OpenRate != 50 {
		t.Errorf("expected 50%% open rate (1 of 2 sent), got %v", stats.OpenRate)
	}
}

func TestGetDashboardStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g := mustCreateGroup(t, db, "All")
	contact := mustCreateContact(t, db, "dash@example.com", &g.ID, true)
	mustCreateContact(t, db, "inactive@example.com", &g.ID, false)

	c := mustCreateCampaign(t, db, &models.Campaign{ContactIDs: []string{contact.ID}})
	if err := db.UpsertDeliveryLog(ctx, &models.DeliveryLog{
		CampaignID: c.ID, ContactID: contact.ID, Status: models.DeliveryStatusSent,
	}); err != nil {
		t.Fatalf("UpsertDeliveryLog: %v", err)
	}

	stats, err := db.GetDashboardStats(ctx)
	if err != nil {
		t.Fatalf("GetDashboardStats: %v", err)
	}
	if stats.TotalContacts != 2 || stats.ActiveContacts != 1 {
		t.Errorf("unexpected contact counts: %+v", stats)
	}
	if stats.TotalGroups != 1 || stats.TotalCampaigns != 1 {
		t.Errorf("unexpected group/campaign counts: %+v", stats)
	}
	if stats.EmailsSent != 1 || stats.EmailsFailed != 0 {
		t.Errorf("unexpected email counts: %+v", stats)
	}
	if stats.CampaignsByStatus["draft"] != 1 {
		t.Errorf("unexpected status map: %v", stats.CampaignsByStatus)
	}
	if len(stats.RecentCampaigns) != 1 {
		t.Errorf("expected 1 recent campaign, got %d", len(stats.RecentCampaigns))
	}
}
