// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/mreyes/mailfold/internal/models"
)

// createCampaignWith creates a contact and a campaign targeting it,
// returning both IDs.
func createCampaignWith(t *testing.T, ts *testServer, email string) (campaignID, contactID string) {
	t.Helper()
	contactID = createContact(t, ts, email)

	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/", models.CreateCampaignRequest{
		Name:       "Launch",
		Subject:    "Hello {{first_name}}",
		BodyHTML:   "<p>Hi</p>",
		ContactIDs: []string{contactID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed to create campaign: %d %s", rec.Code, rec.Body.String())
	}
	return dataMap(t, resp)["id"].(string), contactID
}

func TestCreateCampaignRequiresAudience(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/", models.CreateCampaignRequest{
		Name: "Empty", Subject: "S", BodyHTML: "<p>b</p>",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %+v", resp.Error)
	}

	// CC-only campaigns are allowed.
	rec, _ = ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/", models.CreateCampaignRequest{
		Name: "CC only", Subject: "S", BodyHTML: "<p>b</p>", CC: "watch@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201 for CC-only campaign, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateCampaignFromTemplate(t *testing.T) {
	ts := newTestServer(t)
	contactID := createContact(t, ts, "a@example.com")

	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/templates/", models.CreateTemplateRequest{
		Name: "Welcome", Subject: "Welcome aboard", BodyHTML: "<p>Welcome</p>", BodyText: "Welcome",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template: %d", rec.Code)
	}
	templateID := dataMap(t, resp)["id"].(string)

	// Subject and body come from the template.
	rec, resp = ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/", models.CreateCampaignRequest{
		Name:       "From template",
		TemplateID: templateID,
		ContactIDs: []string{contactID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, resp)
	if data["subject"] != "Welcome aboard" || data["body_html"] != "<p>Welcome</p>" {
		t.Errorf("expected template-seeded content, got %v", data)
	}
}

func TestCreateCampaignScheduled(t *testing.T) {
	ts := newTestServer(t)
	contactID := createContact(t, ts, "a@example.com")

	future := time.Now().Add(time.Hour).UTC()
	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/", models.CreateCampaignRequest{
		Name: "Later", Subject: "S", BodyHTML: "<p>b</p>",
		ContactIDs:  []string{contactID},
		ScheduledAt: &future,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if got := dataMap(t, resp)["status"]; got != string(models.CampaignStatusScheduled) {
		t.Errorf("expected scheduled status, got %v", got)
	}
}

func TestGetCampaignIncludesRecipientCount(t *testing.T) {
	ts := newTestServer(t)
	campaignID, _ := createCampaignWith(t, ts, "a@example.com")

	rec, resp := ts.doJSON(t, http.MethodGet, "/api/v1/campaigns/"+campaignID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data := dataMap(t, resp)
	if data["recipient_count"].(float64) != 1 {
		t.Errorf("expected recipient_count=1, got %v", data["recipient_count"])
	}
}

func TestSendCampaign(t *testing.T) {
	ts := newTestServer(t)
	campaignID, _ := createCampaignWith(t, ts, "a@example.com")

	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/"+campaignID+"/send", models.SendCampaignRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	data := dataMap(t, resp)
	if data["strategy"] != "blast" || data["sent"].(float64) != 1 {
		t.Errorf("unexpected dispatch result: %v", data)
	}

	// A sent campaign cannot be dispatched again.
	rec, resp = ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/"+campaignID+"/send", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 re-sending, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "DISPATCH_ERROR" {
		t.Errorf("expected DISPATCH_ERROR, got %+v", resp.Error)
	}
}

func TestSendCampaignNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/00000000-0000-4000-8000-000000000000/send", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateCampaignOnlyDraftOrScheduled(t *testing.T) {
	ts := newTestServer(t)
	campaignID, contactID := createCampaignWith(t, ts, "a@example.com")

	// Send it so it becomes "sent".
	rec, _ := ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/"+campaignID+"/send", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("send failed: %d", rec.Code)
	}

	rec, _ = ts.doJSON(t, http.MethodPut, "/api/v1/campaigns/"+campaignID, models.CreateCampaignRequest{
		Name: "Edited", Subject: "S", BodyHTML: "<p>b</p>", ContactIDs: []string{contactID},
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 editing a sent campaign, got %d", rec.Code)
	}
}

func TestPauseCampaign(t *testing.T) {
	ts := newTestServer(t)
	contactID := createContact(t, ts, "a@example.com")

	future := time.Now().Add(time.Hour).UTC()
	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/", models.CreateCampaignRequest{
		Name: "Later", Subject: "S", BodyHTML: "<p>b</p>",
		ContactIDs:  []string{contactID},
		ScheduledAt: &future,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	campaignID := dataMap(t, resp)["id"].(string)

	rec, resp = ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/"+campaignID+"/pause", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if got := dataMap(t, resp)["status"]; got != string(models.CampaignStatusPaused) {
		t.Errorf("expected paused, got %v", got)
	}

	// Draft campaigns cannot be paused.
	draftID, _ := createCampaignWith(t, ts, "b@example.com")
	rec, _ = ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/"+draftID+"/pause", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 pausing a draft, got %d", rec.Code)
	}
}

func TestCampaignStatsAndLogs(t *testing.T) {
	ts := newTestServer(t)
	campaignID, _ := createCampaignWith(t, ts, "a@example.com")

	rec, _ := ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/"+campaignID+"/send", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("send failed: %d", rec.Code)
	}

	rec, resp := ts.doJSON(t, http.MethodGet, "/api/v1/campaigns/"+campaignID+"/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", rec.Code)
	}
	stats := dataMap(t, resp)
	if stats["total_recipients"].(float64) != 1 || stats["sent"].(float64) != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}

	rec, resp = ts.doJSON(t, http.MethodGet, "/api/v1/campaigns/"+campaignID+"/logs?status=sent", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logs: expected 200, got %d", rec.Code)
	}
	logs := dataMap(t, resp)["logs"].([]interface{})
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	entry := logs[0].(map[string]interface{})
	if entry["status"] != string(models.DeliveryStatusSent) || entry["contact_email"] != "a@example.com" {
		t.Errorf("unexpected log entry: %v", entry)
	}
}

func TestSendCampaignFailureMarksFailed(t *testing.T) {
	ts := newTestServer(t)
	campaignID, _ := createCampaignWith(t, ts, "a@example.com")
	ts.sender.fail = true

	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/campaigns/"+campaignID+"/send", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with failure summary, got %d", rec.Code)
	}
	if dataMap(t, resp)["failed"].(float64) != 1 {
		t.Errorf("expected 1 failed send: %v", resp.Data)
	}

	rec, resp = ts.doJSON(t, http.MethodGet, "/api/v1/campaigns/"+campaignID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	campaign := dataMap(t, resp)["campaign"].(map[string]interface{})
	if campaign["status"] != string(models.CampaignStatusFailed) {
		t.Errorf("expected failed campaign, got %v", campaign["status"])
	}
}
