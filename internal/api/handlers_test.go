// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/mreyes/mailfold/internal/auth"
	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/database"
	"github.com/mreyes/mailfold/internal/mailer"
	"github.com/mreyes/mailfold/internal/models"
)

// stubSender is a mailer.Sender that always succeeds.
type stubSender struct {
	fail bool
}

func (s *stubSender) Send(ctx context.Context, msg *mailer.Message) *mailer.SendResult {
	if s.fail {
		return &mailer.SendResult{ErrorMessage: "boom", ErrorCode: mailer.ErrorCodeServerError}
	}
	now := time.Now().UTC()
	return &mailer.SendResult{Success: true, DeliveredAt: &now}
}

type testServer struct {
	db      *database.DB
	sender  *stubSender
	handler http.Handler
}

// newTestServer builds a full router backed by an in-memory database with
// auth mode "none" and rate limiting disabled.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	cfg := &config.Config{
		SMTP: config.SMTPConfig{
			FromEmail: "news@example.com",
			FromName:  "Mailfold",
		},
		Import: config.ImportConfig{MaxUploadBytes: 1 << 20},
		API:    config.APIConfig{DefaultPageSize: 20, MaxPageSize: 100},
		Security: config.SecurityConfig{
			AuthMode:          "none",
			RateLimitDisabled: true,
		},
	}

	sender := &stubSender{}
	dispatcher := mailer.NewDispatcher(db, sender, &cfg.SMTP)
	handler := NewHandler(db, cfg, nil, nil, dispatcher)
	authMW := auth.NewMiddleware(nil, nil, "none", 100, time.Minute, true, nil)

	return &testServer{
		db:      db,
		sender:  sender,
		handler: NewRouter(handler, authMW, cfg).Setup(),
	}
}

// doJSON performs a request with an optional JSON body and decodes the
// envelope.
func (ts *testServer) doJSON(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *models.APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	// Auth middleware failures respond with plain text, everything else
	// with the JSON envelope.
	var resp models.APIResponse
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, &resp
}

// dataMap re-decodes the envelope's Data field as a map.
func dataMap(t *testing.T, resp *models.APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object data, got %T", resp.Data)
	}
	return m
}

func createContact(t *testing.T, ts *testServer, email string) string {
	t.Helper()
	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/contacts/", models.CreateContactRequest{Email: email})
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed to create contact: %d %s", rec.Code, rec.Body.String())
	}
	return dataMap(t, resp)["id"].(string)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready"} {
		rec, resp := ts.doJSON(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
		if resp.Status != "success" {
			t.Errorf("%s: expected success envelope, got %q", path, resp.Status)
		}
	}
}

func TestLoginDisabledWithoutJWT(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.doJSON(t, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Username: "admin", Password: "pw"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 when JWT auth is off, got %d", rec.Code)
	}
}

func TestContactCRUD(t *testing.T) {
	ts := newTestServer(t)

	id := createContact(t, ts, "ada@example.com")

	rec, resp := ts.doJSON(t, http.MethodGet, "/api/v1/contacts/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	if got := dataMap(t, resp)["email"]; got != "ada@example.com" {
		t.Errorf("unexpected email %v", got)
	}

	rec, _ = ts.doJSON(t, http.MethodPut, "/api/v1/contacts/"+id, models.CreateContactRequest{
		Email: "ada@example.com", FirstName: "Ada",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rec.Code)
	}

	rec, _ = ts.doJSON(t, http.MethodDelete, "/api/v1/contacts/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}

	rec, _ = ts.doJSON(t, http.MethodGet, "/api/v1/contacts/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateContactValidation(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/contacts/", models.CreateContactRequest{Email: "not-an-email"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %+v", resp.Error)
	}
}

func TestCreateContactDuplicateConflict(t *testing.T) {
	ts := newTestServer(t)
	createContact(t, ts, "dup@example.com")

	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/contacts/", models.CreateContactRequest{Email: "DUP@example.com"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "CONFLICT" {
		t.Errorf("expected CONFLICT, got %+v", resp.Error)
	}
}

func TestListContactsPagination(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 5; i++ {
		createContact(t, ts, fmt.Sprintf("c%d@example.com", i))
	}

	rec, resp := ts.doJSON(t, http.MethodGet, "/api/v1/contacts/?limit=2&offset=0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data := dataMap(t, resp)
	pagination := data["pagination"].(map[string]interface{})
	if pagination["total"].(float64) != 5 || pagination["count"].(float64) != 2 {
		t.Errorf("unexpected pagination: %v", pagination)
	}
	if pagination["has_more"] != true {
		t.Error("expected has_more=true")
	}
}

func TestGroupCRUDAndUnassign(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/groups/", models.CreateGroupRequest{Name: "Customers"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	groupID := dataMap(t, resp)["id"].(string)

	rec, resp = ts.doJSON(t, http.MethodPost, "/api/v1/contacts/", models.CreateContactRequest{
		Email: "member@example.com", GroupID: &groupID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create contact: expected 201, got %d", rec.Code)
	}
	contactID := dataMap(t, resp)["id"].(string)

	rec, resp = ts.doJSON(t, http.MethodGet, "/api/v1/groups/"+groupID+"/contacts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("group contacts: expected 200, got %d", rec.Code)
	}
	if members := dataMap(t, resp)["contacts"].([]interface{}); len(members) != 1 {
		t.Errorf("expected 1 member, got %d", len(members))
	}

	rec, _ = ts.doJSON(t, http.MethodDelete, "/api/v1/groups/"+groupID+"/contacts/"+contactID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unassign: expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	// Contact still exists, just detached.
	rec, resp = ts.doJSON(t, http.MethodGet, "/api/v1/contacts/"+contactID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected contact kept, got %d", rec.Code)
	}
	if got := dataMap(t, resp)["group_id"]; got != nil {
		t.Errorf("expected detached contact, group_id=%v", got)
	}

	// A detached contact is no longer a member; repeat unassign is a 404.
	rec, _ = ts.doJSON(t, http.MethodDelete, "/api/v1/groups/"+groupID+"/contacts/"+contactID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("repeat unassign: expected 404, got %d", rec.Code)
	}
}

func TestTemplateCRUD(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.doJSON(t, http.MethodPost, "/api/v1/templates/", models.CreateTemplateRequest{
		Name: "Welcome", Subject: "Hi {{first_name}}", BodyHTML: "<p>Welcome</p>",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	id := dataMap(t, resp)["id"].(string)

	rec, _ = ts.doJSON(t, http.MethodGet, "/api/v1/templates/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	rec, _ = ts.doJSON(t, http.MethodDelete, "/api/v1/templates/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t)
	createContact(t, ts, "a@example.com")

	rec, resp := ts.doJSON(t, http.MethodGet, "/api/v1/stats/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data := dataMap(t, resp)
	if data["total_contacts"].(float64) != 1 {
		t.Errorf("unexpected dashboard data: %v", data)
	}
}
