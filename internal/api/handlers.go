// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

// Package api provides the HTTP surface: chi routing, request handling,
// and the standard response envelope.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/mreyes/mailfold/internal/auth"
	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/database"
	"github.com/mreyes/mailfold/internal/importer"
	"github.com/mreyes/mailfold/internal/logging"
	"github.com/mreyes/mailfold/internal/mailer"
	"github.com/mreyes/mailfold/internal/models"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, health, auth, dashboard (this file)
//   - handlers_contacts.go: contact CRUD and CSV import
//   - handlers_groups.go: contact group CRUD and membership
//   - handlers_templates.go: email template CRUD
//   - handlers_campaigns.go: campaign CRUD, dispatch, stats, logs
type Handler struct {
	db         *database.DB
	cfg        *config.Config
	jwtManager *auth.JWTManager
	basicAuth  *auth.BasicAuthManager
	dispatcher *mailer.Dispatcher
	importer   *importer.Importer
	startTime  time.Time
}

// NewHandler creates an API handler. jwtManager and basicAuth may be nil
// when the corresponding auth mode is not configured.
func NewHandler(db *database.DB, cfg *config.Config, jwtManager *auth.JWTManager, basicAuth *auth.BasicAuthManager, dispatcher *mailer.Dispatcher) *Handler {
	return &Handler{
		db:         db,
		cfg:        cfg,
		jwtManager: jwtManager,
		basicAuth:  basicAuth,
		dispatcher: dispatcher,
		importer:   importer.NewImporter(db),
		startTime:  time.Now(),
	}
}

// Health reports overall service health including database connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	dbStatus := "ok"
	status := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		dbStatus = "unavailable"
		status = http.StatusServiceUnavailable
	}

	respondSuccess(w, status, map[string]interface{}{
		"status":         dbStatus,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	}, start)
}

// HealthLive is the liveness probe. It succeeds whenever the process can
// serve requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady is the readiness probe: the service is ready once the
// database answers pings.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Database is not reachable", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, start)
}

// Login exchanges admin credentials for a signed JWT. Only available when
// auth mode is "jwt".
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Security.AuthMode != "jwt" || h.jwtManager == nil || h.basicAuth == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "JWT authentication is not enabled", nil)
		return
	}

	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if !h.basicAuth.Verify(req.Username, req.Password) {
		logging.Warn().Str("username", sanitizeLogValue(req.Username)).Msg("Failed login attempt")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid username or password", nil)
		return
	}

	token, err := h.jwtManager.GenerateToken(req.Username, "admin")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUTHENTICATION_ERROR", "Failed to generate token", err)
		return
	}

	respondSuccess(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtManager.SessionTimeout()),
		Username:  req.Username,
		Role:      "admin",
	}, time.Now())
}

// Dashboard returns aggregate totals and the most recent campaigns.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	stats, err := h.db.GetDashboardStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load dashboard stats", err)
		return
	}
	respondSuccess(w, http.StatusOK, stats, start)
}

// respondStoreError maps storage sentinel errors onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", resource+" not found", nil)
	case errors.Is(err, database.ErrDuplicate):
		respondError(w, http.StatusConflict, "CONFLICT", resource+" already exists", nil)
	default:
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Storage operation failed", err)
	}
}
