// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/mreyes/mailfold/internal/database"
	"github.com/mreyes/mailfold/internal/mailer"
	"github.com/mreyes/mailfold/internal/models"
)

// ListCampaigns returns a paginated campaign list, optionally filtered
// with ?status=.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, offset := h.paginationParams(r)

	if status := r.URL.Query().Get("status"); status != "" && !models.CampaignStatus(status).IsValid() {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown campaign status", nil)
		return
	}

	campaigns, total, err := h.db.ListCampaigns(r.Context(), database.CampaignFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list campaigns", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"campaigns":  campaigns,
		"pagination": newPagination(total, len(campaigns), limit, offset),
	}, start)
}

// CreateCampaign creates a campaign. A template_id seeds subject and body
// fields the request leaves empty. The campaign must have a primary
// audience (groups or contacts) unless CC/BCC recipients are set. A future
// scheduled_at creates it in "scheduled" status, otherwise "draft".
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, ok := h.decodeCampaignRequest(w, r)
	if !ok {
		return
	}

	campaign := campaignFromRequest(req)
	if err := h.db.CreateCampaign(r.Context(), campaign); err != nil {
		respondStoreError(w, err, "Campaign")
		return
	}
	respondSuccess(w, http.StatusCreated, campaign, start)
}

// GetCampaign fetches a campaign with its resolved recipient count.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	campaign, err := h.db.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "Campaign")
		return
	}

	recipients, err := h.db.ResolveRecipients(r.Context(), campaign.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to resolve recipients", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"campaign":        campaign,
		"recipient_count": len(recipients),
	}, start)
}

// UpdateCampaign replaces a campaign's content and audience. Only draft
// and scheduled campaigns can be edited.
func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	existing, err := h.db.GetCampaign(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "Campaign")
		return
	}
	if existing.Status != models.CampaignStatusDraft && existing.Status != models.CampaignStatusScheduled {
		respondError(w, http.StatusConflict, "CONFLICT", "Only draft or scheduled campaigns can be edited", nil)
		return
	}

	req, ok := h.decodeCampaignRequest(w, r)
	if !ok {
		return
	}

	campaign := campaignFromRequest(req)
	campaign.ID = id
	if err := h.db.UpdateCampaign(r.Context(), campaign); err != nil {
		respondStoreError(w, err, "Campaign")
		return
	}
	respondSuccess(w, http.StatusOK, campaign, start)
}

// DeleteCampaign removes a campaign and its delivery logs.
func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.db.DeleteCampaign(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err, "Campaign")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "deleted"}, start)
}

// SendCampaign dispatches a campaign synchronously and returns the
// dispatch summary. The body is optional; {"individual": true} selects
// per-recipient personalized sends.
func (h *Handler) SendCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.SendCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", err)
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), chi.URLParam(r, "id"), req.Individual)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Campaign not found", nil)
		case errors.Is(err, mailer.ErrNotSendable):
			respondError(w, http.StatusConflict, "DISPATCH_ERROR", "Campaign is not in a sendable status", err)
		case errors.Is(err, mailer.ErrNoRecipients):
			respondError(w, http.StatusBadRequest, "DISPATCH_ERROR", "Campaign has no recipients", err)
		default:
			respondError(w, http.StatusInternalServerError, "DISPATCH_ERROR", "Failed to dispatch campaign", err)
		}
		return
	}

	respondSuccess(w, http.StatusOK, result, start)
}

// PauseCampaign moves a scheduled or sending campaign into "paused".
func (h *Handler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	campaign, err := h.db.GetCampaign(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "Campaign")
		return
	}
	if campaign.Status != models.CampaignStatusScheduled && campaign.Status != models.CampaignStatusSending {
		respondError(w, http.StatusConflict, "CONFLICT", "Only scheduled or sending campaigns can be paused", nil)
		return
	}

	if err := h.db.UpdateCampaignStatus(r.Context(), id, models.CampaignStatusPaused); err != nil {
		respondStoreError(w, err, "Campaign")
		return
	}
	campaign.Status = models.CampaignStatusPaused
	respondSuccess(w, http.StatusOK, campaign, start)
}

// CampaignStats returns per-campaign delivery aggregates.
func (h *Handler) CampaignStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	if _, err := h.db.GetCampaign(r.Context(), id); err != nil {
		respondStoreError(w, err, "Campaign")
		return
	}

	stats, err := h.db.GetCampaignStats(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load campaign stats", err)
		return
	}
	respondSuccess(w, http.StatusOK, stats, start)
}

// CampaignLogs lists per-recipient delivery logs, optionally filtered
// with ?status=.
func (h *Handler) CampaignLogs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	limit, offset := h.paginationParams(r)

	if _, err := h.db.GetCampaign(r.Context(), id); err != nil {
		respondStoreError(w, err, "Campaign")
		return
	}

	logs, total, err := h.db.ListDeliveryLogs(r.Context(), id, database.DeliveryLogFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list delivery logs", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"logs":       logs,
		"pagination": newPagination(total, len(logs), limit, offset),
	}, start)
}

// decodeCampaignRequest decodes and validates a campaign payload, seeding
// empty content fields from the referenced template first so a template-
// backed campaign can omit subject and body.
func (h *Handler) decodeCampaignRequest(w http.ResponseWriter, r *http.Request) (*models.CreateCampaignRequest, bool) {
	var req models.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", err)
		return nil, false
	}

	if req.TemplateID != "" {
		tmpl, err := h.db.GetTemplate(r.Context(), req.TemplateID)
		if err != nil {
			respondStoreError(w, err, "Template")
			return nil, false
		}
		if req.Subject == "" {
			req.Subject = tmpl.Subject
		}
		if req.BodyHTML == "" {
			req.BodyHTML = tmpl.BodyHTML
		}
		if req.BodyText == "" {
			req.BodyText = tmpl.BodyText
		}
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, apiErr)
		return nil, false
	}

	if len(req.GroupIDs) == 0 && len(req.ContactIDs) == 0 &&
		req.CC == "" && req.BCC == "" &&
		len(req.CCGroupIDs) == 0 && len(req.BCCGroupIDs) == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Campaign needs at least one group or contact, or CC/BCC recipients", nil)
		return nil, false
	}

	return &req, true
}

func campaignFromRequest(req *models.CreateCampaignRequest) *models.Campaign {
	return &models.Campaign{
		Name:        req.Name,
		Subject:     req.Subject,
		FromEmail:   req.FromEmail,
		FromName:    req.FromName,
		ReplyTo:     req.ReplyTo,
		CC:          req.CC,
		BCC:         req.BCC,
		BodyHTML:    req.BodyHTML,
		BodyText:    req.BodyText,
		ScheduledAt: req.ScheduledAt,
		GroupIDs:    req.GroupIDs,
		ContactIDs:  req.ContactIDs,
		CCGroupIDs:  req.CCGroupIDs,
		BCCGroupIDs: req.BCCGroupIDs,
	}
}
