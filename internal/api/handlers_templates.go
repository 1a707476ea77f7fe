// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mreyes/mailfold/internal/models"
)

// ListTemplates returns all templates; ?active=true filters to active ones.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	templates, err := h.db.ListTemplates(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list templates", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"templates": templates}, start)
}

// CreateTemplate creates an email template.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.CreateTemplateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tmpl := templateFromRequest(&req)
	if err := h.db.CreateTemplate(r.Context(), tmpl); err != nil {
		respondStoreError(w, err, "Template")
		return
	}
	respondSuccess(w, http.StatusCreated, tmpl, start)
}

// GetTemplate fetches a template by ID.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	tmpl, err := h.db.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "Template")
		return
	}
	respondSuccess(w, http.StatusOK, tmpl, start)
}

// UpdateTemplate replaces a template's content.
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.CreateTemplateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tmpl := templateFromRequest(&req)
	tmpl.ID = chi.URLParam(r, "id")
	if err := h.db.UpdateTemplate(r.Context(), tmpl); err != nil {
		respondStoreError(w, err, "Template")
		return
	}
	respondSuccess(w, http.StatusOK, tmpl, start)
}

// DeleteTemplate removes a template. Campaigns keep their copied content.
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.db.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err, "Template")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "deleted"}, start)
}

func templateFromRequest(req *models.CreateTemplateRequest) *models.EmailTemplate {
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	return &models.EmailTemplate{
		Name:        req.Name,
		Description: req.Description,
		Subject:     req.Subject,
		BodyHTML:    req.BodyHTML,
		BodyText:    req.BodyText,
		IsActive:    isActive,
	}
}
