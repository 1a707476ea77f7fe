// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mreyes/mailfold/internal/database"
	"github.com/mreyes/mailfold/internal/models"
)

// ListContacts returns a paginated contact list. Supports ?search=,
// ?group_id=, and ?active=true filters.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, offset := h.paginationParams(r)

	filter := database.ContactFilter{
		GroupID:    r.URL.Query().Get("group_id"),
		Search:     r.URL.Query().Get("search"),
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Limit:      limit,
		Offset:     offset,
	}

	contacts, total, err := h.db.ListContacts(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list contacts", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"contacts":   contacts,
		"pagination": newPagination(total, len(contacts), limit, offset),
	}, start)
}

// CreateContact creates a contact from a validated JSON body.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.CreateContactRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	contact := contactFromRequest(&req)
	if err := h.db.CreateContact(r.Context(), contact); err != nil {
		respondStoreError(w, err, "Contact")
		return
	}

	respondSuccess(w, http.StatusCreated, contact, start)
}

// GetContact fetches a single contact by ID.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	contact, err := h.db.GetContact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "Contact")
		return
	}
	respondSuccess(w, http.StatusOK, contact, start)
}

// UpdateContact replaces a contact's mutable fields.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.CreateContactRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	contact := contactFromRequest(&req)
	contact.ID = chi.URLParam(r, "id")
	if err := h.db.UpdateContact(r.Context(), contact); err != nil {
		respondStoreError(w, err, "Contact")
		return
	}

	respondSuccess(w, http.StatusOK, contact, start)
}

// DeleteContact removes a contact and its delivery logs.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.db.DeleteContact(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err, "Contact")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "deleted"}, start)
}

// ImportContacts ingests a multipart CSV upload. The file field must be
// named "file"; upload size is capped by the import configuration.
func (h *Handler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Import.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.Import.MaxUploadBytes); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "Upload exceeds the size limit", err)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", `Missing multipart "file" field`, err)
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.importer.Import(r.Context(), file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "IMPORT_ERROR", err.Error(), err)
		return
	}

	respondSuccess(w, http.StatusOK, result, start)
}

// contactFromRequest maps a request body onto the contact model. IsActive
// defaults to true when omitted.
func contactFromRequest(req *models.CreateContactRequest) *models.Contact {
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	return &models.Contact{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		GroupID:   req.GroupID,
		IsActive:  isActive,
	}
}
