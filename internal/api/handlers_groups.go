// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mreyes/mailfold/internal/database"
	"github.com/mreyes/mailfold/internal/models"
)

// ListGroups returns all contact groups with their member counts.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	groups, err := h.db.ListGroups(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list groups", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"groups": groups}, start)
}

// CreateGroup creates a contact group. Group names are unique.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.CreateGroupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	group := &models.ContactGroup{Name: req.Name, Description: req.Description}
	if err := h.db.CreateGroup(r.Context(), group); err != nil {
		respondStoreError(w, err, "Group")
		return
	}
	respondSuccess(w, http.StatusCreated, group, start)
}

// GetGroup fetches a group by ID.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	group, err := h.db.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "Group")
		return
	}
	respondSuccess(w, http.StatusOK, group, start)
}

// UpdateGroup renames a group or changes its description.
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.CreateGroupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	group := &models.ContactGroup{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.db.UpdateGroup(r.Context(), group); err != nil {
		respondStoreError(w, err, "Group")
		return
	}
	respondSuccess(w, http.StatusOK, group, start)
}

// DeleteGroup removes a group. Member contacts are kept and detached.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.db.DeleteGroup(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err, "Group")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "deleted"}, start)
}

// GroupContacts lists the contacts assigned to a group.
func (h *Handler) GroupContacts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	groupID := chi.URLParam(r, "id")

	if _, err := h.db.GetGroup(r.Context(), groupID); err != nil {
		respondStoreError(w, err, "Group")
		return
	}

	contacts, err := h.db.GroupContacts(r.Context(), groupID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list group contacts", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"contacts": contacts}, start)
}

// UnassignGroupContact removes a contact from a group without deleting the
// contact itself.
func (h *Handler) UnassignGroupContact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	groupID := chi.URLParam(r, "id")
	contactID := chi.URLParam(r, "contactID")

	if err := h.db.UnassignContactFromGroup(r.Context(), groupID, contactID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Contact is not in this group", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to unassign contact", err)
		return
	}

	contact, err := h.db.GetContact(r.Context(), contactID)
	if err != nil {
		respondStoreError(w, err, "Contact")
		return
	}
	respondSuccess(w, http.StatusOK, contact, start)
}
