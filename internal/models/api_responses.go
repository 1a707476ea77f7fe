// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP endpoints.
//
// Status field values:
//   - "success": request completed successfully, see Data field
//   - "error": request failed, see Error field for details
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"total": 42, "contacts": [...]},
//	  "metadata": {"timestamp": "2026-08-23T12:00:00Z", "query_time_ms": 3}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError represents an error response with structured details.
//
// Common error codes:
//   - VALIDATION_ERROR: invalid input parameters
//   - DATABASE_ERROR: query execution failure
//   - NOT_FOUND: resource doesn't exist
//   - CONFLICT: uniqueness violation (e.g. duplicate contact email)
//   - DISPATCH_ERROR: campaign send failure
//   - AUTHENTICATION_ERROR: invalid/missing credentials
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Pagination contains offset-based pagination metadata for list responses.
type Pagination struct {
	Total   int  `json:"total"`
	Count   int  `json:"count"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// LoginRequest is the JWT login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the signed JWT token for subsequent requests.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// CreateContactRequest is the payload for creating or updating a contact.
type CreateContactRequest struct {
	Email     string  `json:"email" validate:"required,email"`
	FirstName string  `json:"first_name" validate:"max=100"`
	LastName  string  `json:"last_name" validate:"max=100"`
	GroupID   *string `json:"group_id,omitempty" validate:"omitempty,uuid4"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// CreateGroupRequest is the payload for creating or updating a contact group.
type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=1000"`
}

// CreateTemplateRequest is the payload for creating or updating a template.
type CreateTemplateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=1000"`
	Subject     string `json:"subject" validate:"required,min=1,max=500"`
	BodyHTML    string `json:"body_html" validate:"required"`
	BodyText    string `json:"body_text"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// CreateCampaignRequest is the payload for creating or updating a campaign.
// A campaign needs at least one group or individual contact as its primary
// audience unless CC/BCC recipients are provided. A future ScheduledAt puts
// the campaign in "scheduled" status; otherwise it is created as a draft.
type CreateCampaignRequest struct {
	Name        string     `json:"name" validate:"required,min=1,max=200"`
	Subject     string     `json:"subject" validate:"required,min=1,max=500"`
	FromEmail   string     `json:"from_email" validate:"omitempty,email"`
	FromName    string     `json:"from_name" validate:"max=200"`
	ReplyTo     string     `json:"reply_to" validate:"omitempty,email"`
	CC          string     `json:"cc"`
	BCC         string     `json:"bcc"`
	BodyHTML    string     `json:"body_html" validate:"required"`
	BodyText    string     `json:"body_text"`
	TemplateID  string     `json:"template_id" validate:"omitempty,uuid4"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	GroupIDs    []string `json:"group_ids" validate:"dive,uuid4"`
	ContactIDs  []string `json:"contact_ids" validate:"dive,uuid4"`
	CCGroupIDs  []string `json:"cc_group_ids" validate:"dive,uuid4"`
	BCCGroupIDs []string `json:"bcc_group_ids" validate:"dive,uuid4"`
}

// SendCampaignRequest is the payload for dispatching a campaign.
type SendCampaignRequest struct {
	// Individual selects per-recipient personalized sends instead of a
	// single BCC blast.
	Individual bool `json:"individual"`
}

// ImportResult reports the outcome of a CSV contact import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
