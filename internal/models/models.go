// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

// Package models defines the domain entities for Mailfold: contacts,
// contact groups, email templates, campaigns, and per-recipient delivery logs.
package models

import (
	"strings"
	"time"
)

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

// Campaign statuses.
const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// IsValid returns true for a known campaign status.
func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusSent, CampaignStatusPaused, CampaignStatusFailed:
		return true
	}
	return false
}

// IsSendable reports whether a campaign in this status may be dispatched.
// Campaigns that are already mid-send or completed are not re-dispatched;
// failed and paused campaigns may be retried.
func (s CampaignStatus) IsSendable() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusPaused, CampaignStatusFailed:
		return true
	}
	return false
}

// DeliveryStatus represents the state of a single recipient delivery.
type DeliveryStatus string

// Delivery statuses.
const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSending DeliveryStatus = "sending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
	DeliveryStatusBounced DeliveryStatus = "bounced"
)

// IsValid returns true for a known delivery status.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusSending, DeliveryStatusSent,
		DeliveryStatusFailed, DeliveryStatusBounced:
		return true
	}
	return false
}

// ContactGroup is a named collection of contacts used as a campaign audience.
type ContactGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// ContactCount is populated by list/detail queries.
	ContactCount int `json:"contact_count"`
}

// Contact is a single email recipient. Email addresses are unique across
// the system; inactive contacts are excluded from recipient resolution.
type Contact struct {
	ID        string    `json:"id"`
	GroupID   *string   `json:"group_id,omitempty"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns "First Last", or whichever part is set.
func (c *Contact) FullName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Email
	}
	return name
}

// EmailTemplate is reusable campaign content. Creating a campaign from a
// template copies the subject and bodies at creation time.
type EmailTemplate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Subject     string    `json:"subject"`
	BodyHTML    string    `json:"body_html"`
	BodyText    string    `json:"body_text,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Campaign is a bulk email send. The primary audience is the union of the
// linked groups' active contacts and the individually selected contacts.
// CC and BCC carry comma-separated address lists; CCGroupIDs and BCCGroupIDs
// add whole groups to the respective header lists.
type Campaign struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name,omitempty"`
	ReplyTo   string `json:"reply_to,omitempty"`
	CC        string `json:"cc,omitempty"`
	BCC       string `json:"bcc,omitempty"`
	BodyHTML  string `json:"body_html"`
	BodyText  string `json:"body_text,omitempty"`

	Status      CampaignStatus `json:"status"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`

	GroupIDs    []string `json:"group_ids"`
	ContactIDs  []string `json:"contact_ids"`
	CCGroupIDs  []string `json:"cc_group_ids,omitempty"`
	BCCGroupIDs []string `json:"bcc_group_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CCAddresses returns the parsed CC address list.
func (c *Campaign) CCAddresses() []string {
	return splitAddressList(c.CC)
}

// BCCAddresses returns the parsed BCC address list.
func (c *Campaign) BCCAddresses() []string {
	return splitAddressList(c.BCC)
}

// splitAddressList splits a comma-separated address list, trimming whitespace
// and dropping empty entries.
func splitAddressList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DeliveryLog records the delivery outcome for one (campaign, contact) pair.
// Rows are upserted: re-sending a campaign updates the existing row.
type DeliveryLog struct {
	ID           string         `json:"id"`
	CampaignID   string         `json:"campaign_id"`
	ContactID    string         `json:"contact_id"`
	ContactEmail string         `json:"contact_email,omitempty"`
	Status       DeliveryStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`

	Opened    bool       `json:"opened"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	Clicked   bool       `json:"clicked"`
	ClickedAt *time.Time `json:"clicked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CampaignStats aggregates delivery log counts for one campaign.
type CampaignStats struct {
	CampaignID      string  `json:"campaign_id"`
	TotalRecipients int     `json:"total_recipients"`
	Pending         int     `json:"pending"`
	Sending         int     `json:"sending"`
	Sent            int     `json:"sent"`
	Failed          int     `json:"failed"`
	Bounced         int     `json:"bounced"`
	Opened          int     `json:"opened"`
	Clicked         int     `json:"clicked"`
	DeliveryRate    float64 `json:"delivery_rate"`
	OpenRate        float64 `json:"open_rate"`
	ClickRate       float64 `json:"click_rate"`
}

// DashboardStats summarizes the system for the dashboard endpoint.
type DashboardStats struct {
	TotalContacts     int            `json:"total_contacts"`
	ActiveContacts    int            `json:"active_contacts"`
	TotalGroups       int            `json:"total_groups"`
	TotalTemplates    int            `json:"total_templates"`
	TotalCampaigns    int            `json:"total_campaigns"`
	CampaignsByStatus map[string]int `json:"campaigns_by_status"`
	EmailsSent        int            `json:"emails_sent"`
	EmailsFailed      int            `json:"emails_failed"`
	RecentCampaigns   []Campaign     `json:"recent_campaigns"`
}
