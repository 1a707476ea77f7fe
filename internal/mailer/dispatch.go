// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/logging"
	"github.com/mreyes/mailfold/internal/metrics"
	"github.com/mreyes/mailfold/internal/models"
)

// Strategy identifies how a campaign's messages are composed.
type Strategy string

const (
	// StrategyBlast sends one message with all primary recipients in the
	// SMTP envelope BCC. This is the default.
	StrategyBlast Strategy = "blast"

	// StrategyIndividual sends one personalized message per recipient.
	StrategyIndividual Strategy = "individual"

	// StrategyHeaderOnly sends one message addressed only via CC/BCC,
	// used when a campaign has no primary recipients.
	StrategyHeaderOnly Strategy = "header_only"
)

// Dispatch errors.
var (
	ErrNoRecipients = errors.New("campaign has no recipients")
	ErrNotSendable  = errors.New("campaign is not in a sendable status")
)

// Store is the storage surface the dispatcher needs.
type Store interface {
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error
	ResolveRecipients(ctx context.Context, campaignID string) ([]models.Contact, error)
	GroupMemberEmails(ctx context.Context, groupIDs []string) ([]string, error)
	UpsertDeliveryLog(ctx context.Context, log *models.DeliveryLog) error
}

// DispatchResult summarizes a completed dispatch.
type DispatchResult struct {
	CampaignID string        `json:"campaign_id"`
	Strategy   Strategy      `json:"strategy"`
	Recipients int           `json:"recipients"`
	Attempted  int           `json:"attempted"`
	Sent       int           `json:"sent"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// Dispatcher orchestrates campaign sends: it resolves recipients, picks a
// strategy, drives the Sender, and keeps delivery logs and campaign status
// up to date.
type Dispatcher struct {
	store  Store
	sender Sender
	cfg    *config.SMTPConfig
}

// NewDispatcher creates a campaign dispatcher.
func NewDispatcher(store Store, sender Sender, cfg *config.SMTPConfig) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, cfg: cfg}
}

// Dispatch sends a campaign. When individual is true, each primary
// recipient gets a personalized message; otherwise all primary recipients
// receive a single blast via envelope BCC. A campaign with no primary
// recipients but CC/BCC addresses is sent header-only, without per-contact
// delivery logs, whichever mode was requested.
//
// Sends are sequential. A per-recipient failure in individual mode does
// not stop the loop; the campaign ends "failed" only when every send
// failed.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID string, individual bool) (*DispatchResult, error) {
	start := time.Now()

	campaign, err := d.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.IsSendable() {
		return nil, fmt.Errorf("campaign %s has status %q: %w", campaignID, campaign.Status, ErrNotSendable)
	}

	recipients, err := d.store.ResolveRecipients(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	cc, err := d.resolveHeaderList(ctx, campaign.CCAddresses(), campaign.CCGroupIDs)
	if err != nil {
		return nil, err
	}
	bcc, err := d.resolveHeaderList(ctx, campaign.BCCAddresses(), campaign.BCCGroupIDs)
	if err != nil {
		return nil, err
	}

	if len(recipients) == 0 && len(cc) == 0 && len(bcc) == 0 {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrNoRecipients)
	}

	strategy := StrategyBlast
	switch {
	case len(recipients) == 0:
		strategy = StrategyHeaderOnly
	case individual:
		strategy = StrategyIndividual
	}

	logging.Info().
		Str("campaign_id", campaignID).
		Str("strategy", string(strategy)).
		Int("recipients", len(recipients)).
		Int("cc", len(cc)).
		Int("bcc", len(bcc)).
		Msg("Dispatching campaign")

	if err := d.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusSending); err != nil {
		return nil, err
	}
	d.markRecipients(ctx, campaignID, recipients, models.DeliveryStatusSending, "", nil)

	result := &DispatchResult{
		CampaignID: campaignID,
		Strategy:   strategy,
		Recipients: len(recipients),
	}

	base := d.baseMessage(campaign)

	switch strategy {
	case StrategyIndividual:
		d.sendIndividual(ctx, campaign, recipients, base, result)
	case StrategyHeaderOnly:
		d.sendHeaderOnly(ctx, base, cc, bcc, result)
	default:
		d.sendBlast(ctx, campaignID, recipients, base, cc, bcc, result)
	}

	finalStatus := models.CampaignStatusSent
	if result.Attempted > 0 && result.Sent == 0 {
		finalStatus = models.CampaignStatusFailed
	}
	if err := d.store.UpdateCampaignStatus(ctx, campaignID, finalStatus); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	metrics.RecordDispatch(string(strategy), string(finalStatus), len(recipients), result.Duration)

	logging.Info().
		Str("campaign_id", campaignID).
		Str("status", string(finalStatus)).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Campaign dispatch finished")

	return result, nil
}

// baseMessage builds the unpersonalized message template for a campaign,
// applying configured sender defaults and the plaintext fallback.
func (d *Dispatcher) baseMessage(c *models.Campaign) *Message {
	fromEmail := c.FromEmail
	if fromEmail == "" {
		fromEmail = d.cfg.FromEmail
	}
	fromName := c.FromName
	if fromName == "" {
		fromName = d.cfg.FromName
	}
	bodyText := c.BodyText
	if bodyText == "" {
		bodyText = HTMLToPlaintext(c.BodyHTML)
	}

	return &Message{
		FromEmail: fromEmail,
		FromName:  fromName,
		ReplyTo:   c.ReplyTo,
		Subject:   c.Subject,
		BodyHTML:  c.BodyHTML,
		BodyText:  bodyText,
	}
}

// resolveHeaderList merges explicit addresses with active group member
// emails, deduplicated case-insensitively, preserving first appearance.
func (d *Dispatcher) resolveHeaderList(ctx context.Context, explicit []string, groupIDs []string) ([]string, error) {
	memberEmails, err := d.store.GroupMemberEmails(ctx, groupIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, addr := range append(explicit, memberEmails...) {
		key := strings.ToLower(strings.TrimSpace(addr))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(addr))
	}
	return out, nil
}

// sendIndividual sends one personalized message per recipient.
func (d *Dispatcher) sendIndividual(ctx context.Context, campaign *models.Campaign, recipients []models.Contact, base *Message, result *DispatchResult) {
	for i := range recipients {
		contact := &recipients[i]

		msg := *base
		msg.To = []string{contact.Email}
		msg.Subject = Personalize(base.Subject, contact)
		msg.BodyHTML = Personalize(base.BodyHTML, contact)
		msg.BodyText = Personalize(base.BodyText, contact)

		result.Attempted++
		sendResult := d.sender.Send(ctx, &msg)
		if sendResult.Success {
			result.Sent++
			metrics.RecordEmailSent(string(StrategyIndividual))
			d.upsertLog(ctx, campaign.ID, contact.ID, models.DeliveryStatusSent, "", sendResult.DeliveredAt)
			continue
		}

		result.Failed++
		metrics.RecordEmailFailed(string(StrategyIndividual), sendResult.ErrorCode)
		logging.Warn().
			Str("campaign_id", campaign.ID).
			Str("email", contact.Email).
			Str("error_code", sendResult.ErrorCode).
			Msg("Individual send failed")
		d.upsertLog(ctx, campaign.ID, contact.ID, models.DeliveryStatusFailed, sendResult.ErrorMessage, nil)
	}
}

// sendBlast sends a single message with all primary recipients in the
// envelope BCC. Delivery logs for every recipient share the outcome.
func (d *Dispatcher) sendBlast(ctx context.Context, campaignID string, recipients []models.Contact, base *Message, cc, bcc []string, result *DispatchResult) {
	msg := *base
	msg.To = []string{base.FromEmail}
	msg.CC = cc
	msg.BCC = append(contactEmails(recipients), bcc...)

	result.Attempted = 1
	sendResult := d.sender.Send(ctx, &msg)
	if sendResult.Success {
		result.Sent = 1
		metrics.RecordEmailSent(string(StrategyBlast))
		d.markRecipients(ctx, campaignID, recipients, models.DeliveryStatusSent, "", sendResult.DeliveredAt)
		return
	}

	result.Failed = 1
	metrics.RecordEmailFailed(string(StrategyBlast), sendResult.ErrorCode)
	d.markRecipients(ctx, campaignID, recipients, models.DeliveryStatusFailed, sendResult.ErrorMessage, nil)
}

// sendHeaderOnly sends a single message addressed via CC/BCC only.
// There are no primary recipients, so no per-contact logs are written.
func (d *Dispatcher) sendHeaderOnly(ctx context.Context, base *Message, cc, bcc []string, result *DispatchResult) {
	msg := *base
	msg.To = []string{base.FromEmail}
	msg.CC = cc
	msg.BCC = bcc

	result.Attempted = 1
	sendResult := d.sender.Send(ctx, &msg)
	if sendResult.Success {
		result.Sent = 1
		metrics.RecordEmailSent(string(StrategyHeaderOnly))
		return
	}
	result.Failed = 1
	metrics.RecordEmailFailed(string(StrategyHeaderOnly), sendResult.ErrorCode)
}

// markRecipients upserts every recipient's delivery log to one status.
func (d *Dispatcher) markRecipients(ctx context.Context, campaignID string, recipients []models.Contact, status models.DeliveryStatus, errorMessage string, sentAt *time.Time) {
	for i := range recipients {
		d.upsertLog(ctx, campaignID, recipients[i].ID, status, errorMessage, sentAt)
	}
}

func (d *Dispatcher) upsertLog(ctx context.Context, campaignID, contactID string, status models.DeliveryStatus, errorMessage string, sentAt *time.Time) {
	err := d.store.UpsertDeliveryLog(ctx, &models.DeliveryLog{
		CampaignID:   campaignID,
		ContactID:    contactID,
		Status:       status,
		ErrorMessage: errorMessage,
		SentAt:       sentAt,
	})
	if err != nil {
		logging.Error().
			Err(err).
			Str("campaign_id", campaignID).
			Str("contact_id", contactID).
			Msg("Failed to upsert delivery log")
	}
}

func contactEmails(contacts []models.Contact) []string {
	emails := make([]string, len(contacts))
	for i := range contacts {
		emails[i] = contacts[i].Email
	}
	return emails
}
