// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

// Package mailer delivers campaign email over SMTP and orchestrates
// campaign dispatch: recipient resolution, personalization, send
// strategies, and per-recipient delivery bookkeeping.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/logging"
	"github.com/mreyes/mailfold/internal/metrics"
)

// Machine-readable delivery error codes.
const (
	ErrorCodeInvalidRecipient  = "INVALID_RECIPIENT"
	ErrorCodeInvalidConfig     = "INVALID_CONFIG"
	ErrorCodeConnectionFailed  = "CONNECTION_FAILED"
	ErrorCodeAuthFailed        = "AUTH_FAILED"
	ErrorCodeRateLimited       = "RATE_LIMITED"
	ErrorCodeContentTooLarge   = "CONTENT_TOO_LARGE"
	ErrorCodeRecipientNotFound = "RECIPIENT_NOT_FOUND"
	ErrorCodeServerError       = "SERVER_ERROR"
	ErrorCodeTimeout           = "TIMEOUT"
	ErrorCodeCircuitOpen       = "CIRCUIT_OPEN"
	ErrorCodeUnknown           = "UNKNOWN"
)

// Message is a single outbound email. BCC addresses are used for the
// SMTP envelope only and never appear in the message headers.
type Message struct {
	FromEmail string
	FromName  string
	ReplyTo   string
	To        []string
	CC        []string
	BCC       []string
	Subject   string
	BodyHTML  string
	BodyText  string
}

// SendResult reports the outcome of a single send attempt. Delivery
// failures are captured in the result rather than returned as errors so
// callers can do per-recipient bookkeeping without unwrapping.
type SendResult struct {
	Success      bool
	DeliveredAt  *time.Time
	ErrorMessage string
	ErrorCode    string
	IsTransient  bool
}

// Sender delivers a single email message.
type Sender interface {
	Send(ctx context.Context, msg *Message) *SendResult
}

// SMTPSender implements Sender over SMTP with STARTTLS, a circuit
// breaker guarding the upstream server, and outbound rate limiting.
type SMTPSender struct {
	cfg     *config.SMTPConfig
	breaker *gobreaker.CircuitBreaker[struct{}]
	limiter *rate.Limiter
}

// NewSMTPSender creates an SMTP sender from configuration.
func NewSMTPSender(cfg *config.SMTPConfig) *SMTPSender {
	settings := gobreaker.Settings{
		Name:    "smtp",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("SMTP circuit breaker state changed")
			metrics.SMTPBreakerState.Set(breakerStateValue(to))
		},
	}

	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}

	return &SMTPSender{
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// Send delivers the message. The envelope recipient list is the union of
// To, CC, and BCC addresses.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) *SendResult {
	result := &SendResult{}

	if s.cfg.Host == "" {
		result.ErrorMessage = "SMTP host is not configured"
		result.ErrorCode = ErrorCodeInvalidConfig
		return result
	}

	recipients := envelopeRecipients(msg)
	if len(recipients) == 0 {
		result.ErrorMessage = "message has no recipients"
		result.ErrorCode = ErrorCodeInvalidRecipient
		return result
	}
	for _, rcpt := range recipients {
		if err := ValidateEmail(rcpt); err != nil {
			result.ErrorMessage = err.Error()
			result.ErrorCode = ErrorCodeInvalidRecipient
			return result
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		result.ErrorMessage = err.Error()
		result.ErrorCode = ErrorCodeTimeout
		result.IsTransient = true
		return result
	}

	body := buildMessage(msg)

	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.sendSMTP(ctx, recipients, body)
	})
	if err != nil {
		result.ErrorMessage = err.Error()
		result.ErrorCode = classifyError(err)
		result.IsTransient = isTransientError(result.ErrorCode)
		return result
	}

	now := time.Now().UTC()
	result.Success = true
	result.DeliveredAt = &now
	return result
}

// envelopeRecipients returns the full RCPT TO list for a message.
func envelopeRecipients(msg *Message) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{msg.To, msg.CC, msg.BCC} {
		for _, addr := range list {
			key := strings.ToLower(strings.TrimSpace(addr))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(addr))
		}
	}
	return out
}

// buildMessage constructs the RFC 5322 message with headers. BCC is
// deliberately omitted from the headers.
func buildMessage(m *Message) string {
	var msg strings.Builder

	fromName := m.FromName
	if fromName == "" {
		fromName = "Mailfold"
	}

	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, m.FromEmail))
	if len(m.To) > 0 {
		msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(m.To, ", ")))
	}
	if len(m.CC) > 0 {
		msg.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(m.CC, ", ")))
	}
	if m.ReplyTo != "" {
		msg.WriteString(fmt.Sprintf("Reply-To: %s\r\n", m.ReplyTo))
	}
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", m.Subject))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	msg.WriteString(fmt.Sprintf("Message-ID: <%d.%s>\r\n", time.Now().UnixNano(), m.FromEmail))
	msg.WriteString("MIME-Version: 1.0\r\n")

	hasHTML := m.BodyHTML != ""
	hasText := m.BodyText != ""

	switch {
	case hasHTML && hasText:
		// Multipart message with both HTML and text
		boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())
		msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary))
		msg.WriteString("\r\n")

		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(m.BodyText)
		msg.WriteString("\r\n")

		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		msg.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(m.BodyHTML)
		msg.WriteString("\r\n")

		msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	case hasHTML:
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(m.BodyHTML)
	default:
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(m.BodyText)
	}

	return msg.String()
}

// sendSMTP performs the SMTP conversation: connect, STARTTLS, auth,
// MAIL FROM, RCPT TO for each envelope recipient, DATA, QUIT.
func (s *SMTPSender) sendSMTP(ctx context.Context, recipients []string, msg string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // Best effort cleanup

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // Best effort cleanup

	if s.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}

	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// Quit failures after a successful DATA are ignored - the message
	// was accepted by the server.
	_ = client.Quit()

	return nil
}

// ValidateEmail validates an email address format.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email address is required")
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid email address format: %s", email)
	}
	if !strings.Contains(parts[1], ".") {
		return fmt.Errorf("invalid email domain: %s", parts[1])
	}
	return nil
}

// classifyError classifies a delivery error into an error code.
func classifyError(err error) string {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "circuit breaker is open"),
		strings.Contains(errStr, "too many requests"):
		return ErrorCodeCircuitOpen
	case strings.Contains(errStr, "authentication") || strings.Contains(errStr, "auth"):
		return ErrorCodeAuthFailed
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "connect"):
		return ErrorCodeConnectionFailed
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ErrorCodeTimeout
	case strings.Contains(errStr, "recipient") || strings.Contains(errStr, "mailbox"):
		return ErrorCodeRecipientNotFound
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "limit"):
		return ErrorCodeRateLimited
	case strings.Contains(errStr, "too large") || strings.Contains(errStr, "size"):
		return ErrorCodeContentTooLarge
	}

	return ErrorCodeUnknown
}

// isTransientError returns true if the error code is retryable.
func isTransientError(code string) bool {
	switch code {
	case ErrorCodeConnectionFailed, ErrorCodeTimeout, ErrorCodeRateLimited,
		ErrorCodeServerError, ErrorCodeCircuitOpen:
		return true
	default:
		return false
	}
}
