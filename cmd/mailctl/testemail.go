// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mreyes/mailfold/internal/mailer"
)

var testEmailCmd = &cobra.Command{
	Use:   "test-email",
	Short: "Send a configuration test message",
	Long: `Test-email sends a small test message through the configured SMTP server
to verify host, port, credentials, and TLS settings before dispatching a
real campaign.`,
	RunE: runTestEmail,
}

func init() {
	testEmailCmd.Flags().String("to", "", "recipient address for the test message (required)")
	_ = testEmailCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(testEmailCmd)
}

func runTestEmail(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	if err := mailer.ValidateEmail(to); err != nil {
		return fmt.Errorf("invalid --to address: %w", err)
	}

	cfg, db, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	fmt.Printf("Sending test message via %s:%d (TLS: %t)...\n", cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.UseTLS)

	sender := mailer.NewSMTPSender(&cfg.SMTP)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := sender.Send(ctx, &mailer.Message{
		FromEmail: cfg.SMTP.FromEmail,
		FromName:  cfg.SMTP.FromName,
		To:        []string{to},
		Subject:   "Mailfold test message",
		BodyHTML:  "<p>This is a Mailfold SMTP configuration test.</p>",
		BodyText:  "This is a Mailfold SMTP configuration test.",
	})

	if result.Success {
		fmt.Printf("Test message delivered to %s.\n", to)
		return nil
	}

	fmt.Printf("Send failed (%s): %s\n", result.ErrorCode, result.ErrorMessage)
	switch result.ErrorCode {
	case mailer.ErrorCodeInvalidConfig:
		fmt.Println("Hint: set SMTP_HOST and SMTP_FROM_EMAIL in the environment or config file.")
	case mailer.ErrorCodeAuthFailed:
		fmt.Println("Hint: check SMTP_USERNAME and SMTP_PASSWORD.")
	case mailer.ErrorCodeConnectionFailed:
		fmt.Println("Hint: check SMTP_HOST/SMTP_PORT and whether the server requires TLS (SMTP_USE_TLS).")
	case mailer.ErrorCodeTimeout:
		fmt.Println("Hint: the server did not respond in time; a firewall may be blocking the port.")
	}
	return fmt.Errorf("test message was not delivered")
}
