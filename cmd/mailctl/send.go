// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mreyes/mailfold/internal/mailer"
)

var sendCmd = &cobra.Command{
	Use:   "send <campaign-id>",
	Short: "Dispatch a campaign through the configured SMTP server",
	Long: `Send prints a summary of the campaign (name, subject, resolved recipient
count) and asks for confirmation before dispatching. Pass --yes to skip
the prompt, and --individual to send one personalized message per
recipient instead of a single BCC blast.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().Bool("individual", false, "send one personalized message per recipient")
	sendCmd.Flags().Bool("yes", false, "skip the confirmation prompt")

	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	campaignID := args[0]
	individual, _ := cmd.Flags().GetBool("individual")
	skipConfirm, _ := cmd.Flags().GetBool("yes")

	cfg, db, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()

	campaign, err := db.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}
	recipients, err := db.ResolveRecipients(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	strategy := "blast"
	if individual {
		strategy = "individual"
	}

	fmt.Printf("Campaign:   %s\n", campaign.Name)
	fmt.Printf("Subject:    %s\n", campaign.Subject)
	fmt.Printf("Status:     %s\n", campaign.Status)
	fmt.Printf("Recipients: %d\n", len(recipients))
	fmt.Printf("Strategy:   %s\n", strategy)
	fmt.Printf("SMTP:       %s:%d\n", cfg.SMTP.Host, cfg.SMTP.Port)

	if !skipConfirm {
		fmt.Print("\nDispatch this campaign? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	sender := mailer.NewSMTPSender(&cfg.SMTP)
	dispatcher := mailer.NewDispatcher(db, sender, &cfg.SMTP)

	dispatchCtx, cancel := context.WithTimeout(ctx, cfg.Scheduler.DispatchTimeout)
	defer cancel()

	result, err := dispatcher.Dispatch(dispatchCtx, campaignID, individual)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	fmt.Printf("\nDispatched %s: %d sent, %d failed (of %d attempted) in %s\n",
		result.Strategy, result.Sent, result.Failed, result.Attempted, result.Duration.Round(time.Millisecond))
	if result.Failed > 0 {
		fmt.Println("Check the campaign's delivery logs for per-recipient errors.")
	}
	return nil
}
