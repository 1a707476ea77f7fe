// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/models"
)

func schedulerConfig() *config.SchedulerConfig {
	return &config.SchedulerConfig{
		Enabled:         true,
		CheckInterval:   10 * time.Millisecond,
		DispatchTimeout: time.Second,
	}
}

func TestSchedulerStartStop(t *testing.T) {
	store := newFakeStore(testCampaign(), testRecipients())
	s := NewScheduler(store, testDispatcher(store, &fakeSender{}), schedulerConfig())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error starting a running scheduler")
	}

	s.Stop()
	// Stop on an idle scheduler is a no-op.
	s.Stop()
}

func TestSchedulerDisabled(t *testing.T) {
	cfg := schedulerConfig()
	cfg.Enabled = false
	store := newFakeStore(testCampaign(), testRecipients())
	s := NewScheduler(store, testDispatcher(store, &fakeSender{}), cfg)

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error when scheduler is disabled")
	}
}

func TestSchedulerDispatchesDueCampaign(t *testing.T) {
	campaign := testCampaign()
	campaign.Status = models.CampaignStatusScheduled
	store := newFakeStore(campaign, testRecipients())
	store.due = []models.Campaign{*campaign}
	sender := &fakeSender{}

	s := NewScheduler(store, testDispatcher(store, sender), schedulerConfig())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for sender.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never dispatched the due campaign")
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()

	if got := store.campaignStatus(); got != models.CampaignStatusSent {
		t.Errorf("expected dispatched campaign to be sent, got %s", got)
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newFakeStore(testCampaign(), nil)
	s := NewScheduler(store, testDispatcher(store, &fakeSender{}), schedulerConfig())

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	select {
	case <-s.doneCh:
	case <-time.After(time.Second):
		t.Fatal("scheduler loop did not exit on context cancel")
	}
}
