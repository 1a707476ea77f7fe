// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/mailer"
	"github.com/mreyes/mailfold/internal/models"
)

type noopStore struct{}

func (noopStore) DueScheduledCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	return nil, nil
}

func TestSchedulerServiceLifecycle(t *testing.T) {
	scheduler := mailer.NewScheduler(noopStore{}, nil, &config.SchedulerConfig{
		Enabled:         true,
		CheckInterval:   10 * time.Millisecond,
		DispatchTimeout: time.Second,
	})
	svc := NewSchedulerService(scheduler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler service did not stop")
	}
}

func TestSchedulerServiceStartError(t *testing.T) {
	scheduler := mailer.NewScheduler(noopStore{}, nil, &config.SchedulerConfig{Enabled: false})
	svc := NewSchedulerService(scheduler)

	if err := svc.Serve(context.Background()); err == nil {
		t.Fatal("expected error when scheduler is disabled")
	}
}

func TestSchedulerServiceString(t *testing.T) {
	if got := (&SchedulerService{}).String(); got != "campaign-scheduler" {
		t.Errorf("unexpected name %q", got)
	}
}
