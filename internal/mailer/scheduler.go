// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package mailer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mreyes/mailfold/internal/config"
	"github.com/mreyes/mailfold/internal/logging"
	"github.com/mreyes/mailfold/internal/metrics"
	"github.com/mreyes/mailfold/internal/models"
)

// SchedulerStore is the storage surface the scheduler needs on top of
// what the dispatcher already uses.
type SchedulerStore interface {
	DueScheduledCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error)
}

// Scheduler polls for scheduled campaigns whose send time has passed and
// dispatches them with the blast strategy.
type Scheduler struct {
	store      SchedulerStore
	dispatcher *Dispatcher
	cfg        *config.SchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a campaign scheduler.
func NewScheduler(store SchedulerStore, dispatcher *Dispatcher, cfg *config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Start begins the polling loop. It is an error to start a running scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if !s.cfg.Enabled {
		return fmt.Errorf("scheduler is disabled")
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx)

	logging.Info().
		Dur("check_interval", s.cfg.CheckInterval).
		Msg("Campaign scheduler started")
	return nil
}

// Stop halts the polling loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	logging.Info().Msg("Campaign scheduler stopped")
}

// run is the polling loop.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkAndDispatch(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// checkAndDispatch finds due campaigns and dispatches each one. Failures
// are logged and do not stop other due campaigns from being sent.
func (s *Scheduler) checkAndDispatch(ctx context.Context) {
	due, err := s.store.DueScheduledCampaigns(ctx, time.Now())
	if err != nil {
		logging.Error().Err(err).Msg("Failed to query due campaigns")
		return
	}

	for i := range due {
		campaign := &due[i]

		dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
		result, err := s.dispatcher.Dispatch(dispatchCtx, campaign.ID, false)
		cancel()

		if err != nil {
			logging.Error().
				Err(err).
				Str("campaign_id", campaign.ID).
				Msg("Scheduled dispatch failed")
			continue
		}

		metrics.ScheduledCampaignsTriggered.Inc()
		logging.Info().
			Str("campaign_id", campaign.ID).
			Int("sent", result.Sent).
			Int("failed", result.Failed).
			Msg("Scheduled campaign dispatched")
	}
}
