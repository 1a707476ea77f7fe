// Mailfold - Bulk Email Campaign Manager
// Copyright 2026 M. Reyes (mreyes)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mreyes/mailfold

package services

import (
	"context"
	"fmt"

	"github.com/mreyes/mailfold/internal/mailer"
)

// SchedulerService runs the campaign scheduler under supervision. The
// scheduler manages its own polling goroutine; this wrapper ties its
// lifetime to the supervision context.
type SchedulerService struct {
	scheduler *mailer.Scheduler
}

// NewSchedulerService wraps a scheduler as a supervised service.
func NewSchedulerService(scheduler *mailer.Scheduler) *SchedulerService {
	return &SchedulerService{scheduler: scheduler}
}

// Serve implements suture.Service. It blocks until the context is
// canceled, then stops the scheduler and waits for its loop to exit.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	<-ctx.Done()
	s.scheduler.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *SchedulerService) String() string {
	return "campaign-scheduler"
}
