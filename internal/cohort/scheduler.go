// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package cohort

import (
	"context"
	"time"

	"github.com/tomtom215/cursus/internal/config"
	"github.com/tomtom215/cursus/internal/logging"
)

// Scheduler runs the cohort sync on an interval and on demand. Implements
// suture.Service; a panic or returned error restarts it under supervision.
type Scheduler struct {
	syncer   *Syncer
	interval time.Duration
	trigger  chan struct{}
}

// NewScheduler creates a scheduler from cohort configuration.
func NewScheduler(syncer *Syncer, cfg config.CohortConfig) *Scheduler {
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate sync. Non-blocking; a pending request
// coalesces with later ones.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Serve runs the sync loop until ctx is canceled. The first sync runs
// immediately so the registry is populated right after startup.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		case <-s.trigger:
			s.run(ctx)
		}
	}
}

// run executes one sync; failures are logged and the loop continues, the
// next tick retries.
func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.syncer.SyncFromProfiles(ctx); err != nil {
		logging.Warn().Err(err).Msg("Cohort sync failed")
	}
}
