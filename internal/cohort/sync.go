// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

// Package cohort maintains the cohort registry: a derived, periodically
// rebuilt view that groups user profiles by their (team, group) attributes.
// The sync is additive; cohorts that lose their members stay in the
// registry with their counts frozen, never deleted.
package cohort

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/cursus/internal/identity"
	"github.com/tomtom215/cursus/internal/logging"
	"github.com/tomtom215/cursus/internal/metrics"
	"github.com/tomtom215/cursus/internal/models"
)

// ProfileStore is the warehouse surface the sync reads from and writes to.
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]*models.UserProfile, error)
	CountStatementsByCohort(ctx context.Context) (map[string]int64, error)
	UpsertCohort(ctx context.Context, c *models.Cohort) error
}

// Syncer rebuilds the cohort registry from user profiles.
type Syncer struct {
	store ProfileStore
}

// NewSyncer creates a Syncer.
func NewSyncer(store ProfileStore) *Syncer {
	return &Syncer{store: store}
}

// SyncFromProfiles groups every profile into its cohort, attaches user and
// statement counts, and upserts the registry. Returns the number of cohorts
// touched. The cohort id derivation is the same function the consumer uses
// for inline statement enrichment, so both views always agree.
func (s *Syncer) SyncFromProfiles(ctx context.Context) (int, error) {
	start := time.Now()

	n, err := s.sync(ctx)
	metrics.CohortSyncDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CohortSyncRuns.WithLabelValues("failure").Inc()
		return 0, err
	}

	metrics.CohortSyncRuns.WithLabelValues("success").Inc()
	metrics.CohortsTracked.Set(float64(n))
	logging.Info().Int("cohorts", n).Dur("elapsed", time.Since(start)).Msg("Cohort sync complete")
	return n, nil
}

func (s *Syncer) sync(ctx context.Context) (int, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("cohort sync: list profiles: %w", err)
	}

	statementCounts, err := s.store.CountStatementsByCohort(ctx)
	if err != nil {
		return 0, fmt.Errorf("cohort sync: count statements: %w", err)
	}

	now := time.Now().UTC()
	cohorts := make(map[string]*models.Cohort)
	for _, p := range profiles {
		id := identity.CohortID(p.Team, p.Group)
		c, ok := cohorts[id]
		if !ok {
			c = &models.Cohort{
				CohortID:  id,
				Name:      identity.CohortName(p.Team, p.Group),
				Team:      p.Team,
				Group:     p.Group,
				UpdatedAt: now,
			}
			cohorts[id] = c
		}
		c.UserCount++
	}

	ids := make([]string, 0, len(cohorts))
	for id := range cohorts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := cohorts[id]
		c.StatementCount = statementCounts[id]
		if err := s.store.UpsertCohort(ctx, c); err != nil {
			return 0, fmt.Errorf("cohort sync: upsert %s: %w", id, err)
		}
	}

	return len(cohorts), nil
}
