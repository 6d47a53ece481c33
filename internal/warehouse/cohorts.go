// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/cursus/internal/metrics"
	"github.com/tomtom215/cursus/internal/models"
)

// UpsertCohort writes one cohort registry row with update-if-matched
// semantics, the same conditional merge pattern as the statement writer.
// Cohorts are never deleted here; removal is a separate administrative
// action.
func (db *DB) UpsertCohort(ctx context.Context, c *models.Cohort) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cohorts (cohort_id, name, team, "group", user_count, statement_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cohort_id) DO UPDATE SET
			name = excluded.name,
			team = excluded.team,
			"group" = excluded."group",
			user_count = excluded.user_count,
			statement_count = excluded.statement_count,
			updated_at = excluded.updated_at`,
		c.CohortID, c.Name, c.Team, c.Group, c.UserCount, c.StatementCount, c.UpdatedAt,
	)
	metrics.ObserveDBQuery("upsert", "cohorts", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert cohort %s: %w", c.CohortID, err)
	}
	return nil
}

// ListCohorts returns the full cohort registry ordered by id.
func (db *DB) ListCohorts(ctx context.Context) ([]*models.Cohort, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT cohort_id, name, team, "group", user_count, statement_count, updated_at
		FROM cohorts ORDER BY cohort_id`)
	metrics.ObserveDBQuery("list", "cohorts", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list cohorts: %w", err)
	}
	defer rows.Close()

	var out []*models.Cohort
	for rows.Next() {
		var c models.Cohort
		if err := rows.Scan(&c.CohortID, &c.Name, &c.Team, &c.Group,
			&c.UserCount, &c.StatementCount, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cohort row: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cohort list iteration failed: %w", err)
	}
	return out, nil
}
