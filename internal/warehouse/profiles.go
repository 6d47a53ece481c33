// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/cursus/internal/identity"
	"github.com/tomtom215/cursus/internal/logging"
	"github.com/tomtom215/cursus/internal/metrics"
	"github.com/tomtom215/cursus/internal/models"
)

// GetProfile loads a profile by user id. Returns ErrNotFound when absent.
func (db *DB) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT user_id, email, name, sources, first_seen, last_seen,
		       activity_count, metadata, team, "group"
		FROM user_profiles WHERE user_id = ?`, userID)
	profile, err := scanProfile(row)
	metrics.ObserveDBQuery("get", "user_profiles", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}
	return profile, nil
}

// GetProfileByEmail loads a profile by normalized email. Returns ErrNotFound
// when absent.
func (db *DB) GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT user_id, email, name, sources, first_seen, last_seen,
		       activity_count, metadata, team, "group"
		FROM user_profiles WHERE email = ? LIMIT 1`, email)
	profile, err := scanProfile(row)
	metrics.ObserveDBQuery("get_by_email", "user_profiles", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile by email %s: %w", email, err)
	}
	return profile, nil
}

// MergeProfile folds a profile fragment into the stored profile for the same
// user id (or, failing that, the same email) and persists the result. First
// sighting stores the fragment as-is. Merging is strictly additive per
// identity.Merge.
func (db *DB) MergeProfile(ctx context.Context, fragment models.UserProfile) (*models.UserProfile, error) {
	if fragment.UserID == "" {
		return nil, fmt.Errorf("profile fragment has no user id")
	}

	existing, err := db.GetProfile(ctx, fragment.UserID)
	if err == ErrNotFound && fragment.Email != "" {
		existing, err = db.GetProfileByEmail(ctx, fragment.Email)
	}

	var merged models.UserProfile
	switch {
	case err == ErrNotFound:
		merged = fragment
	case err != nil:
		return nil, err
	default:
		merged = identity.Merge(*existing, fragment)
	}

	if err := db.upsertProfile(ctx, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// upsertProfile writes the merged profile with update-if-matched semantics.
func (db *DB) upsertProfile(ctx context.Context, p *models.UserProfile) error {
	sources, err := json.Marshal(p.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO user_profiles (
			user_id, email, name, sources, first_seen, last_seen,
			activity_count, metadata, team, "group", updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			sources = excluded.sources,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			activity_count = excluded.activity_count,
			metadata = excluded.metadata,
			team = excluded.team,
			"group" = excluded."group",
			updated_at = now()`,
		p.UserID, p.Email, p.Name, string(sources), p.FirstSeen, p.LastSeen,
		p.ActivityCount, string(metadata), p.Team, p.Group,
	)
	metrics.ObserveDBQuery("upsert", "user_profiles", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", p.UserID, err)
	}
	return nil
}

// SetProfileCohort attaches team and group attributes to a profile so the
// batch cohort sync can group it. Missing profiles are ignored.
func (db *DB) SetProfileCohort(ctx context.Context, userID, team, group string) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		UPDATE user_profiles SET team = ?, "group" = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`, team, group, userID)
	metrics.ObserveDBQuery("set_cohort", "user_profiles", start, err)
	if err != nil {
		return fmt.Errorf("failed to set cohort attributes for %s: %w", userID, err)
	}
	return nil
}

// ListProfiles returns every stored profile. The cohort sync walks this to
// recompute cohort membership.
func (db *DB) ListProfiles(ctx context.Context) ([]*models.UserProfile, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, email, name, sources, first_seen, last_seen,
		       activity_count, metadata, team, "group"
		FROM user_profiles ORDER BY user_id`)
	metrics.ObserveDBQuery("list", "user_profiles", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile list iteration failed: %w", err)
	}
	return out, nil
}

// ProfileCohortAttrs carries the team/group pair the sync groups by.
type ProfileCohortAttrs struct {
	Team  string
	Group string
}

func scanProfile(row rowScanner) (*models.UserProfile, error) {
	var (
		p        models.UserProfile
		email    sql.NullString
		name     sql.NullString
		sources  string
		metadata sql.NullString
		team     sql.NullString
		group    sql.NullString
	)
	err := row.Scan(&p.UserID, &email, &name, &sources, &p.FirstSeen, &p.LastSeen,
		&p.ActivityCount, &metadata, &team, &group)
	if err != nil {
		return nil, err
	}
	p.Email = email.String
	p.Name = name.String
	p.Team = team.String
	p.Group = group.String
	if err := json.Unmarshal([]byte(sources), &p.Sources); err != nil {
		logging.Warn().Err(err).Str("user_id", p.UserID).Msg("Failed to decode profile sources")
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &p.Metadata); err != nil {
			logging.Warn().Err(err).Str("user_id", p.UserID).Msg("Failed to decode profile metadata")
		}
	}
	return &p, nil
}

// ProfileCohort returns the stored team/group attributes for a user.
// Profiles without attributes return zero values, which the cohort
// derivation maps to the placeholder cohort.
func (db *DB) ProfileCohort(ctx context.Context, userID string) (ProfileCohortAttrs, error) {
	start := time.Now()
	var team, group sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT team, "group" FROM user_profiles WHERE user_id = ?`, userID).
		Scan(&team, &group)
	metrics.ObserveDBQuery("get_cohort", "user_profiles", start, err)
	if err == sql.ErrNoRows {
		return ProfileCohortAttrs{}, ErrNotFound
	}
	if err != nil {
		return ProfileCohortAttrs{}, fmt.Errorf("failed to load cohort attrs for %s: %w", userID, err)
	}
	return ProfileCohortAttrs{Team: team.String, Group: group.String}, nil
}
