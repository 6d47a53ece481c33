// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package models

import (
	"time"

	json "github.com/goccy/go-json"
)

// UserProfile is the canonical identity for one learner, merged additively
// across every source that has seen them. Profiles are never deleted, only
// merged.
type UserProfile struct {
	UserID        string            `json:"user_id"` // normalized email or source-specific key
	Email         string            `json:"email,omitempty"`
	Name          string            `json:"name,omitempty"`
	Sources       []string          `json:"sources"` // union, e.g. ["csv", "xapi"]
	FirstSeen     time.Time         `json:"first_seen"`
	LastSeen      time.Time         `json:"last_seen"`
	ActivityCount int64             `json:"activity_count"`
	Metadata      []json.RawMessage `json:"metadata,omitempty"` // source-specific blobs, append-only
	Team          string            `json:"team,omitempty"`
	Group         string            `json:"group,omitempty"`
}

// HasSource reports whether the profile already lists the given source.
func (p *UserProfile) HasSource(source string) bool {
	for _, s := range p.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// Cohort is one row of the cohort registry, keyed by the deterministic
// cohort id derived from team and group.
type Cohort struct {
	CohortID       string    `json:"cohort_id"`
	Name           string    `json:"name"` // "{group} {team}"
	Team           string    `json:"team"`
	Group          string    `json:"group"`
	UserCount      int64     `json:"user_count"`
	StatementCount int64     `json:"statement_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}
