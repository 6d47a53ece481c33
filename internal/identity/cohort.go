// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package identity

import "strings"

// cohortPlaceholder substitutes for an absent team or group attribute so
// that every statement lands in some cohort.
const cohortPlaceholder = "X"

// CohortID derives the stable machine identifier for a (team, group) pair.
// Pure and deterministic: the batch cohort sync job and inline statement
// enrichment both call this and must produce identical ids for identical
// inputs.
func CohortID(team, group string) string {
	id := strings.ToLower(CohortName(team, group))
	id = strings.ReplaceAll(id, "-", "_")
	return strings.Join(strings.Fields(id), "_")
}

// CohortName composes the human-readable cohort name as "{group} {team}",
// defaulting absent attributes to a placeholder.
func CohortName(team, group string) string {
	team = strings.TrimSpace(team)
	group = strings.TrimSpace(group)
	if team == "" {
		team = cohortPlaceholder
	}
	if group == "" {
		group = cohortPlaceholder
	}
	return group + " " + team
}
