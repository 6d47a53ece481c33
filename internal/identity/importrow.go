// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package identity

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/cursus/internal/models"
)

// Candidate column names searched in priority order when mapping
// spreadsheet-style import rows. Matching is case-insensitive on the
// normalized (trimmed, lowercased, space/underscore-folded) header.
var (
	emailColumns = []string{"email", "email_address", "e_mail", "mail", "user_email"}
	nameColumns  = []string{"name", "full_name", "display_name", "username", "user"}
	firstColumns = []string{"first_name", "firstname", "given_name"}
	lastColumns  = []string{"last_name", "lastname", "surname", "family_name"}
	teamColumns  = []string{"team", "team_name"}
	groupColumns = []string{"group", "group_name", "class", "cohort"}
)

// FromImportRow maps one spreadsheet row onto a UserProfile fragment.
// Email is searched across candidate columns and normalized; the name falls
// back to concatenated first/last columns when no direct name column exists.
// The whole row is preserved as a metadata blob so no imported information
// is lost even when no column matched.
func (n *Normalizer) FromImportRow(row map[string]string) models.UserProfile {
	normalized := make(map[string]string, len(row))
	for k, v := range row {
		normalized[normalizeHeader(k)] = strings.TrimSpace(v)
	}

	now := time.Now().UTC()
	profile := models.UserProfile{
		Sources:       []string{SourceCSV},
		FirstSeen:     now,
		LastSeen:      now,
		ActivityCount: 1,
	}

	if email := firstMatch(normalized, emailColumns); email != "" {
		email = n.NormalizeEmail(email)
		profile.UserID = email
		profile.Email = email
	}

	if name := firstMatch(normalized, nameColumns); name != "" {
		profile.Name = name
	} else {
		first := firstMatch(normalized, firstColumns)
		last := firstMatch(normalized, lastColumns)
		profile.Name = strings.TrimSpace(first + " " + last)
	}

	profile.Team = firstMatch(normalized, teamColumns)
	profile.Group = firstMatch(normalized, groupColumns)

	if blob, err := json.Marshal(row); err == nil {
		profile.Metadata = []json.RawMessage{blob}
	}

	return profile
}

// RowCohort derives the cohort for an import row from its team and group
// columns, using the same deterministic derivation as inline enrichment.
func RowCohort(row map[string]string) (id, name string) {
	normalized := make(map[string]string, len(row))
	for k, v := range row {
		normalized[normalizeHeader(k)] = strings.TrimSpace(v)
	}
	team := firstMatch(normalized, teamColumns)
	group := firstMatch(normalized, groupColumns)
	return CohortID(team, group), CohortName(team, group)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

func firstMatch(row map[string]string, candidates []string) string {
	for _, c := range candidates {
		if v, ok := row[c]; ok && v != "" {
			return v
		}
	}
	return ""
}
