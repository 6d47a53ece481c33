// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package safety

import "time"

// Alert sources and scopes.
const (
	SourceLive       = "live"
	SourceHistorical = "historical"

	ScopeInline      = "inline"
	ScopeRetroactive = "retroactive"
)

// UpdateMode selects how UpdateKeywords applies the new word list.
type UpdateMode string

const (
	// ModeAppend adds the given words to the existing set.
	ModeAppend UpdateMode = "append"
	// ModeReplace swaps the configured set for the given words. Historical
	// alerts for dropped words are retained.
	ModeReplace UpdateMode = "replace"
)

// AlertRecord is one detected trigger-word match. Created once per distinct
// (statement id, word-set) combination and never mutated afterwards except
// to attach delivery metadata.
type AlertRecord struct {
	ID           string            `json:"id"`
	StatementID  string            `json:"statement_id"`
	Matches      []string          `json:"matches"` // sorted matched words
	DetectedAt   time.Time         `json:"detected_at"`
	Source       string            `json:"source"` // live or historical
	Scope        string            `json:"scope"`  // inline or retroactive
	ActorID      string            `json:"actor_id,omitempty"`
	Excerpt      string            `json:"excerpt,omitempty"`
	DeliveryMeta map[string]string `json:"delivery_meta,omitempty"`
}

// KeywordInfo is the per-word configuration state.
type KeywordInfo struct {
	Word              string    `json:"word"`
	AddedAt           time.Time `json:"added_at"`
	RetroScanComplete bool      `json:"retro_scan_complete"`
	MatchCount        int64     `json:"match_count"`
}

// Summary is the read-only aggregate view over the retention window.
type Summary struct {
	TotalAlerts   int              `json:"total_alerts"`
	ByWord        map[string]int   `json:"by_word"`
	BySource      map[string]int   `json:"by_source"`
	Keywords      []KeywordInfo    `json:"keywords"`
	WindowDays    int              `json:"window_days"`
	OldestAlert   *time.Time       `json:"oldest_alert,omitempty"`
	NewestAlert   *time.Time       `json:"newest_alert,omitempty"`
}
