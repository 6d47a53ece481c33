// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package models

import "time"

// Processing stages recorded in the failure ledger.
const (
	StageDecode    = "decode"
	StageNormalize = "normalize"
	StageWrite     = "write"
)

// FailedStatement is one entry in the failure ledger. Entries are
// append-only: retry increments the count, resolve stamps ResolvedAt,
// nothing is ever cleared.
type FailedStatement struct {
	ID           int64      `json:"id"`
	StatementID  string     `json:"statement_id"`
	RawPayload   []byte     `json:"raw_payload"`
	ErrorType    string     `json:"error_type"`
	ErrorMessage string     `json:"error_message"`
	Stage        string     `json:"stage"`
	RetryCount   int        `json:"retry_count"`
	FailedAt     time.Time  `json:"failed_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// FailureFilter narrows ListFailures results. Zero values match everything.
type FailureFilter struct {
	Stage     string
	ErrorType string
	Limit     int
}
