// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package ingest

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// DeadLetterMessage is the envelope published to the dead-letter stream.
// It wraps the original payload untouched so a repaired consumer or an
// operator retry can replay it, plus enough context to diagnose the failure
// without querying the ledger.
type DeadLetterMessage struct {
	StatementID  string          `json:"statement_id,omitempty"`
	RawPayload   json.RawMessage `json:"raw_payload"`
	ErrorType    string          `json:"error_type"`
	ErrorMessage string          `json:"error_message"`
	Stage        string          `json:"stage"`
	RetryCount   int             `json:"retry_count"`
	FailedAt     time.Time       `json:"failed_at"`
}

// EncodeDeadLetter serializes the envelope for publishing.
func EncodeDeadLetter(msg *DeadLetterMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode dead letter: %w", err)
	}
	return data, nil
}

// DecodeDeadLetter parses a dead-letter envelope from the stream.
func DecodeDeadLetter(data []byte) (*DeadLetterMessage, error) {
	var msg DeadLetterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode dead letter: %w", err)
	}
	return &msg, nil
}
