// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cursus/internal/models"
	"github.com/tomtom215/cursus/internal/warehouse"
)

type mockLedger struct {
	mu       sync.Mutex
	entries  []*models.FailedStatement
	retries  map[int64]int
	resolved map[string]bool

	recordErr error
	nextID    int64
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		retries:  make(map[int64]int),
		resolved: make(map[string]bool),
	}
}

func (m *mockLedger) RecordFailure(_ context.Context, f *models.FailedStatement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.nextID++
	f.ID = m.nextID
	m.entries = append(m.entries, f)
	return nil
}

func (m *mockLedger) ListFailures(_ context.Context, filter models.FailureFilter) ([]*models.FailedStatement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.FailedStatement
	for _, e := range m.entries {
		if m.resolved[e.StatementID] {
			continue
		}
		if filter.Stage != "" && e.Stage != filter.Stage {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockLedger) LatestUnresolvedFailure(_ context.Context, statementID string) (*models.FailedStatement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].StatementID == statementID && !m.resolved[statementID] {
			return m.entries[i], nil
		}
	}
	return nil, warehouse.ErrNotFound
}

func (m *mockLedger) IncrementRetry(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[id]++
	return nil
}

func (m *mockLedger) ResolveFailures(_ context.Context, statementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved[statementID] = true
	return nil
}

func (m *mockLedger) CountUnresolvedFailures(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.entries {
		if !m.resolved[e.StatementID] {
			n++
		}
	}
	return n, nil
}

type mockSink struct {
	mu        sync.Mutex
	published []*DeadLetterMessage
	err       error
}

func (m *mockSink) PublishDeadLetter(_ context.Context, dlm *DeadLetterMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, dlm)
	return nil
}

func TestRecordFailureLedgerAndSink(t *testing.T) {
	ledger := newMockLedger()
	sink := &mockSink{}
	r := NewRecovery(ledger, sink)

	r.RecordFailure(context.Background(), "stmt-1", []byte(`{"id":"stmt-1"}`),
		"decode_error", "malformed payload", models.StageDecode)

	if len(ledger.entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(ledger.entries))
	}
	if ledger.entries[0].Stage != models.StageDecode || ledger.entries[0].ErrorType != "decode_error" {
		t.Errorf("entry = %+v", ledger.entries[0])
	}
	if len(sink.published) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(sink.published))
	}
	if sink.published[0].StatementID != "stmt-1" || sink.published[0].FailedAt.IsZero() {
		t.Errorf("envelope = %+v", sink.published[0])
	}
}

func TestRecordFailureSurvivesLedgerError(t *testing.T) {
	ledger := newMockLedger()
	ledger.recordErr = errors.New("disk full")
	sink := &mockSink{}
	r := NewRecovery(ledger, sink)

	// Must not panic or propagate; the dead letter still goes out.
	r.RecordFailure(context.Background(), "stmt-1", []byte(`{}`),
		"write_error", "insert failed", models.StageWrite)

	if len(sink.published) != 1 {
		t.Errorf("dead letters = %d, want 1 despite ledger failure", len(sink.published))
	}
}

func TestRecordFailureSurvivesSinkError(t *testing.T) {
	ledger := newMockLedger()
	sink := &mockSink{err: errors.New("broker down")}
	r := NewRecovery(ledger, sink)

	r.RecordFailure(context.Background(), "stmt-1", []byte(`{}`),
		"write_error", "insert failed", models.StageWrite)

	if len(ledger.entries) != 1 {
		t.Errorf("ledger entries = %d, want 1 despite sink failure", len(ledger.entries))
	}
}

func TestRetryRepublishes(t *testing.T) {
	ledger := newMockLedger()
	sink := &mockSink{}
	r := NewRecovery(ledger, sink)

	r.RecordFailure(context.Background(), "stmt-1", []byte(`{"id":"stmt-1"}`),
		"write_error", "insert failed", models.StageWrite)
	sink.published = nil

	if err := r.Retry(context.Background(), "stmt-1"); err != nil {
		t.Fatal(err)
	}
	if len(sink.published) != 1 {
		t.Fatalf("republished = %d, want 1", len(sink.published))
	}
	if sink.published[0].RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", sink.published[0].RetryCount)
	}
	if got := ledger.retries[ledger.entries[0].ID]; got != 1 {
		t.Errorf("ledger retry count = %d, want 1", got)
	}
}

func TestRetryNotFound(t *testing.T) {
	r := NewRecovery(newMockLedger(), &mockSink{})
	err := r.Retry(context.Background(), "never-failed")
	if !errors.Is(err, warehouse.ErrNotFound) {
		t.Errorf("Retry error = %v, want ErrNotFound", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	ledger := newMockLedger()
	r := NewRecovery(ledger, nil)

	r.RecordFailure(context.Background(), "stmt-1", []byte(`{}`),
		"decode_error", "bad", models.StageDecode)

	if err := r.Resolve(context.Background(), "stmt-1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Resolve(context.Background(), "stmt-1"); err != nil {
		t.Errorf("second resolve errored: %v", err)
	}

	// Resolved entries disappear from the unresolved listing, and a retry
	// now reports not found.
	list, err := r.ListFailures(context.Background(), models.FailureFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("unresolved after resolve = %d, want 0", len(list))
	}
	if err := r.Retry(context.Background(), "stmt-1"); !errors.Is(err, warehouse.ErrNotFound) {
		t.Errorf("retry of resolved statement = %v, want ErrNotFound", err)
	}
}

func TestDeadLetterRoundTrip(t *testing.T) {
	in := &DeadLetterMessage{
		StatementID:  "stmt-9",
		RawPayload:   []byte(`{"id":"stmt-9"}`),
		ErrorType:    "decode_error",
		ErrorMessage: "malformed payload",
		Stage:        models.StageDecode,
		RetryCount:   2,
		FailedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := EncodeDeadLetter(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeDeadLetter(data)
	if err != nil {
		t.Fatal(err)
	}
	if out.StatementID != in.StatementID || out.Stage != in.Stage || out.RetryCount != 2 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
