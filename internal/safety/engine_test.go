// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package safety

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cursus/internal/models"
)

// mockSearcher returns canned historical statements per word.
type mockSearcher struct {
	mu      sync.Mutex
	results map[string][]*models.Statement
	err     error
	calls   []string
}

func (m *mockSearcher) SearchStatements(_ context.Context, word string) ([]*models.Statement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, word)
	if m.err != nil {
		return nil, m.err
	}
	return m.results[word], nil
}

// mockNotifier records notifications and can be made to fail.
type mockNotifier struct {
	mu     sync.Mutex
	alerts []*AlertRecord
	err    error
}

func (m *mockNotifier) Notify(_ context.Context, alert *AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func newTestEngine(t *testing.T, keywords []string) (*Engine, *mockSearcher, *mockNotifier) {
	t.Helper()
	searcher := &mockSearcher{results: make(map[string][]*models.Statement)}
	notifier := &mockNotifier{}
	e := NewEngine(Config{
		Keywords:         keywords,
		AlertCapacity:    100,
		RetentionDays:    30,
		SynchronousScans: true,
	}, searcher, notifier)
	return e, searcher, notifier
}

func stmtWithResponse(id, response string) *models.Statement {
	return &models.Statement{
		StatementID: id,
		ActorID:     "a@x.com",
		VerbID:      "http://adlnet.gov/expapi/verbs/responded",
		ObjectID:    "http://example.com/q1",
		Response:    response,
		Source:      "xapi",
		Timestamp:   time.Now().UTC(),
	}
}

func TestEvaluateRecordsAlert(t *testing.T) {
	e, _, notifier := newTestEngine(t, []string{"suicide", "don't want to be here"})

	stmt := stmtWithResponse("s1", "I don't want to be here anymore")
	id, created := e.Evaluate(context.Background(), stmt, SourceLive)
	if !created || id == "" {
		t.Fatalf("Evaluate = (%q, %v), want new alert", id, created)
	}

	alerts := e.RecentAlerts(10)
	if len(alerts) != 1 {
		t.Fatalf("RecentAlerts = %d, want 1", len(alerts))
	}
	if len(alerts[0].Matches) != 1 || alerts[0].Matches[0] != "don't want to be here" {
		t.Errorf("Matches = %v", alerts[0].Matches)
	}

	e.Wait()
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestEvaluateDedup(t *testing.T) {
	e, _, notifier := newTestEngine(t, []string{"suicide", "don't want to be here"})
	stmt := stmtWithResponse("s1", "I don't want to be here anymore")

	first, created := e.Evaluate(context.Background(), stmt, SourceLive)
	if !created {
		t.Fatal("first evaluation should create an alert")
	}
	second, created := e.Evaluate(context.Background(), stmt, SourceLive)
	if created {
		t.Error("second evaluation must not create a new record")
	}
	if first != second {
		t.Errorf("ids differ: %q vs %q", first, second)
	}
	if len(e.RecentAlerts(10)) != 1 {
		t.Errorf("alert count = %d, want 1", len(e.RecentAlerts(10)))
	}

	e.Wait()
	if notifier.count() != 1 {
		t.Errorf("re-evaluation re-notified: %d sends", notifier.count())
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	e, _, _ := newTestEngine(t, []string{"suicide"})
	id, created := e.Evaluate(context.Background(), stmtWithResponse("s1", "all good"), SourceLive)
	if created || id != "" {
		t.Errorf("Evaluate = (%q, %v), want no alert", id, created)
	}
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	e, _, notifier := newTestEngine(t, []string{"crisis"})
	notifier.err = errors.New("smtp down")

	_, created := e.Evaluate(context.Background(), stmtWithResponse("s1", "crisis"), SourceLive)
	if !created {
		t.Fatal("alert should be recorded even when notification fails")
	}
	e.Wait()
	if len(e.RecentAlerts(10)) != 1 {
		t.Error("alert lost after notification failure")
	}
}

func TestUpdateKeywordsAppendTriggersScan(t *testing.T) {
	e, searcher, _ := newTestEngine(t, []string{"suicide"})
	searcher.results["bullying"] = []*models.Statement{
		stmtWithResponse("h1", "bullying in class"),
		stmtWithResponse("h2", "more bullying"),
	}

	added, removed := e.UpdateKeywords(context.Background(), []string{"suicide", "Bullying"}, ModeAppend)
	if len(added) != 1 || added[0] != "bullying" {
		t.Fatalf("added = %v", added)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none for append", removed)
	}

	alerts := e.RecentAlerts(10)
	if len(alerts) != 2 {
		t.Fatalf("retroactive alerts = %d, want 2", len(alerts))
	}
	for _, a := range alerts {
		if a.Source != SourceHistorical || a.Scope != ScopeRetroactive {
			t.Errorf("alert source/scope = %s/%s", a.Source, a.Scope)
		}
	}

	for _, info := range e.Keywords() {
		if info.Word == "bullying" && !info.RetroScanComplete {
			t.Error("retro scan complete flag not set")
		}
	}
}

func TestUpdateKeywordsReplaceDropsWords(t *testing.T) {
	e, _, _ := newTestEngine(t, []string{"suicide", "crisis"})

	// Record an alert for a word about to be dropped.
	if _, created := e.Evaluate(context.Background(), stmtWithResponse("s1", "crisis"), SourceLive); !created {
		t.Fatal("setup alert not created")
	}

	added, removed := e.UpdateKeywords(context.Background(), []string{"suicide"}, ModeReplace)
	if len(added) != 0 {
		t.Errorf("added = %v", added)
	}
	if len(removed) != 1 || removed[0] != "crisis" {
		t.Errorf("removed = %v, want [crisis]", removed)
	}

	// Dropped words no longer match new statements.
	if _, created := e.Evaluate(context.Background(), stmtWithResponse("s2", "crisis"), SourceLive); created {
		t.Error("dropped word still matching")
	}
	// Historical alerts are retained.
	if len(e.RecentAlerts(10)) != 1 {
		t.Error("alert for dropped word was discarded")
	}
}

func TestRetroactiveScanIdempotent(t *testing.T) {
	e, searcher, _ := newTestEngine(t, nil)
	searcher.results["hurt"] = []*models.Statement{
		stmtWithResponse("h1", "it hurt"),
	}

	e.UpdateKeywords(context.Background(), []string{"hurt"}, ModeAppend)
	if err := e.RetroactiveScan(context.Background(), "hurt"); err != nil {
		t.Fatal(err)
	}
	// Re-running produces no duplicate records.
	if len(e.RecentAlerts(10)) != 1 {
		t.Errorf("alerts = %d after re-scan, want 1", len(e.RecentAlerts(10)))
	}
}

func TestRetroactiveScanQueryFailure(t *testing.T) {
	e, searcher, _ := newTestEngine(t, nil)
	searcher.err = errors.New("table missing")

	e.UpdateKeywords(context.Background(), []string{"hurt"}, ModeAppend)
	for _, info := range e.Keywords() {
		if info.Word == "hurt" && info.RetroScanComplete {
			t.Error("scan marked complete despite query failure")
		}
	}

	// A later retry can succeed.
	searcher.mu.Lock()
	searcher.err = nil
	searcher.mu.Unlock()
	if err := e.RetroactiveScan(context.Background(), "hurt"); err != nil {
		t.Fatal(err)
	}
	for _, info := range e.Keywords() {
		if info.Word == "hurt" && !info.RetroScanComplete {
			t.Error("retry did not mark scan complete")
		}
	}
}

func TestAlertStoreEviction(t *testing.T) {
	searcher := &mockSearcher{results: make(map[string][]*models.Statement)}
	e := NewEngine(Config{
		Keywords:         []string{"hurt"},
		AlertCapacity:    3,
		RetentionDays:    30,
		SynchronousScans: true,
	}, searcher, nil)

	ids := []string{"s1", "s2", "s3", "s4"}
	for _, id := range ids {
		e.Evaluate(context.Background(), stmtWithResponse(id, "hurt"), SourceLive)
	}

	alerts := e.RecentAlerts(10)
	if len(alerts) != 3 {
		t.Fatalf("alerts = %d, want capacity 3", len(alerts))
	}
	if alerts[0].StatementID != "s4" {
		t.Errorf("newest first expected, got %s", alerts[0].StatementID)
	}

	// The evicted statement's dedup entry is gone too: re-evaluating s1
	// creates a fresh record rather than returning a stale id.
	_, created := e.Evaluate(context.Background(), stmtWithResponse("s1", "hurt"), SourceLive)
	if !created {
		t.Error("dedup index entry for evicted alert should be evicted with it")
	}
}

func TestGetSummary(t *testing.T) {
	e, _, _ := newTestEngine(t, []string{"hurt", "crisis"})
	e.Evaluate(context.Background(), stmtWithResponse("s1", "hurt"), SourceLive)
	e.Evaluate(context.Background(), stmtWithResponse("s2", "crisis and hurt"), SourceLive)

	s := e.GetSummary()
	if s.TotalAlerts != 2 {
		t.Errorf("TotalAlerts = %d, want 2", s.TotalAlerts)
	}
	if s.ByWord["hurt"] != 2 || s.ByWord["crisis"] != 1 {
		t.Errorf("ByWord = %v", s.ByWord)
	}
	if s.BySource[SourceLive] != 2 {
		t.Errorf("BySource = %v", s.BySource)
	}
	if s.WindowDays != 30 {
		t.Errorf("WindowDays = %d", s.WindowDays)
	}
}

func TestAttachDeliveryMeta(t *testing.T) {
	e, _, _ := newTestEngine(t, []string{"hurt"})
	id, _ := e.Evaluate(context.Background(), stmtWithResponse("s1", "hurt"), SourceLive)

	if !e.AttachDeliveryMeta(id, map[string]string{"delivery_id": "d-42"}) {
		t.Fatal("AttachDeliveryMeta failed for existing alert")
	}
	alerts := e.RecentAlerts(1)
	if alerts[0].DeliveryMeta["delivery_id"] != "d-42" {
		t.Errorf("DeliveryMeta = %v", alerts[0].DeliveryMeta)
	}
	if e.AttachDeliveryMeta("missing", nil) {
		t.Error("AttachDeliveryMeta succeeded for unknown id")
	}
}

func TestConcurrentEvaluate(t *testing.T) {
	e, _, _ := newTestEngine(t, []string{"hurt"})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				e.Evaluate(context.Background(), stmtWithResponse("same", "hurt"), SourceLive)
			}
		}()
	}
	wg.Wait()
	e.Wait()
	if got := len(e.RecentAlerts(0)); got != 1 {
		t.Errorf("concurrent evaluation of one statement produced %d records", got)
	}
}
