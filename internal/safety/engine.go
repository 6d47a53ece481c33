// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package safety

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cursus/internal/logging"
	"github.com/tomtom215/cursus/internal/metrics"
	"github.com/tomtom215/cursus/internal/models"
)

// StatementSearcher queries the historical statement store for retroactive
// scans. Implemented by the warehouse.
type StatementSearcher interface {
	SearchStatements(ctx context.Context, word string) ([]*models.Statement, error)
}

// Notifier delivers alert notifications. Delivery is entirely best-effort;
// errors are logged by the engine and never propagate.
type Notifier interface {
	Notify(ctx context.Context, alert *AlertRecord) error
}

// Config holds engine settings.
type Config struct {
	// Keywords is the initial trigger word set.
	Keywords []string
	// AlertCapacity bounds the in-memory alert ring.
	AlertCapacity int
	// RetentionDays is the window the read views cover.
	RetentionDays int
	// SynchronousScans runs retroactive scans inline in UpdateKeywords
	// instead of in a detached goroutine. Production leaves this false so
	// a long backfill cannot block a configuration call.
	SynchronousScans bool
}

// Engine is the trigger-word alert engine. One mutex guards the keyword set,
// the matcher reference, and the alert store; it is held only for in-memory
// bookkeeping, never across a warehouse query or notification send.
type Engine struct {
	mu       sync.Mutex
	keywords map[string]*KeywordInfo
	matcher  *Matcher
	store    *alertStore

	searcher  StatementSearcher
	notifier  Notifier
	retention time.Duration
	syncScans bool

	scans sync.WaitGroup // outstanding detached retroactive scans
}

// NewEngine creates an engine with the initial keyword set. Initial words
// start with retro-scan-complete false; ScanPendingKeywords backfills them.
func NewEngine(cfg Config, searcher StatementSearcher, notifier Notifier) *Engine {
	retentionDays := cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	e := &Engine{
		keywords:  make(map[string]*KeywordInfo),
		store:     newAlertStore(cfg.AlertCapacity),
		searcher:  searcher,
		notifier:  notifier,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		syncScans: cfg.SynchronousScans,
	}
	now := time.Now().UTC()
	for _, w := range cfg.Keywords {
		w = normalizeWord(w)
		if w == "" {
			continue
		}
		e.keywords[w] = &KeywordInfo{Word: w, AddedAt: now}
	}
	e.matcher = NewMatcher(e.keywordList())
	metrics.KeywordsActive.Set(float64(len(e.keywords)))
	return e
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

// keywordList returns the configured words; callers must hold e.mu or own
// the engine exclusively (construction).
func (e *Engine) keywordList() []string {
	words := make([]string, 0, len(e.keywords))
	for w := range e.keywords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Evaluate matches one statement against the configured trigger words.
// Returns the alert id and whether a new record was created. The same
// statement against an unchanged keyword set always returns the same id;
// only the first call records and notifies.
func (e *Engine) Evaluate(ctx context.Context, stmt *models.Statement, source string) (string, bool) {
	return e.record(ctx, stmt, source, ScopeInline)
}

// record is the shared recording path for inline evaluation and the
// retroactive scan. The matcher runs outside the lock on an immutable
// snapshot; only the dedup check and store insert hold it.
func (e *Engine) record(ctx context.Context, stmt *models.Statement, source, scope string) (string, bool) {
	e.mu.Lock()
	matcher := e.matcher
	e.mu.Unlock()

	matches := matcher.Match(stmt.SearchBlob())
	if len(matches) == 0 {
		return "", false
	}

	key := dedupKey(stmt.StatementID, matches)

	e.mu.Lock()
	if existing, ok := e.store.lookup(key); ok {
		e.mu.Unlock()
		metrics.AlertsDeduplicated.Inc()
		return existing.ID, false
	}

	alert := &AlertRecord{
		ID:          uuid.NewString(),
		StatementID: stmt.StatementID,
		Matches:     matches,
		DetectedAt:  time.Now().UTC(),
		Source:      source,
		Scope:       scope,
		ActorID:     stmt.ActorID,
		Excerpt:     excerpt(stmt.Response),
	}
	e.store.add(key, alert)
	for _, w := range matches {
		if info, ok := e.keywords[w]; ok {
			info.MatchCount++
		}
	}
	e.mu.Unlock()

	metrics.AlertsRaised.WithLabelValues(source).Inc()
	logging.Info().
		Str("alert_id", alert.ID).
		Str("statement_id", alert.StatementID).
		Strs("matches", alert.Matches).
		Str("scope", scope).
		Msg("Trigger word alert recorded")

	e.notify(ctx, alert)
	return alert.ID, true
}

// notify delivers the alert asynchronously. A slow or broken notifier must
// never add latency to message acknowledgment.
func (e *Engine) notify(ctx context.Context, alert *AlertRecord) {
	if e.notifier == nil {
		return
	}
	e.scans.Add(1)
	go func() {
		defer e.scans.Done()
		if err := e.notifier.Notify(context.WithoutCancel(ctx), alert); err != nil {
			metrics.AlertNotifyErrors.Inc()
			logging.Warn().Err(err).Str("alert_id", alert.ID).Msg("Alert notification failed")
		}
	}()
}

// UpdateKeywords applies a configuration change and returns the added and
// removed words. Removed words are dropped from configuration only; their
// historical alerts are retained. Every newly added word gets a retroactive
// scan, detached unless SynchronousScans is set.
func (e *Engine) UpdateKeywords(ctx context.Context, words []string, mode UpdateMode) (added, removed []string) {
	incoming := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = normalizeWord(w)
		if w != "" {
			incoming[w] = struct{}{}
		}
	}

	now := time.Now().UTC()

	e.mu.Lock()
	for w := range incoming {
		if _, ok := e.keywords[w]; !ok {
			e.keywords[w] = &KeywordInfo{Word: w, AddedAt: now}
			added = append(added, w)
		}
	}
	if mode == ModeReplace {
		for w := range e.keywords {
			if _, ok := incoming[w]; !ok {
				delete(e.keywords, w)
				removed = append(removed, w)
			}
		}
	}
	e.matcher = NewMatcher(e.keywordList())
	metrics.KeywordsActive.Set(float64(len(e.keywords)))
	e.mu.Unlock()

	sort.Strings(added)
	sort.Strings(removed)

	for _, w := range added {
		if e.syncScans {
			if err := e.RetroactiveScan(ctx, w); err != nil {
				logging.Warn().Err(err).Str("word", w).Msg("Retroactive scan failed")
			}
			continue
		}
		word := w
		e.scans.Add(1)
		go func() {
			defer e.scans.Done()
			if err := e.RetroactiveScan(context.WithoutCancel(ctx), word); err != nil {
				logging.Warn().Err(err).Str("word", word).Msg("Retroactive scan failed")
			}
		}()
	}

	return added, removed
}

// RetroactiveScan backfills alerts for one word from the historical
// statement store. Idempotent: alert recording dedups per (statement id,
// word-set), so re-running a partially completed scan is safe. On query
// failure the word keeps retro-scan-complete=false for a later retry.
func (e *Engine) RetroactiveScan(ctx context.Context, word string) error {
	word = normalizeWord(word)

	statements, err := e.searcher.SearchStatements(ctx, word)
	if err != nil {
		logging.Warn().Err(err).Str("word", word).Msg("Historical statement query failed, scan incomplete")
		return err
	}

	var hits int64
	for _, stmt := range statements {
		if _, created := e.record(ctx, stmt, SourceHistorical, ScopeRetroactive); created {
			hits++
		}
	}

	e.mu.Lock()
	if info, ok := e.keywords[word]; ok {
		info.RetroScanComplete = true
	}
	e.mu.Unlock()

	logging.Info().Str("word", word).Int("scanned", len(statements)).Int64("new_alerts", hits).
		Msg("Retroactive scan complete")
	return nil
}

// ScanPendingKeywords runs retroactive scans for every configured word that
// has not completed one, e.g. after startup or an interrupted scan.
func (e *Engine) ScanPendingKeywords(ctx context.Context) {
	e.mu.Lock()
	var pending []string
	for w, info := range e.keywords {
		if !info.RetroScanComplete {
			pending = append(pending, w)
		}
	}
	e.mu.Unlock()

	sort.Strings(pending)
	for _, w := range pending {
		if err := e.RetroactiveScan(ctx, w); err != nil {
			logging.Warn().Err(err).Str("word", w).Msg("Pending keyword scan failed")
		}
	}
}

// RecentAlerts returns up to limit alerts within the retention window,
// newest first.
func (e *Engine) RecentAlerts(limit int) []*AlertRecord {
	cutoff := time.Now().UTC().Add(-e.retention)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.recent(limit, cutoff)
}

// Keywords returns the configured trigger words with their metadata, sorted.
func (e *Engine) Keywords() []KeywordInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]KeywordInfo, 0, len(e.keywords))
	for _, info := range e.keywords {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out
}

// GetSummary aggregates alerts within the retention window.
func (e *Engine) GetSummary() Summary {
	cutoff := time.Now().UTC().Add(-e.retention)

	e.mu.Lock()
	alerts := e.store.all(cutoff)
	keywords := make([]KeywordInfo, 0, len(e.keywords))
	for _, info := range e.keywords {
		keywords = append(keywords, *info)
	}
	e.mu.Unlock()

	sort.Slice(keywords, func(i, j int) bool { return keywords[i].Word < keywords[j].Word })

	s := Summary{
		TotalAlerts: len(alerts),
		ByWord:      make(map[string]int),
		BySource:    make(map[string]int),
		Keywords:    keywords,
		WindowDays:  int(e.retention / (24 * time.Hour)),
	}
	for _, a := range alerts {
		s.BySource[a.Source]++
		for _, w := range a.Matches {
			s.ByWord[w]++
		}
		if s.OldestAlert == nil || a.DetectedAt.Before(*s.OldestAlert) {
			t := a.DetectedAt
			s.OldestAlert = &t
		}
		if s.NewestAlert == nil || a.DetectedAt.After(*s.NewestAlert) {
			t := a.DetectedAt
			s.NewestAlert = &t
		}
	}
	return s
}

// AttachDeliveryMeta records queue-delivery metadata on an existing alert.
func (e *Engine) AttachDeliveryMeta(alertID string, meta map[string]string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.store.records {
		if r != nil && r.ID == alertID {
			if r.DeliveryMeta == nil {
				r.DeliveryMeta = make(map[string]string, len(meta))
			}
			for k, v := range meta {
				r.DeliveryMeta[k] = v
			}
			return true
		}
	}
	return false
}

// Wait blocks until detached scans and notifications finish. Used by
// shutdown and tests.
func (e *Engine) Wait() {
	e.scans.Wait()
}

// excerpt truncates free-text for inclusion in an alert record.
func excerpt(s string) string {
	const max = 160
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
