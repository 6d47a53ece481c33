// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/cursus/internal/cache"
	"github.com/tomtom215/cursus/internal/config"
	"github.com/tomtom215/cursus/internal/identity"
	"github.com/tomtom215/cursus/internal/logging"
	"github.com/tomtom215/cursus/internal/metrics"
	"github.com/tomtom215/cursus/internal/models"
	"github.com/tomtom215/cursus/internal/safety"
)

// StatementStore is the warehouse surface the consumer writes through.
type StatementStore interface {
	InsertStatement(ctx context.Context, stmt *models.Statement) (bool, error)
	MergeProfile(ctx context.Context, fragment models.UserProfile) (*models.UserProfile, error)
}

// Evaluator offers decoded statements to the alert engine.
type Evaluator interface {
	Evaluate(ctx context.Context, stmt *models.Statement, source string) (string, bool)
}

// FailureRecorder records processing failures; implemented by Recovery.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, statementID string, payload []byte, errType, errMsg, stage string)
}

// MessageSource opens the inbound message channel; implemented by Subscriber.
type MessageSource interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
	Close() error
}

// Stats is a point-in-time snapshot of consumer counters.
type Stats struct {
	Received     int64
	Processed    int64
	Failed       int64
	Deduplicated int64
	LastMessage  time.Time
}

// Consumer drains the statement subscription through a fixed worker pool.
// Each message is decoded, identity-normalized, written idempotently, and
// offered to the alert engine. A bloom-fronted LRU short-circuits obvious
// redeliveries before they reach the warehouse; the conditional insert
// remains the correctness mechanism for everything the cache misses.
type Consumer struct {
	source     MessageSource
	store      StatementStore
	evaluator  Evaluator
	recorder   FailureRecorder
	normalizer *identity.Normalizer
	dedup      *cache.BloomLRU

	workers      int
	drainTimeout time.Duration

	received     atomic.Int64
	processed    atomic.Int64
	failed       atomic.Int64
	deduplicated atomic.Int64
	lastMessage  atomic.Int64 // unix nanos
}

// NewConsumer wires the pipeline. evaluator may be nil when safety
// evaluation is disabled.
func NewConsumer(cfg config.ConsumerConfig, source MessageSource, store StatementStore,
	evaluator Evaluator, recorder FailureRecorder) *Consumer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	drain := cfg.DrainTimeout
	if drain <= 0 {
		drain = 30 * time.Second
	}
	return &Consumer{
		source:       source,
		store:        store,
		evaluator:    evaluator,
		recorder:     recorder,
		normalizer:   identity.NewNormalizer(),
		dedup:        cache.NewBloomLRU(100_000, time.Hour, 0.01),
		workers:      workers,
		drainTimeout: drain,
	}
}

// Serve runs the consume loop until ctx is canceled, then drains in-flight
// messages with a timeout. Implements suture.Service.
func (c *Consumer) Serve(ctx context.Context) error {
	msgs, err := c.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	// In-flight messages finish on their own context so cancellation stops
	// intake without failing half-processed writes.
	procCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range msgs {
				metrics.ConsumerWorkersBusy.Inc()
				c.process(procCtx, msg)
				metrics.ConsumerWorkersBusy.Dec()
			}
		}()
	}

	logging.Info().Int("workers", c.workers).Msg("Statement consumer started")
	<-ctx.Done()

	// Closing the source closes the message channel; workers then finish
	// whatever is in flight.
	if err := c.source.Close(); err != nil {
		logging.Warn().Err(err).Msg("Subscriber close failed during shutdown")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info().Msg("Statement consumer drained")
	case <-time.After(c.drainTimeout):
		logging.Warn().Dur("timeout", c.drainTimeout).
			Msg("Drain timeout exceeded, in-flight messages will redeliver")
	}

	return ctx.Err()
}

// process handles one delivery end to end and always settles the message.
func (c *Consumer) process(ctx context.Context, msg *message.Message) {
	c.received.Add(1)
	c.lastMessage.Store(time.Now().UnixNano())
	metrics.StatementsReceived.Inc()

	raw, err := decodeStatement(msg.Payload)
	if err != nil {
		// Redelivery cannot fix a payload that does not parse; record it,
		// park it, and ack.
		c.failed.Add(1)
		statementID := ""
		if raw != nil {
			statementID = raw.ID
		}
		perr := NewPermanentError("malformed statement payload", err)
		c.recorder.RecordFailure(ctx, statementID, msg.Payload, perr.Category.String(), perr.Error(), models.StageDecode)
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Statement decode failed, dead-lettered")
		msg.Ack()
		return
	}

	// Fast-path redelivery check. Only fully processed statements are
	// recorded here, so a hit means the first delivery already acked.
	if c.dedup.Contains(raw.ID) {
		c.deduplicated.Add(1)
		metrics.StatementsDeduplicated.Inc()
		msg.Ack()
		return
	}

	profile := c.normalizer.Normalize(raw.Actor)
	if profile.UserID == "" {
		c.failed.Add(1)
		perr := NewPermanentError("invalid actor", fmt.Errorf("no usable identifier"))
		c.recorder.RecordFailure(ctx, raw.ID, msg.Payload, perr.Category.String(),
			perr.Error(), models.StageNormalize)
		logging.Warn().Str("statement_id", raw.ID).Msg("Actor normalization failed, dead-lettered")
		msg.Ack()
		return
	}

	stmt := buildStatement(raw, profile, msg.Payload)
	profile.Team = stmt.Team
	profile.Group = stmt.Group

	// Alert evaluation is an independent side effect and runs before the
	// warehouse writes: a statement whose write keeps failing must still
	// raise its safety alert, or redelivery exhaustion would lose it. The
	// engine dedups on (statement id, matched words), so re-evaluation on
	// redelivery is harmless.
	if c.evaluator != nil {
		c.evaluator.Evaluate(ctx, stmt, safety.SourceLive)
	}

	if _, err := c.store.MergeProfile(ctx, profile); err != nil {
		c.nackWrite(ctx, raw.ID, msg, fmt.Errorf("profile merge failed: %w", err))
		return
	}

	written, err := c.store.InsertStatement(ctx, stmt)
	if err != nil {
		c.nackWrite(ctx, raw.ID, msg, fmt.Errorf("statement insert failed: %w", err))
		return
	}
	if !written {
		c.deduplicated.Add(1)
		metrics.StatementsDeduplicated.Inc()
	}

	c.dedup.Record(raw.ID)
	c.processed.Add(1)
	metrics.StatementsProcessed.Inc()
	msg.Ack()
}

// nackWrite records a transient failure and nacks for queue redelivery.
func (c *Consumer) nackWrite(ctx context.Context, statementID string, msg *message.Message, err error) {
	c.failed.Add(1)
	rerr := NewRetryableError("database write failed", err)
	c.recorder.RecordFailure(ctx, statementID, msg.Payload, rerr.Category.String(), rerr.Error(), models.StageWrite)
	logging.Error().Err(err).Str("statement_id", statementID).Msg("Statement write failed, nacking for redelivery")
	msg.Nack()
}

// Stats returns a snapshot of the consumer counters.
func (c *Consumer) Stats() Stats {
	s := Stats{
		Received:     c.received.Load(),
		Processed:    c.processed.Load(),
		Failed:       c.failed.Load(),
		Deduplicated: c.deduplicated.Load(),
	}
	if ns := c.lastMessage.Load(); ns > 0 {
		s.LastMessage = time.Unix(0, ns).UTC()
	}
	return s
}

// decodeStatement parses and minimally validates a raw payload. A parsed
// statement is returned even on validation failure so the caller can keep
// the statement id for the ledger.
func decodeStatement(payload []byte) (*models.RawStatement, error) {
	var raw models.RawStatement
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("malformed statement payload: %w", err)
	}
	if raw.ID == "" {
		return &raw, fmt.Errorf("statement missing id")
	}
	if raw.Verb.ID == "" {
		return &raw, fmt.Errorf("statement %s missing verb id", raw.ID)
	}
	if raw.Object.ID == "" {
		return &raw, fmt.Errorf("statement %s missing object id", raw.ID)
	}
	return &raw, nil
}

// buildStatement flattens a raw statement into the warehouse row, enriched
// with the normalized identity and cohort attributes.
func buildStatement(raw *models.RawStatement, profile models.UserProfile, payload []byte) *models.Statement {
	stmt := &models.Statement{
		StatementID: raw.ID,
		ActorID:     profile.UserID,
		ActorName:   profile.Name,
		ActorEmail:  profile.Email,
		VerbID:      raw.Verb.ID,
		VerbDisplay: raw.Verb.DisplayName(),
		ObjectID:    raw.Object.ID,
		ObjectName:  raw.Object.ObjectName(),
		Source:      identity.SourceXAPI,
		Timestamp:   parseTimestamp(raw.Timestamp),
		RawPayload:  json.RawMessage(payload),
	}

	if raw.Result != nil {
		if raw.Result.Score != nil {
			stmt.ScoreScaled = raw.Result.Score.Scaled
			stmt.ScoreRaw = raw.Result.Score.Raw
		}
		stmt.Success = raw.Result.Success
		stmt.Completion = raw.Result.Completion
		stmt.Response = raw.Result.Response
	}

	if raw.Context != nil {
		stmt.Platform = raw.Context.Platform
		stmt.Language = raw.Context.Language
		stmt.Registration = raw.Context.Registration
		if raw.Context.Team != nil {
			stmt.Team = raw.Context.Team.Name
		}
		if raw.Context.Group != nil {
			stmt.Group = raw.Context.Group.Name
		}
	}
	stmt.CohortID = identity.CohortID(stmt.Team, stmt.Group)

	return stmt
}

// parseTimestamp accepts RFC3339 timestamps and falls back to receipt time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}
