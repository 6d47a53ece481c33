// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package ingest

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/cursus/internal/logging"
	"github.com/tomtom215/cursus/internal/metrics"
	"github.com/tomtom215/cursus/internal/models"
)

// FailureLedger is the warehouse surface the recovery subsystem needs.
type FailureLedger interface {
	RecordFailure(ctx context.Context, f *models.FailedStatement) error
	ListFailures(ctx context.Context, filter models.FailureFilter) ([]*models.FailedStatement, error)
	LatestUnresolvedFailure(ctx context.Context, statementID string) (*models.FailedStatement, error)
	IncrementRetry(ctx context.Context, id int64) error
	ResolveFailures(ctx context.Context, statementID string) error
	CountUnresolvedFailures(ctx context.Context) (int64, error)
}

// Recovery owns the failure ledger and the dead-letter stream. The recording
// path is entirely best-effort so a broken ledger or broker can never take
// the consume loop down with it; the admin operations return real errors
// because an operator is waiting on the answer.
type Recovery struct {
	ledger FailureLedger
	sink   DeadLetterSink
}

// NewRecovery creates the recovery subsystem. sink may be nil, in which case
// failures are ledger-only.
func NewRecovery(ledger FailureLedger, sink DeadLetterSink) *Recovery {
	return &Recovery{ledger: ledger, sink: sink}
}

// RecordFailure appends a ledger entry and parks the payload on the
// dead-letter stream. Errors on either side are logged and swallowed.
func (r *Recovery) RecordFailure(ctx context.Context, statementID string, payload []byte, errType, errMsg, stage string) {
	entry := &models.FailedStatement{
		StatementID:  statementID,
		RawPayload:   json.RawMessage(payload),
		ErrorType:    errType,
		ErrorMessage: errMsg,
		Stage:        stage,
		FailedAt:     time.Now().UTC(),
	}

	if err := r.ledger.RecordFailure(ctx, entry); err != nil {
		logging.Error().Err(err).Str("statement_id", statementID).Str("stage", stage).
			Msg("Failure ledger write failed, entry lost")
	}

	if r.sink != nil {
		dlm := &DeadLetterMessage{
			StatementID:  statementID,
			RawPayload:   json.RawMessage(payload),
			ErrorType:    errType,
			ErrorMessage: errMsg,
			Stage:        stage,
			FailedAt:     entry.FailedAt,
		}
		if err := r.sink.PublishDeadLetter(ctx, dlm); err != nil {
			logging.Warn().Err(err).Str("statement_id", statementID).
				Msg("Dead-letter publish failed, ledger entry remains")
		}
	}

	metrics.StatementsFailed.WithLabelValues(stage, errType).Inc()
	r.updateUnresolvedGauge(ctx)
}

// ListFailures returns unresolved ledger entries matching the filter.
func (r *Recovery) ListFailures(ctx context.Context, filter models.FailureFilter) ([]*models.FailedStatement, error) {
	return r.ledger.ListFailures(ctx, filter)
}

// Retry republishes the newest unresolved failure for a statement id to the
// dead-letter stream and increments its retry count. Returns
// warehouse.ErrNotFound (wrapped) when the statement has no unresolved entry.
func (r *Recovery) Retry(ctx context.Context, statementID string) error {
	entry, err := r.ledger.LatestUnresolvedFailure(ctx, statementID)
	if err != nil {
		return fmt.Errorf("failed to load failure for retry: %w", err)
	}

	if err := r.ledger.IncrementRetry(ctx, entry.ID); err != nil {
		return err
	}

	if r.sink != nil {
		dlm := &DeadLetterMessage{
			StatementID:  entry.StatementID,
			RawPayload:   entry.RawPayload,
			ErrorType:    entry.ErrorType,
			ErrorMessage: entry.ErrorMessage,
			Stage:        entry.Stage,
			RetryCount:   entry.RetryCount + 1,
			FailedAt:     entry.FailedAt,
		}
		if err := r.sink.PublishDeadLetter(ctx, dlm); err != nil {
			return fmt.Errorf("failed to republish statement %s: %w", statementID, err)
		}
	}

	metrics.DLQRetries.Inc()
	logging.Info().Str("statement_id", statementID).Int("retry_count", entry.RetryCount+1).
		Msg("Failed statement queued for retry")
	return nil
}

// Resolve marks every unresolved entry for the statement id as handled.
// Idempotent.
func (r *Recovery) Resolve(ctx context.Context, statementID string) error {
	if err := r.ledger.ResolveFailures(ctx, statementID); err != nil {
		return err
	}
	r.updateUnresolvedGauge(ctx)
	return nil
}

func (r *Recovery) updateUnresolvedGauge(ctx context.Context) {
	count, err := r.ledger.CountUnresolvedFailures(ctx)
	if err != nil {
		logging.Debug().Err(err).Msg("Unresolved failure count query failed")
		return
	}
	metrics.DLQUnresolved.Set(float64(count))
}
