// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/cursus/internal/metrics"
	"github.com/tomtom215/cursus/internal/models"
)

// RecordFailure appends a ledger entry for a statement that could not be
// processed. The ledger is append-only; retries and resolution mutate the
// entry but clear nothing.
func (db *DB) RecordFailure(ctx context.Context, f *models.FailedStatement) error {
	if f.FailedAt.IsZero() {
		f.FailedAt = time.Now().UTC()
	}
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO failed_statements (
			statement_id, raw_payload, error_type, error_message,
			stage, retry_count, failed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.StatementID, string(f.RawPayload), f.ErrorType, f.ErrorMessage,
		f.Stage, f.RetryCount, f.FailedAt,
	)
	metrics.ObserveDBQuery("insert", "failed_statements", start, err)
	if err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", f.StatementID, err)
	}
	return nil
}

// ListFailures returns unresolved ledger entries, most recent first,
// optionally filtered by stage and error type.
func (db *DB) ListFailures(ctx context.Context, filter models.FailureFilter) ([]*models.FailedStatement, error) {
	query := `
		SELECT id, statement_id, raw_payload, error_type, error_message,
		       stage, retry_count, failed_at, resolved_at
		FROM failed_statements
		WHERE resolved_at IS NULL`
	args := []interface{}{}
	if filter.Stage != "" {
		query += " AND stage = ?"
		args = append(args, filter.Stage)
	}
	if filter.ErrorType != "" {
		query += " AND error_type = ?"
		args = append(args, filter.ErrorType)
	}
	query += " ORDER BY failed_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveDBQuery("list", "failed_statements", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures: %w", err)
	}
	defer rows.Close()

	var out []*models.FailedStatement
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failure row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failure list iteration failed: %w", err)
	}
	return out, nil
}

// LatestUnresolvedFailure loads the newest unresolved entry for a statement
// id. Returns ErrNotFound when every entry is resolved or none exists.
func (db *DB) LatestUnresolvedFailure(ctx context.Context, statementID string) (*models.FailedStatement, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, statement_id, raw_payload, error_type, error_message,
		       stage, retry_count, failed_at, resolved_at
		FROM failed_statements
		WHERE statement_id = ? AND resolved_at IS NULL
		ORDER BY failed_at DESC LIMIT 1`, statementID)
	f, err := scanFailure(row)
	metrics.ObserveDBQuery("get_unresolved", "failed_statements", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load unresolved failure for %s: %w", statementID, err)
	}
	return f, nil
}

// IncrementRetry bumps the retry count on one ledger entry.
func (db *DB) IncrementRetry(ctx context.Context, id int64) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`UPDATE failed_statements SET retry_count = retry_count + 1 WHERE id = ?`, id)
	metrics.ObserveDBQuery("increment_retry", "failed_statements", start, err)
	if err != nil {
		return fmt.Errorf("failed to increment retry count for entry %d: %w", id, err)
	}
	return nil
}

// ResolveFailures stamps every unresolved entry for the statement id with a
// resolved timestamp. Idempotent: resolving an already-resolved statement is
// a no-op, not an error.
func (db *DB) ResolveFailures(ctx context.Context, statementID string) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		UPDATE failed_statements SET resolved_at = ?
		WHERE statement_id = ? AND resolved_at IS NULL`,
		time.Now().UTC(), statementID)
	metrics.ObserveDBQuery("resolve", "failed_statements", start, err)
	if err != nil {
		return fmt.Errorf("failed to resolve failures for %s: %w", statementID, err)
	}
	return nil
}

// CountUnresolvedFailures returns the unresolved ledger size for the DLQ
// depth gauge.
func (db *DB) CountUnresolvedFailures(ctx context.Context) (int64, error) {
	start := time.Now()
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM failed_statements WHERE resolved_at IS NULL`).Scan(&count)
	metrics.ObserveDBQuery("count_unresolved", "failed_statements", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved failures: %w", err)
	}
	return count, nil
}

func scanFailure(row rowScanner) (*models.FailedStatement, error) {
	var (
		f          models.FailedStatement
		rawPayload sql.NullString
		errMsg     sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(&f.ID, &f.StatementID, &rawPayload, &f.ErrorType, &errMsg,
		&f.Stage, &f.RetryCount, &f.FailedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	if rawPayload.Valid {
		f.RawPayload = []byte(rawPayload.String)
	}
	f.ErrorMessage = errMsg.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		f.ResolvedAt = &t
	}
	return &f, nil
}
