// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/cursus/internal/metrics"
	"github.com/tomtom215/cursus/internal/models"
)

// HasStatement reports whether a row with the given statement id exists.
// Used as a cheap pre-check before the conditional insert; a race where two
// checks both miss is harmless because the insert itself is conflict-safe.
func (db *DB) HasStatement(ctx context.Context, statementID string) (bool, error) {
	start := time.Now()
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM statements WHERE statement_id = ?`, statementID).Scan(&count)
	metrics.ObserveDBQuery("has", "statements", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to check statement existence: %w", err)
	}
	return count > 0, nil
}

// InsertStatement writes a normalized statement with conditional insert
// semantics. Returns true when a new row was written, false when a row with
// the same statement id already existed. Redelivering the same message any
// number of times yields exactly one row.
func (db *DB) InsertStatement(ctx context.Context, stmt *models.Statement) (bool, error) {
	exists, err := db.HasStatement(ctx, stmt.StatementID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO statements (
			statement_id, actor_id, actor_name, actor_email,
			verb_id, verb_display, object_id, object_name,
			score_scaled, score_raw, success, completion, response,
			platform, language, registration, team, "group", cohort_id,
			source, timestamp, raw_payload, search_blob
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (statement_id) DO NOTHING`,
		stmt.StatementID, stmt.ActorID, stmt.ActorName, stmt.ActorEmail,
		stmt.VerbID, stmt.VerbDisplay, stmt.ObjectID, stmt.ObjectName,
		stmt.ScoreScaled, stmt.ScoreRaw, stmt.Success, stmt.Completion, stmt.Response,
		stmt.Platform, stmt.Language, stmt.Registration, stmt.Team, stmt.Group, stmt.CohortID,
		stmt.Source, stmt.Timestamp, string(stmt.RawPayload), stmt.SearchBlob(),
	)
	metrics.ObserveDBQuery("insert", "statements", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to insert statement %s: %w", stmt.StatementID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		// Driver could not report; the insert itself succeeded.
		return true, nil
	}
	return rows > 0, nil
}

// GetStatement loads one statement by id. Returns ErrNotFound when absent.
func (db *DB) GetStatement(ctx context.Context, statementID string) (*models.Statement, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `
		SELECT statement_id, actor_id, actor_name, actor_email,
		       verb_id, verb_display, object_id, object_name,
		       score_scaled, score_raw, success, completion, response,
		       platform, language, registration, team, "group", cohort_id,
		       source, timestamp, raw_payload
		FROM statements WHERE statement_id = ?`, statementID)
	stmt, err := scanStatement(row)
	metrics.ObserveDBQuery("get", "statements", start, err)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load statement %s: %w", statementID, err)
	}
	return stmt, nil
}

// SearchStatements returns every statement whose search blob contains word
// as a case-insensitive substring. This backs the retroactive scan; results
// are ordered oldest first so backfilled alerts carry stable ordering.
func (db *DB) SearchStatements(ctx context.Context, word string) ([]*models.Statement, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT statement_id, actor_id, actor_name, actor_email,
		       verb_id, verb_display, object_id, object_name,
		       score_scaled, score_raw, success, completion, response,
		       platform, language, registration, team, "group", cohort_id,
		       source, timestamp, raw_payload
		FROM statements
		WHERE search_blob LIKE '%' || ? || '%'
		ORDER BY timestamp ASC`,
		strings.ToLower(word))
	metrics.ObserveDBQuery("search", "statements", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to search statements for %q: %w", word, err)
	}
	defer rows.Close()

	var out []*models.Statement
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statement row: %w", err)
		}
		out = append(out, stmt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("statement search iteration failed: %w", err)
	}
	return out, nil
}

// CountStatementsByCohort returns statement counts grouped by cohort id,
// consumed by the batch cohort sync.
func (db *DB) CountStatementsByCohort(ctx context.Context) (map[string]int64, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT cohort_id, COUNT(*)
		FROM statements
		WHERE cohort_id IS NOT NULL AND cohort_id != ''
		GROUP BY cohort_id`)
	metrics.ObserveDBQuery("count_by_cohort", "statements", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to count statements by cohort: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var cohortID string
		var count int64
		if err := rows.Scan(&cohortID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan cohort count: %w", err)
		}
		counts[cohortID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cohort count iteration failed: %w", err)
	}
	return counts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStatement(row rowScanner) (*models.Statement, error) {
	var (
		stmt       models.Statement
		actorName  sql.NullString
		actorEmail sql.NullString
		verbDisp   sql.NullString
		objName    sql.NullString
		response   sql.NullString
		platform   sql.NullString
		language   sql.NullString
		regist     sql.NullString
		team       sql.NullString
		group      sql.NullString
		cohortID   sql.NullString
		rawPayload sql.NullString
		scoreS     sql.NullFloat64
		scoreR     sql.NullFloat64
		success    sql.NullBool
		completion sql.NullBool
	)

	err := row.Scan(
		&stmt.StatementID, &stmt.ActorID, &actorName, &actorEmail,
		&stmt.VerbID, &verbDisp, &stmt.ObjectID, &objName,
		&scoreS, &scoreR, &success, &completion, &response,
		&platform, &language, &regist, &team, &group, &cohortID,
		&stmt.Source, &stmt.Timestamp, &rawPayload,
	)
	if err != nil {
		return nil, err
	}

	stmt.ActorName = actorName.String
	stmt.ActorEmail = actorEmail.String
	stmt.VerbDisplay = verbDisp.String
	stmt.ObjectName = objName.String
	stmt.Response = response.String
	stmt.Platform = platform.String
	stmt.Language = language.String
	stmt.Registration = regist.String
	stmt.Team = team.String
	stmt.Group = group.String
	stmt.CohortID = cohortID.String
	if scoreS.Valid {
		v := scoreS.Float64
		stmt.ScoreScaled = &v
	}
	if scoreR.Valid {
		v := scoreR.Float64
		stmt.ScoreRaw = &v
	}
	if success.Valid {
		v := success.Bool
		stmt.Success = &v
	}
	if completion.Valid {
		v := completion.Bool
		stmt.Completion = &v
	}
	if rawPayload.Valid {
		stmt.RawPayload = json.RawMessage(rawPayload.String)
	}
	return &stmt, nil
}
