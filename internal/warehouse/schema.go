// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package warehouse

import "fmt"

// schemaDDL defines the four warehouse tables. DuckDB supports
// ON CONFLICT only for tables with a declared primary key or unique
// constraint, so every conflict target below is a primary key.
var schemaDDL = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_failed_statements START 1`,

	`CREATE TABLE IF NOT EXISTS statements (
		statement_id  VARCHAR PRIMARY KEY,
		actor_id      VARCHAR NOT NULL,
		actor_name    VARCHAR,
		actor_email   VARCHAR,
		verb_id       VARCHAR NOT NULL,
		verb_display  VARCHAR,
		object_id     VARCHAR NOT NULL,
		object_name   VARCHAR,
		score_scaled  DOUBLE,
		score_raw     DOUBLE,
		success       BOOLEAN,
		completion    BOOLEAN,
		response      VARCHAR,
		platform      VARCHAR,
		language      VARCHAR,
		registration  VARCHAR,
		team          VARCHAR,
		"group"       VARCHAR,
		cohort_id     VARCHAR,
		source        VARCHAR NOT NULL,
		timestamp     TIMESTAMP NOT NULL,
		raw_payload   VARCHAR,
		search_blob   VARCHAR,
		created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id        VARCHAR PRIMARY KEY,
		email          VARCHAR,
		name           VARCHAR,
		sources        VARCHAR NOT NULL,
		first_seen     TIMESTAMP NOT NULL,
		last_seen      TIMESTAMP NOT NULL,
		activity_count BIGINT NOT NULL,
		metadata       VARCHAR,
		team           VARCHAR,
		"group"        VARCHAR,
		updated_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS failed_statements (
		id            BIGINT PRIMARY KEY DEFAULT nextval('seq_failed_statements'),
		statement_id  VARCHAR NOT NULL,
		raw_payload   VARCHAR,
		error_type    VARCHAR NOT NULL,
		error_message VARCHAR,
		stage         VARCHAR NOT NULL,
		retry_count   INTEGER NOT NULL DEFAULT 0,
		failed_at     TIMESTAMP NOT NULL,
		resolved_at   TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS cohorts (
		cohort_id       VARCHAR PRIMARY KEY,
		name            VARCHAR NOT NULL,
		team            VARCHAR,
		"group"         VARCHAR,
		user_count      BIGINT NOT NULL DEFAULT 0,
		statement_count BIGINT NOT NULL DEFAULT 0,
		updated_at      TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_statements_cohort ON statements (cohort_id)`,
	`CREATE INDEX IF NOT EXISTS idx_statements_actor ON statements (actor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_failed_statement_id ON failed_statements (statement_id)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_email ON user_profiles (email)`,
}

// initSchema creates tables and indexes, then checkpoints so the DDL is
// durable before any writes arrive.
func (db *DB) initSchema() error {
	for _, ddl := range schemaDDL {
		if _, err := db.conn.Exec(ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}
	if db.cfg.Path != "" {
		if _, err := db.conn.Exec("CHECKPOINT"); err != nil {
			return fmt.Errorf("failed to checkpoint after DDL: %w", err)
		}
	}
	return nil
}
