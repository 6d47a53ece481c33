// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

// Package warehouse owns the DuckDB analytics store: the statements table
// written via idempotent conditional insert, the merged user profile table,
// the append-only failure ledger, and the cohort registry.
//
// All writes are parameterized. The statements insert uses
// ON CONFLICT (statement_id) DO NOTHING so that queue redelivery converts
// at-least-once delivery into effectively-exactly-once storage without
// duplicate-key failures.
package warehouse
