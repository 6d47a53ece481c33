// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

// Package models defines the shared data types for the ingestion pipeline:
// raw xAPI statement payloads, normalized warehouse rows, user profiles,
// failure ledger entries, and cohort registry rows.
package models
