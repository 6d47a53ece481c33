// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

// Package identity normalizes heterogeneous actor representations into
// canonical user identities.
//
// Actors arrive from three shapes of source: xAPI actor blocks (mbox,
// account, or openid identifiers), spreadsheet-style import rows with
// unpredictable column names, and historical backfills. The normalizer maps
// each onto the same UserProfile fragment so that the same person seen via
// CSV import and via live xAPI traffic resolves to one profile.
//
// Merging is strictly additive: first-seen only moves earlier, last-seen
// only moves later, activity counts sum, source sets and metadata blobs
// union. The cohort derivation in this package is pure and deterministic
// because it is recomputed independently by inline enrichment and by the
// batch cohort sync job, and the two must agree.
package identity
