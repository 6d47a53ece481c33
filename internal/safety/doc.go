// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

// Package safety implements the trigger-word alert engine.
//
// Every decoded statement, live or backfilled, is matched against the
// configured trigger words. Matching is deliberately conservative:
// case-insensitive substring matching via an Aho-Corasick automaton, because
// trigger words represent safety-critical phrases and false positives are
// preferred over false negatives.
//
// Alerts deduplicate on (statement id, matched word-set): re-evaluating the
// same statement returns the existing alert id instead of recording or
// notifying again. Adding a new trigger word schedules a retroactive scan
// over the historical statement store so past statements containing the
// word are alerted on too.
package safety
