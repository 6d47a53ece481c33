// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

// Package ingest consumes learner activity statements from NATS JetStream
// and drives them through normalization, the idempotent warehouse write,
// and safety evaluation.
//
// The package owns the full delivery lifecycle: a durable queue-group
// subscription with bounded in-flight messages, a fixed worker pool, a
// dead-letter stream for messages that can never succeed, and a failure
// ledger with retry and resolve operations for operator-driven recovery.
//
// Acknowledgment policy: malformed messages are acked after being recorded
// and dead-lettered (redelivery cannot fix them); transient write failures
// are nacked so JetStream redelivers; everything else acks exactly once
// after the warehouse write.
package ingest
