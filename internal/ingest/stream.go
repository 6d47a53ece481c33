// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/cursus/internal/config"
)

// StreamManager provisions the JetStream streams the pipeline depends on:
// the statements stream consumers pull from and the dead-letter stream
// failed payloads are parked on.
type StreamManager struct {
	js  jetstream.JetStream
	cfg config.NATSConfig
}

// NewStreamManager creates a stream manager over an established connection.
func NewStreamManager(nc *nats.Conn, cfg config.NATSConfig) (*StreamManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return &StreamManager{js: js, cfg: cfg}, nil
}

// EnsureStreams creates or updates both streams. Idempotent; safe to run on
// every startup.
func (m *StreamManager) EnsureStreams(ctx context.Context) error {
	maxAge := time.Duration(m.cfg.RetentionDays) * 24 * time.Hour

	statements := jetstream.StreamConfig{
		Name:       m.cfg.Stream,
		Subjects:   []string{m.cfg.Subject},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     maxAge,
		Duplicates: 2 * time.Minute,
		Replicas:   1,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}
	if err := m.ensure(ctx, statements); err != nil {
		return fmt.Errorf("ensure statements stream: %w", err)
	}

	// Dead letters are kept longer than live traffic so an operator has
	// time to investigate before the payload ages out.
	deadletter := jetstream.StreamConfig{
		Name:       m.cfg.DLQStream,
		Subjects:   []string{m.cfg.DLQSubject},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     2 * maxAge,
		Duplicates: 2 * time.Minute,
		Replicas:   1,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}
	if err := m.ensure(ctx, deadletter); err != nil {
		return fmt.Errorf("ensure dead-letter stream: %w", err)
	}

	return nil
}

func (m *StreamManager) ensure(ctx context.Context, cfg jetstream.StreamConfig) error {
	if _, err := m.js.Stream(ctx, cfg.Name); err == nil {
		if _, err := m.js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		return nil
	}
	if _, err := m.js.CreateStream(ctx, cfg); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

// StreamInfo returns the current state of the statements stream.
func (m *StreamManager) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.cfg.Stream)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	return stream.Info(ctx)
}
