// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cursus/internal/config"
	"github.com/tomtom215/cursus/internal/metrics"
)

// DeadLetterSink publishes failure envelopes to the dead-letter stream.
type DeadLetterSink interface {
	PublishDeadLetter(ctx context.Context, msg *DeadLetterMessage) error
}

// Publisher writes dead-letter envelopes to NATS with circuit breaker
// protection. A broken broker trips the breaker so the consume path is not
// slowed by repeated publish timeouts; dead-letter delivery is best-effort
// and the ledger remains the durable record either way.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	subject   string

	mu     sync.Mutex
	closed bool
}

// NewPublisher creates the dead-letter publisher.
func NewPublisher(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // stream pre-created by StreamManager
			TrackMsgId:    true,  // broker-side dedup on republish
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "deadletter-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Publisher{
		publisher: pub,
		breaker:   breaker,
		subject:   cfg.DLQSubject,
	}, nil
}

// PublishDeadLetter serializes and publishes one envelope. The message UUID
// doubles as the Nats-Msg-Id for JetStream deduplication.
func (p *Publisher) PublishDeadLetter(ctx context.Context, dlm *DeadLetterMessage) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.Unlock()

	data, err := EncodeDeadLetter(dlm)
	if err != nil {
		return err
	}

	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	msg.Metadata.Set("stage", dlm.Stage)
	msg.Metadata.Set("error_type", dlm.ErrorType)

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(p.subject, msg)
	})
	if err != nil {
		metrics.DLQPublishErrors.Inc()
		return fmt.Errorf("publish dead letter: %w", err)
	}

	metrics.DLQPublished.Inc()
	return nil
}

// Close shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
