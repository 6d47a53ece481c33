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
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/cursus/internal/config"
)

// maxDeliver bounds JetStream redelivery attempts for a nacked message.
// A message that exhausts its attempts stays on the stream but is no
// longer redelivered; the failure ledger tracks it for operator retry.
const maxDeliver = 5

// Subscriber wraps a durable Watermill NATS JetStream subscription.
// Messages are load-balanced across process instances through the queue
// group, and MaxAckPending caps in-flight deliveries as flow control.
type Subscriber struct {
	subscriber message.Subscriber
	subject    string

	mu     sync.Mutex
	closed bool
}

// NewSubscriber connects to NATS and binds a durable consumer to the
// statements stream. The stream must already exist; provisioning belongs
// to StreamManager.
func NewSubscriber(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
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
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(maxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWait),
		natsgo.DeliverAll(),
		natsgo.BindStream(cfg.Stream),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false, // stream pre-created by StreamManager
			AckAsync:         false, // sync acks, at-least-once requires it
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{
		subscriber: sub,
		subject:    cfg.Subject,
	}, nil
}

// Subscribe opens the message channel for the configured subject. The
// channel closes when ctx is canceled or the subscriber is closed.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("subscriber is closed")
	}
	s.mu.Unlock()

	ch, err := s.subscriber.Subscribe(ctx, s.subject)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", s.subject, err)
	}
	return ch, nil
}

// Close shuts down the subscription and the NATS connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.subscriber.Close()
}
