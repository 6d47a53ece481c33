// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

// Package main is the entry point for the Cursus server.
//
// Cursus ingests xAPI-style learner activity statements from NATS
// JetStream into a DuckDB warehouse, merges actor identities into user
// profiles, groups users into cohorts, and scans every statement for
// configurable trigger words that raise safety alerts.
//
// Startup order:
//
//  1. Configuration (Koanf v2: defaults, config file, environment)
//  2. Logging (zerolog)
//  3. DuckDB warehouse and schema
//  4. JetStream stream provisioning (statements + dead-letter)
//  5. Alert engine with retroactive scan of pending keywords
//  6. Consumer, cohort scheduler, and admin HTTP server under a
//     suture supervisor
//
// Shutdown on SIGINT/SIGTERM cancels the supervisor context; the consumer
// stops pulling and drains in-flight messages before the process exits.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/cursus/internal/api"
	"github.com/tomtom215/cursus/internal/cohort"
	"github.com/tomtom215/cursus/internal/config"
	rosterimport "github.com/tomtom215/cursus/internal/import"
	"github.com/tomtom215/cursus/internal/ingest"
	"github.com/tomtom215/cursus/internal/logging"
	"github.com/tomtom215/cursus/internal/safety"
	"github.com/tomtom215/cursus/internal/warehouse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("nats_url", cfg.NATS.URL).
		Str("db_path", cfg.Database.Path).
		Int("workers", cfg.Consumer.Workers).
		Msg("Starting Cursus")

	db, err := warehouse.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize warehouse")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing warehouse")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Provision streams before anything subscribes or publishes.
	nc, err := natsgo.Connect(cfg.NATS.URL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	streams, err := ingest.NewStreamManager(nc, cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream manager")
	}
	if err := streams.EnsureStreams(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision JetStream streams")
	}
	nc.Close()
	logging.Info().Str("stream", cfg.NATS.Stream).Str("dlq_stream", cfg.NATS.DLQStream).
		Msg("JetStream streams provisioned")

	wmLogger := ingest.NewWatermillLogger()

	subscriber, err := ingest.NewSubscriber(cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create subscriber")
	}

	publisher, err := ingest.NewPublisher(cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create dead-letter publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing dead-letter publisher")
		}
	}()

	notifier := safety.NewEmailNotifier(cfg.SMTP)
	if notifier.Enabled() {
		logging.Info().Str("host", cfg.SMTP.Host).Int("recipients", len(cfg.SMTP.To)).
			Msg("Alert email notifications enabled")
	} else {
		logging.Info().Msg("SMTP not configured, alerts are recorded without notification")
	}

	engine := safety.NewEngine(safety.Config{
		Keywords:      cfg.Safety.Keywords,
		AlertCapacity: cfg.Safety.AlertCapacity,
		RetentionDays: cfg.Safety.RetentionDays,
	}, db, notifier)

	// Backfill alerts for configured keywords that have never been scanned,
	// without delaying startup.
	go engine.ScanPendingKeywords(ctx)

	recovery := ingest.NewRecovery(db, publisher)
	consumer := ingest.NewConsumer(cfg.Consumer, subscriber, db, engine, recovery)
	scheduler := cohort.NewScheduler(cohort.NewSyncer(db), cfg.Cohort)

	// Roster import runs alongside live ingestion; both funnel through the
	// same additive profile merge.
	if cfg.Import.Enabled {
		progressDB, err := rosterimport.OpenProgressDB(cfg.Import.ProgressPath)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open import progress store")
		}
		defer func() {
			if err := progressDB.Close(); err != nil {
				logging.Warn().Err(err).Msg("Error closing import progress store")
			}
		}()

		importer := rosterimport.NewImporter(cfg.Import, db, rosterimport.NewBadgerProgress(progressDB))
		go func() {
			if _, err := importer.Import(ctx); err != nil {
				logging.Error().Err(err).Msg("Roster import failed")
				return
			}
			// Fold the imported profiles into the cohort registry right away.
			scheduler.Trigger()
		}()
	}

	handlers := api.NewHandlers(recovery, engine, db, consumer, scheduler.Trigger)
	server := api.NewServer(cfg.Server, api.NewRouter(handlers, cfg.Server))

	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()
	supervisor := suture.New("cursus", suture.Spec{
		EventHook:        hook,
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	supervisor.Add(consumer)
	supervisor.Add(scheduler)
	supervisor.Add(server)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := supervisor.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Flush any detached scans and notifications before the warehouse closes.
	engine.Wait()

	logging.Info().Msg("Cursus stopped")
}
