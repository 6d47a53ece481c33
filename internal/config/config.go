// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	NATS     NATSConfig     `koanf:"nats"`
	Database DatabaseConfig `koanf:"database"`
	Consumer ConsumerConfig `koanf:"consumer"`
	Safety   SafetyConfig   `koanf:"safety"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Cohort   CohortConfig   `koanf:"cohort"`
	Import   ImportConfig   `koanf:"import"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// NATSConfig holds NATS JetStream connection and stream settings.
//
// Environment Variables:
//   - NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
//   - NATS_STREAM: statements stream name (default: STATEMENTS)
//   - NATS_SUBJECT: statements subject (default: statements.incoming)
//   - NATS_DLQ_STREAM: dead-letter stream name (default: STATEMENTS_DLQ)
//   - NATS_DLQ_SUBJECT: dead-letter subject (default: statements.deadletter)
//   - NATS_DURABLE_NAME: durable consumer name (default: cursus-ingest)
//   - NATS_QUEUE_GROUP: queue group for load balancing (default: ingesters)
//   - NATS_ACK_WAIT: redelivery deadline (default: 30s)
//   - NATS_MAX_ACK_PENDING: in-flight message cap (default: 256)
//   - NATS_RETENTION_DAYS: stream retention in days (default: 7)
type NATSConfig struct {
	URL           string        `koanf:"url"`
	Stream        string        `koanf:"stream"`
	Subject       string        `koanf:"subject"`
	DLQStream     string        `koanf:"dlq_stream"`
	DLQSubject    string        `koanf:"dlq_subject"`
	DurableName   string        `koanf:"durable_name"`
	QueueGroup    string        `koanf:"queue_group"`
	AckWait       time.Duration `koanf:"ack_wait"`
	MaxAckPending int           `koanf:"max_ack_pending"`
	RetentionDays int           `koanf:"retention_days"`
}

// DatabaseConfig holds DuckDB warehouse settings.
//
// Environment Variables:
//   - DUCKDB_PATH: database file path; empty string for in-memory (default: /data/cursus.duckdb)
//   - DUCKDB_MAX_MEMORY: memory limit passed to DuckDB (default: 2GB)
//   - DUCKDB_THREADS: worker threads, 0 = runtime.NumCPU() (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// ConsumerConfig holds message consumer settings.
//
// Environment Variables:
//   - CONSUMER_WORKERS: worker pool size (default: 4)
//   - CONSUMER_DRAIN_TIMEOUT: shutdown drain deadline (default: 30s)
type ConsumerConfig struct {
	Workers      int           `koanf:"workers"`
	DrainTimeout time.Duration `koanf:"drain_timeout"`
}

// SafetyConfig holds trigger-word alert engine settings.
//
// Environment Variables:
//   - SAFETY_KEYWORDS: comma-separated initial trigger words
//   - SAFETY_ALERT_CAPACITY: bounded alert store size (default: 1000)
//   - SAFETY_RETENTION_DAYS: alert view window in days (default: 30)
type SafetyConfig struct {
	Keywords      []string `koanf:"keywords"`
	AlertCapacity int      `koanf:"alert_capacity"`
	RetentionDays int      `koanf:"retention_days"`
}

// SMTPConfig holds the outbound notification channel settings. Notification
// is entirely best-effort: when Host is empty the notifier is disabled and
// alerts are still recorded.
//
// Environment Variables:
//   - SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD
//   - SMTP_FROM: sender address
//   - SMTP_TO: comma-separated recipient addresses
//   - SMTP_RATE_PER_MINUTE: delivery throttle (default: 10)
type SMTPConfig struct {
	Host          string   `koanf:"host"`
	Port          int      `koanf:"port"`
	Username      string   `koanf:"username"`
	Password      string   `koanf:"password"`
	From          string   `koanf:"from"`
	To            []string `koanf:"to"`
	RatePerMinute int      `koanf:"rate_per_minute"`
}

// Enabled reports whether enough SMTP configuration is present to deliver.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

// CohortConfig holds cohort sync scheduler settings.
//
// Environment Variables:
//   - COHORT_SYNC_INTERVAL: periodic sync interval (default: 1h)
type CohortConfig struct {
	SyncInterval time.Duration `koanf:"sync_interval"`
}

// ImportConfig holds roster CSV import settings. A roster file maps users
// to teams and groups ahead of (or independent of) live statement traffic.
// Progress is checkpointed in BadgerDB so an interrupted import of a large
// roster resumes where it left off instead of re-merging every row.
//
// Environment Variables:
//   - IMPORT_ENABLED: run the roster import on startup (default: false)
//   - IMPORT_PATH: path to the roster CSV file
//   - IMPORT_BATCH_SIZE: rows per progress checkpoint (default: 500)
//   - IMPORT_DRY_RUN: parse and count without writing (default: false)
//   - IMPORT_PROGRESS_PATH: BadgerDB directory for checkpoints; empty uses
//     an in-memory store, which disables resume across restarts
type ImportConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Path         string `koanf:"path"`
	BatchSize    int    `koanf:"batch_size"`
	DryRun       bool   `koanf:"dry_run"`
	ProgressPath string `koanf:"progress_path"`
}

// ServerConfig holds the admin HTTP listener settings (healthz + metrics).
//
// Environment Variables:
//   - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT
//   - HTTP_RATE_LIMIT: requests per client IP per minute, 0 disables
//     (default: 120)
//   - HTTP_CORS_ORIGINS: comma-separated allowed origins (default: *)
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	RateLimit   int           `koanf:"rate_limit"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for malformed or contradictory values.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.NATS.Stream == "" || c.NATS.Subject == "" {
		return fmt.Errorf("nats.stream and nats.subject are required")
	}
	if c.NATS.DLQStream == "" || c.NATS.DLQSubject == "" {
		return fmt.Errorf("nats.dlq_stream and nats.dlq_subject are required")
	}
	if c.NATS.MaxAckPending <= 0 {
		return fmt.Errorf("nats.max_ack_pending must be positive, got %d", c.NATS.MaxAckPending)
	}
	if c.NATS.AckWait <= 0 {
		return fmt.Errorf("nats.ack_wait must be positive, got %s", c.NATS.AckWait)
	}
	if c.Consumer.Workers <= 0 {
		return fmt.Errorf("consumer.workers must be positive, got %d", c.Consumer.Workers)
	}
	if c.Safety.AlertCapacity <= 0 {
		return fmt.Errorf("safety.alert_capacity must be positive, got %d", c.Safety.AlertCapacity)
	}
	if c.Safety.RetentionDays <= 0 {
		return fmt.Errorf("safety.retention_days must be positive, got %d", c.Safety.RetentionDays)
	}
	if c.SMTP.Host != "" {
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return fmt.Errorf("smtp.port must be 1-65535, got %d", c.SMTP.Port)
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from is required when smtp.host is set")
		}
	}
	if c.Cohort.SyncInterval <= 0 {
		return fmt.Errorf("cohort.sync_interval must be positive, got %s", c.Cohort.SyncInterval)
	}
	if c.Import.Enabled {
		if c.Import.Path == "" {
			return fmt.Errorf("import.path is required when import.enabled is true")
		}
		if c.Import.BatchSize <= 0 {
			return fmt.Errorf("import.batch_size must be positive, got %d", c.Import.BatchSize)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got %d", c.Server.RateLimit)
	}
	return nil
}
