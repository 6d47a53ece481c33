// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cursus/config.yaml",
	"/etc/cursus/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			Stream:        "STATEMENTS",
			Subject:       "statements.incoming",
			DLQStream:     "STATEMENTS_DLQ",
			DLQSubject:    "statements.deadletter",
			DurableName:   "cursus-ingest",
			QueueGroup:    "ingesters",
			AckWait:       30 * time.Second,
			MaxAckPending: 256,
			RetentionDays: 7,
		},
		Database: DatabaseConfig{
			Path:      "/data/cursus.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Consumer: ConsumerConfig{
			Workers:      4,
			DrainTimeout: 30 * time.Second,
		},
		Safety: SafetyConfig{
			Keywords:      []string{},
			AlertCapacity: 1000,
			RetentionDays: 30,
		},
		SMTP: SMTPConfig{
			Host:          "", // disabled by default
			Port:          587,
			RatePerMinute: 10,
		},
		Cohort: CohortConfig{
			SyncInterval: time.Hour,
		},
		Import: ImportConfig{
			Enabled:      false,
			BatchSize:    500,
			ProgressPath: "", // in-memory unless configured
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8420,
			Timeout:     30 * time.Second,
			RateLimit:   120,
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when supplied via environment variables.
var sliceConfigPaths = []string{
	"safety.keywords",
	"smtp.to",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings, the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return "" and are skipped so random environment variables
// cannot pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// NATS mappings
		"nats_url":             "nats.url",
		"nats_stream":          "nats.stream",
		"nats_subject":         "nats.subject",
		"nats_dlq_stream":      "nats.dlq_stream",
		"nats_dlq_subject":     "nats.dlq_subject",
		"nats_durable_name":    "nats.durable_name",
		"nats_queue_group":     "nats.queue_group",
		"nats_ack_wait":        "nats.ack_wait",
		"nats_max_ack_pending": "nats.max_ack_pending",
		"nats_retention_days":  "nats.retention_days",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Consumer mappings
		"consumer_workers":       "consumer.workers",
		"consumer_drain_timeout": "consumer.drain_timeout",

		// Safety mappings
		"safety_keywords":       "safety.keywords",
		"safety_alert_capacity": "safety.alert_capacity",
		"safety_retention_days": "safety.retention_days",

		// SMTP mappings
		"smtp_host":            "smtp.host",
		"smtp_port":            "smtp.port",
		"smtp_username":        "smtp.username",
		"smtp_password":        "smtp.password",
		"smtp_from":            "smtp.from",
		"smtp_to":              "smtp.to",
		"smtp_rate_per_minute": "smtp.rate_per_minute",

		// Cohort mappings
		"cohort_sync_interval": "cohort.sync_interval",

		// Import mappings
		"import_enabled":       "import.enabled",
		"import_path":          "import.path",
		"import_batch_size":    "import.batch_size",
		"import_dry_run":       "import.dry_run",
		"import_progress_path": "import.progress_path",

		// Server mappings
		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"http_rate_limit":   "server.rate_limit",
		"http_cors_origins": "server.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
