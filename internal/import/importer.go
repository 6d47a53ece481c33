// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

// Package rosterimport loads spreadsheet-style roster exports into the
// profile store. A roster row carries at minimum an email or name plus the
// team and group attributes that drive cohort derivation, so importing a
// roster before live traffic arrives gives every learner a profile and a
// cohort from the first statement onward.
//
// Rows are merged through the same additive profile merge as live ingestion,
// which makes the import safe to re-run and safe to interleave with live
// statements for the same users. Progress is checkpointed every BatchSize
// rows so an interrupted import of a large file resumes instead of starting
// over.
package rosterimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tomtom215/cursus/internal/config"
	"github.com/tomtom215/cursus/internal/identity"
	"github.com/tomtom215/cursus/internal/logging"
	"github.com/tomtom215/cursus/internal/models"
)

// ProfileStore is the warehouse surface the importer writes through.
type ProfileStore interface {
	MergeProfile(ctx context.Context, fragment models.UserProfile) (*models.UserProfile, error)
}

// Importer reads a roster CSV and merges each row into the profile store.
type Importer struct {
	cfg        config.ImportConfig
	store      ProfileStore
	progress   ProgressTracker
	normalizer *identity.Normalizer

	mu      sync.Mutex
	running bool
	stats   *ImportStats
}

// NewImporter creates a roster importer.
func NewImporter(cfg config.ImportConfig, store ProfileStore, progress ProgressTracker) *Importer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Importer{
		cfg:        cfg,
		store:      store,
		progress:   progress,
		normalizer: identity.NewNormalizer(),
	}
}

// Stats returns a snapshot of the current or most recent run. Returns nil
// before the first run.
func (i *Importer) Stats() *ImportStats {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stats == nil {
		return nil
	}
	snapshot := *i.stats
	return &snapshot
}

// Import runs the roster import. Only one run may be active at a time.
// A checkpoint from an earlier interrupted run of the same file resumes it;
// a completed or mismatched checkpoint is discarded.
func (i *Importer) Import(ctx context.Context) (*ImportStats, error) {
	i.mu.Lock()
	if i.running {
		i.mu.Unlock()
		return nil, fmt.Errorf("import already in progress")
	}
	i.running = true
	stats := &ImportStats{
		StartTime:  time.Now().UTC(),
		SourcePath: i.cfg.Path,
		DryRun:     i.cfg.DryRun,
	}
	i.stats = stats
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.running = false
		stats.EndTime = time.Now().UTC()
		i.mu.Unlock()
	}()

	resumeFrom := i.loadCheckpoint(ctx, stats)

	file, err := os.Open(i.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // rosters from spreadsheets are often ragged
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster header: %w", err)
	}

	logging.Info().
		Str("path", i.cfg.Path).
		Int("columns", len(header)).
		Int64("resume_from", resumeFrom).
		Bool("dry_run", i.cfg.DryRun).
		Msg("Starting roster import")

	if err := i.importRows(ctx, reader, header, stats, resumeFrom); err != nil {
		i.saveCheckpoint(ctx, stats)
		return nil, err
	}

	stats.Completed = true
	i.saveCheckpoint(ctx, stats)

	logging.Info().
		Int64("rows_read", stats.RowsRead).
		Int64("profiles_merged", stats.ProfilesMerged).
		Int64("rows_skipped", stats.RowsSkipped).
		Int64("rows_failed", stats.RowsFailed).
		Dur("duration", stats.Duration()).
		Msg("Roster import finished")

	snapshot := *stats
	return &snapshot, nil
}

func (i *Importer) importRows(ctx context.Context, reader *csv.Reader, header []string,
	stats *ImportStats, resumeFrom int64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			stats.RowsRead++
			stats.RowsFailed++
			logging.Warn().Err(err).Int64("row", stats.RowsRead).Msg("Malformed roster row")
			continue
		}

		stats.RowsRead++
		if stats.RowsRead <= resumeFrom {
			continue
		}

		fragment := i.normalizer.FromImportRow(rowMap(header, record))
		if fragment.UserID == "" {
			stats.RowsSkipped++
			continue
		}

		if !i.cfg.DryRun {
			if _, err := i.store.MergeProfile(ctx, fragment); err != nil {
				stats.RowsFailed++
				logging.Warn().Err(err).
					Str("user_id", fragment.UserID).
					Int64("row", stats.RowsRead).
					Msg("Failed to merge roster row")
				continue
			}
		}
		stats.ProfilesMerged++

		if stats.RowsRead%int64(i.cfg.BatchSize) == 0 {
			i.saveCheckpoint(ctx, stats)
			logging.Debug().Int64("rows_read", stats.RowsRead).Msg("Roster import checkpoint")
		}
	}
}

// loadCheckpoint returns the row offset to resume from. Checkpoints for a
// different file or a completed run are cleared.
func (i *Importer) loadCheckpoint(ctx context.Context, stats *ImportStats) int64 {
	prev, err := i.progress.Load(ctx)
	if errors.Is(err, ErrNoProgress) {
		return 0
	}
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to load import checkpoint, starting fresh")
		return 0
	}
	if prev.Completed || prev.SourcePath != i.cfg.Path || prev.DryRun != i.cfg.DryRun {
		if err := i.progress.Clear(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to clear stale import checkpoint")
		}
		return 0
	}

	stats.ProfilesMerged = prev.ProfilesMerged
	stats.RowsSkipped = prev.RowsSkipped
	stats.RowsFailed = prev.RowsFailed
	return prev.RowsRead
}

func (i *Importer) saveCheckpoint(ctx context.Context, stats *ImportStats) {
	if err := i.progress.Save(ctx, stats); err != nil {
		logging.Warn().Err(err).Msg("Failed to save import checkpoint")
	}
}

func rowMap(header, record []string) map[string]string {
	row := make(map[string]string, len(header))
	for idx, col := range header {
		if idx < len(record) {
			row[col] = record[idx]
		}
	}
	return row
}
