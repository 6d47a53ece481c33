// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package rosterimport

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
)

// progressKey is the BadgerDB key for roster import progress.
const progressKey = "import:roster:progress"

// ErrNoProgress is returned by Load when no checkpoint exists.
var ErrNoProgress = errors.New("no saved import progress")

// ProgressTracker persists import progress so a large roster import can
// resume after an interruption.
type ProgressTracker interface {
	Save(ctx context.Context, stats *ImportStats) error
	Load(ctx context.Context) (*ImportStats, error)
	Clear(ctx context.Context) error
}

// BadgerProgress implements ProgressTracker on BadgerDB. The store outlives
// the process, which is what makes resume across restarts work.
type BadgerProgress struct {
	db *badger.DB
}

// NewBadgerProgress wraps an open BadgerDB instance.
func NewBadgerProgress(db *badger.DB) *BadgerProgress {
	return &BadgerProgress{db: db}
}

// OpenProgressDB opens the checkpoint store at dir. An empty dir opens an
// in-memory store, which disables resume across restarts.
func OpenProgressDB(dir string) (*badger.DB, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open import progress store: %w", err)
	}
	return db, nil
}

// Save persists the current progress, overwriting any previous checkpoint.
func (p *BadgerProgress) Save(_ context.Context, stats *ImportStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode import progress: %w", err)
	}
	err = p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(progressKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save import progress: %w", err)
	}
	return nil
}

// Load retrieves the last checkpoint. Returns ErrNoProgress when none exists.
func (p *BadgerProgress) Load(_ context.Context) (*ImportStats, error) {
	var stats ImportStats
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(progressKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stats)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load import progress: %w", err)
	}
	return &stats, nil
}

// Clear removes the checkpoint so the next import starts from row zero.
func (p *BadgerProgress) Clear(_ context.Context) error {
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(progressKey))
	})
	if err != nil {
		return fmt.Errorf("failed to clear import progress: %w", err)
	}
	return nil
}
