// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package rosterimport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestProgress(t *testing.T) *BadgerProgress {
	t.Helper()
	db, err := OpenProgressDB("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerProgress(db)
}

func TestProgressSaveLoad(t *testing.T) {
	progress := newTestProgress(t)
	ctx := context.Background()

	saved := &ImportStats{
		StartTime:      time.Now().UTC().Truncate(time.Second),
		SourcePath:     "/data/roster.csv",
		RowsRead:       1500,
		ProfilesMerged: 1400,
		RowsSkipped:    100,
	}
	if err := progress.Save(ctx, saved); err != nil {
		t.Fatal(err)
	}

	loaded, err := progress.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RowsRead != 1500 || loaded.ProfilesMerged != 1400 {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.SourcePath != "/data/roster.csv" {
		t.Errorf("SourcePath = %q", loaded.SourcePath)
	}
}

func TestProgressLoadEmpty(t *testing.T) {
	progress := newTestProgress(t)
	if _, err := progress.Load(context.Background()); !errors.Is(err, ErrNoProgress) {
		t.Errorf("err = %v, want ErrNoProgress", err)
	}
}

func TestProgressClear(t *testing.T) {
	progress := newTestProgress(t)
	ctx := context.Background()

	if err := progress.Save(ctx, &ImportStats{RowsRead: 10}); err != nil {
		t.Fatal(err)
	}
	if err := progress.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := progress.Load(ctx); !errors.Is(err, ErrNoProgress) {
		t.Errorf("err after clear = %v, want ErrNoProgress", err)
	}

	// Clearing again is a no-op.
	if err := progress.Clear(ctx); err != nil {
		t.Fatal(err)
	}
}
