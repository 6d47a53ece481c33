// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package rosterimport

import "time"

// ImportStats tracks the progress and outcome of a roster import. The
// checkpointed copy lets an interrupted run resume at RowsRead.
type ImportStats struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time,omitempty"`
	SourcePath     string    `json:"source_path"`
	RowsRead       int64     `json:"rows_read"`
	ProfilesMerged int64     `json:"profiles_merged"`
	RowsSkipped    int64     `json:"rows_skipped"`
	RowsFailed     int64     `json:"rows_failed"`
	DryRun         bool      `json:"dry_run"`
	Completed      bool      `json:"completed"`
}

// Duration returns the elapsed import time, using now for a run still in
// progress.
func (s *ImportStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}
