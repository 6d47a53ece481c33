// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package safety

import (
	"strings"
	"time"
)

// alertStore is a fixed-capacity ring of AlertRecords with a secondary hash
// index on the dedup key. When the ring is full the oldest record is
// evicted together with its index entry, keeping index growth bounded at
// the cost of dedup for statements older than the whole ring. Durable
// history lives in the warehouse; this store only serves the recent views.
//
// Not safe for concurrent use; the engine's mutex guards every call.
type alertStore struct {
	records  []*AlertRecord // ring buffer, nil until filled
	head     int            // next write position
	size     int
	capacity int
	index    map[string]*AlertRecord // dedup key -> record
}

func newAlertStore(capacity int) *alertStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &alertStore{
		records:  make([]*AlertRecord, capacity),
		capacity: capacity,
		index:    make(map[string]*AlertRecord, capacity),
	}
}

// dedupKey is statement id crossed with the sorted matched word-set.
func dedupKey(statementID string, sortedWords []string) string {
	return statementID + "|" + strings.Join(sortedWords, ",")
}

// lookup returns the existing record for the dedup key, if any.
func (s *alertStore) lookup(key string) (*AlertRecord, bool) {
	r, ok := s.index[key]
	return r, ok
}

// add appends a record, evicting the oldest record and its index entry when
// at capacity.
func (s *alertStore) add(key string, record *AlertRecord) {
	if old := s.records[s.head]; old != nil {
		delete(s.index, dedupKey(old.StatementID, old.Matches))
		s.size--
	}
	s.records[s.head] = record
	s.head = (s.head + 1) % s.capacity
	s.size++
	s.index[key] = record
}

// recent returns up to limit records not older than cutoff, newest first.
func (s *alertStore) recent(limit int, cutoff time.Time) []*AlertRecord {
	if limit <= 0 || limit > s.size {
		limit = s.size
	}
	out := make([]*AlertRecord, 0, limit)
	// Walk backwards from the newest write position.
	for i := 1; i <= s.size && len(out) < limit; i++ {
		pos := (s.head - i + s.capacity) % s.capacity
		r := s.records[pos]
		if r == nil {
			break
		}
		if r.DetectedAt.Before(cutoff) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// all returns every record in the window, newest first, without a limit.
func (s *alertStore) all(cutoff time.Time) []*AlertRecord {
	return s.recent(s.size, cutoff)
}

func (s *alertStore) len() int {
	return s.size
}
