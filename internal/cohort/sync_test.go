// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package cohort

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cursus/internal/config"
	"github.com/tomtom215/cursus/internal/models"
)

type mockStore struct {
	mu       sync.Mutex
	profiles []*models.UserProfile
	counts   map[string]int64
	cohorts  map[string]*models.Cohort

	listErr   error
	syncCalls int
}

func newMockStore() *mockStore {
	return &mockStore{
		counts:  make(map[string]int64),
		cohorts: make(map[string]*models.Cohort),
	}
}

func (m *mockStore) ListProfiles(_ context.Context) ([]*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.profiles, nil
}

func (m *mockStore) CountStatementsByCohort(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts, nil
}

func (m *mockStore) UpsertCohort(_ context.Context, c *models.Cohort) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cohorts[c.CohortID] = c
	return nil
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncCalls
}

func profile(id, team, group string) *models.UserProfile {
	return &models.UserProfile{UserID: id, Team: team, Group: group}
}

func TestSyncFromProfiles(t *testing.T) {
	store := newMockStore()
	store.profiles = []*models.UserProfile{
		profile("a@x.com", "Red", "North"),
		profile("b@x.com", "Red", "North"),
		profile("c@x.com", "Blue Team", "South-West"),
		profile("d@x.com", "", ""),
	}
	store.counts = map[string]int64{
		"north_red":            12,
		"south_west_blue_team": 3,
	}

	n, err := NewSyncer(store).SyncFromProfiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("cohorts = %d, want 3", n)
	}

	north := store.cohorts["north_red"]
	if north == nil {
		t.Fatal("north_red cohort missing")
	}
	if north.UserCount != 2 || north.StatementCount != 12 {
		t.Errorf("north_red counts = %d users / %d statements", north.UserCount, north.StatementCount)
	}
	if north.Name != "North Red" {
		t.Errorf("Name = %q", north.Name)
	}

	sw := store.cohorts["south_west_blue_team"]
	if sw == nil || sw.UserCount != 1 || sw.StatementCount != 3 {
		t.Errorf("south_west_blue_team = %+v", sw)
	}

	// Profiles without cohort attributes land in the placeholder cohort.
	if placeholder := store.cohorts["x_x"]; placeholder == nil || placeholder.UserCount != 1 {
		t.Errorf("placeholder cohort = %+v", placeholder)
	}
}

func TestSyncDeterministic(t *testing.T) {
	store := newMockStore()
	store.profiles = []*models.UserProfile{
		profile("a@x.com", "Red", "North"),
		profile("b@x.com", "red", "north"), // different casing, same cohort
	}

	if _, err := NewSyncer(store).SyncFromProfiles(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := store.cohorts["north_red"]
	if c == nil || c.UserCount != 2 {
		t.Fatalf("case-variant attributes split the cohort: %+v", store.cohorts)
	}
}

func TestSyncListFailure(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("db closed")

	if _, err := NewSyncer(store).SyncFromProfiles(context.Background()); err == nil {
		t.Fatal("expected sync error")
	}
	if len(store.cohorts) != 0 {
		t.Error("cohorts upserted despite list failure")
	}
}

func TestSchedulerTrigger(t *testing.T) {
	store := newMockStore()
	s := NewScheduler(NewSyncer(store), config.CohortConfig{SyncInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	// Startup sync.
	waitFor(t, func() bool { return store.calls() >= 1 })

	s.Trigger()
	waitFor(t, func() bool { return store.calls() >= 2 })

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
