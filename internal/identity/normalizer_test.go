// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package identity

import (
	"testing"
	"time"

	"github.com/tomtom215/cursus/internal/models"
)

func TestNormalizeMboxActor(t *testing.T) {
	n := NewNormalizer()
	p := n.Normalize(models.RawActor{Mbox: "mailto:A@X.com", Name: "Ada"})
	if p.UserID != "a@x.com" {
		t.Errorf("UserID = %q, want a@x.com", p.UserID)
	}
	if p.Email != "a@x.com" {
		t.Errorf("Email = %q, want a@x.com", p.Email)
	}
	if p.Name != "Ada" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.ActivityCount != 1 {
		t.Errorf("ActivityCount = %d, want 1", p.ActivityCount)
	}
	if len(p.Sources) != 1 || p.Sources[0] != SourceXAPI {
		t.Errorf("Sources = %v", p.Sources)
	}
}

func TestNormalizeAccountActor(t *testing.T) {
	n := NewNormalizer()
	p := n.Normalize(models.RawActor{
		Account: &models.RawAccount{HomePage: "https://lms.example.com", Name: "ada42"},
	})
	if p.UserID != "https://lms.example.com::ada42" {
		t.Errorf("UserID = %q", p.UserID)
	}
	if p.Name != "ada42" {
		t.Errorf("Name = %q, want account name fallback", p.Name)
	}
}

func TestNormalizeOpenIDActor(t *testing.T) {
	n := NewNormalizer()
	p := n.Normalize(models.RawActor{OpenID: "https://openid.example.com/ada"})
	if p.UserID != "https://openid.example.com/ada" {
		t.Errorf("UserID = %q", p.UserID)
	}
}

func TestNormalizeEmail(t *testing.T) {
	n := NewNormalizer()
	// A valid address is lowercased and stripped of the mailto: scheme.
	if got := n.NormalizeEmail("  mailto:Ada@Example.com "); got != "ada@example.com" {
		t.Errorf("NormalizeEmail = %q, want ada@example.com", got)
	}
}

func TestNormalizeEmailInvalidFallsBackToRaw(t *testing.T) {
	n := NewNormalizer()
	// Not an email: the trimmed value keeps its exact form, no lowercasing
	// and no scheme strip, so opaque keys stay distinct.
	if got := n.NormalizeEmail(" mailto:Not-An-Email "); got != "mailto:Not-An-Email" {
		t.Errorf("NormalizeEmail = %q, want the raw trimmed value", got)
	}
	if got := n.NormalizeEmail("User-12345"); got != "User-12345" {
		t.Errorf("NormalizeEmail = %q, want case preserved", got)
	}
}

func TestMergeAdditivity(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	a := models.UserProfile{
		UserID:        "a@x.com",
		Email:         "a@x.com",
		Name:          "Ada",
		Sources:       []string{"csv"},
		FirstSeen:     early,
		LastSeen:      early,
		ActivityCount: 3,
	}
	b := models.UserProfile{
		UserID:        "a@x.com",
		Name:          "Ada Lovelace",
		Sources:       []string{"xapi", "csv"},
		FirstSeen:     late,
		LastSeen:      late,
		ActivityCount: 2,
	}

	m := Merge(a, b)
	if m.ActivityCount != 5 {
		t.Errorf("ActivityCount = %d, want 5", m.ActivityCount)
	}
	if len(m.Sources) != 2 {
		t.Errorf("Sources = %v, want union of 2", m.Sources)
	}
	if m.Name != "Ada Lovelace" {
		t.Errorf("Name = %q, longer name should win", m.Name)
	}
	if !m.FirstSeen.Equal(early) {
		t.Errorf("FirstSeen = %s, earliest should win", m.FirstSeen)
	}
	if !m.LastSeen.Equal(late) {
		t.Errorf("LastSeen = %s, latest should win", m.LastSeen)
	}

	// Inputs untouched.
	if a.ActivityCount != 3 || len(a.Sources) != 1 {
		t.Error("Merge mutated its first argument")
	}
}

func TestMergeDoesNotShrink(t *testing.T) {
	a := models.UserProfile{UserID: "u", Sources: []string{"csv", "xapi"}, ActivityCount: 10}
	b := models.UserProfile{UserID: "u", Sources: []string{"xapi"}, ActivityCount: 1}
	m := Merge(a, b)
	if len(m.Sources) != 2 {
		t.Errorf("Sources = %v, existing sources must survive", m.Sources)
	}
	if m.ActivityCount != 11 {
		t.Errorf("ActivityCount = %d, want 11", m.ActivityCount)
	}
}
