// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package identity

import "testing"

func TestFromImportRow(t *testing.T) {
	n := NewNormalizer()
	p := n.FromImportRow(map[string]string{
		"Email": "A@X.com",
		"Name":  "Ada Lovelace",
		"Team":  "Red",
		"Group": "North",
	})
	if p.UserID != "a@x.com" {
		t.Errorf("UserID = %q, want a@x.com", p.UserID)
	}
	if p.Name != "Ada Lovelace" {
		t.Errorf("Name = %q", p.Name)
	}
	if len(p.Sources) != 1 || p.Sources[0] != SourceCSV {
		t.Errorf("Sources = %v", p.Sources)
	}
	if len(p.Metadata) != 1 {
		t.Errorf("Metadata = %d blobs, want the raw row preserved", len(p.Metadata))
	}
	if p.Team != "Red" || p.Group != "North" {
		t.Errorf("Team/Group = %q/%q, want Red/North", p.Team, p.Group)
	}
}

func TestFromImportRowNameFallback(t *testing.T) {
	n := NewNormalizer()
	p := n.FromImportRow(map[string]string{
		"email_address": "b@y.com",
		"First Name":    "Grace",
		"Last-Name":     "Hopper",
	})
	if p.Name != "Grace Hopper" {
		t.Errorf("Name = %q, want first+last concat", p.Name)
	}
	if p.UserID != "b@y.com" {
		t.Errorf("UserID = %q", p.UserID)
	}
}

func TestFromImportRowNoMatches(t *testing.T) {
	n := NewNormalizer()
	p := n.FromImportRow(map[string]string{"Widget": "thing"})
	if p.UserID != "" {
		t.Errorf("UserID = %q, want empty", p.UserID)
	}
	if len(p.Metadata) != 1 {
		t.Error("raw row should still be preserved as metadata")
	}
}

func TestRowCohort(t *testing.T) {
	id, name := RowCohort(map[string]string{"Team": "Red", "Group": "North"})
	if id != "north_red" {
		t.Errorf("id = %q, want north_red", id)
	}
	if name != "North Red" {
		t.Errorf("name = %q, want North Red", name)
	}

	id, _ = RowCohort(map[string]string{})
	if id != "x_x" {
		t.Errorf("default id = %q, want x_x", id)
	}
}
