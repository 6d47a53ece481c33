// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package identity

import "testing"

func TestCohortID(t *testing.T) {
	tests := []struct {
		team, group string
		wantID      string
		wantName    string
	}{
		{"Red", "North", "north_red", "North Red"},
		{"", "", "x_x", "X X"},
		{"Red", "", "x_red", "X Red"},
		{"", "North", "north_x", "North X"},
		{"Blue Team", "South-West", "south_west_blue_team", "South-West Blue Team"},
		{"  Red  ", " North ", "north_red", "North Red"},
	}
	for _, tt := range tests {
		if got := CohortID(tt.team, tt.group); got != tt.wantID {
			t.Errorf("CohortID(%q, %q) = %q, want %q", tt.team, tt.group, got, tt.wantID)
		}
		if got := CohortName(tt.team, tt.group); got != tt.wantName {
			t.Errorf("CohortName(%q, %q) = %q, want %q", tt.team, tt.group, got, tt.wantName)
		}
	}
}

func TestCohortIDDeterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		if CohortID("Red", "North") != "north_red" {
			t.Fatal("CohortID not deterministic")
		}
	}
}
