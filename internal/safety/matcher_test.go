// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package safety

import (
	"reflect"
	"testing"
)

func TestMatcherMatch(t *testing.T) {
	m := NewMatcher([]string{"suicide", "don't want to be here", "hurt"})

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"no match", "everything is fine", nil},
		{"single match", "i don't want to be here anymore", []string{"don't want to be here"}},
		{"case insensitive", "I DON'T WANT TO BE HERE", []string{"don't want to be here"}},
		{"multiple matches", "hurt myself, suicide", []string{"hurt", "suicide"}},
		{"substring inside word", "unhurtful", []string{"hurt"}},
		{"duplicate occurrences collapse", "hurt and hurt again", []string{"hurt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Match(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatcherOverlappingPatterns(t *testing.T) {
	// "he" is a suffix of "she"; failure links must surface both.
	m := NewMatcher([]string{"she", "he", "hers"})
	got := m.Match("she sells hers")
	want := []string{"he", "hers", "she"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Match = %v, want %v", got, want)
	}
}

func TestMatcherEmpty(t *testing.T) {
	m := NewMatcher(nil)
	if m.Match("anything") != nil {
		t.Error("empty matcher should match nothing")
	}
	if m.Contains("anything") {
		t.Error("empty matcher Contains should be false")
	}
	if m.WordCount() != 0 {
		t.Errorf("WordCount = %d", m.WordCount())
	}
}

func TestMatcherContains(t *testing.T) {
	m := NewMatcher([]string{"crisis"})
	if !m.Contains("a Crisis moment") {
		t.Error("Contains missed a match")
	}
	if m.Contains("calm waters") {
		t.Error("Contains false positive")
	}
}
