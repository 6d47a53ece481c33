// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package safety

import (
	"sort"
	"strings"
)

// Matcher finds every configured trigger word occurring as a substring of a
// text in one pass, using an Aho-Corasick automaton. A Matcher is immutable
// after construction; the engine builds a fresh one on every keyword change
// and swaps it in, so searches never need a lock.
//
// Search cost is O(n + z) for text length n and z matches, independent of
// how many words are configured.
type Matcher struct {
	root  *matcherNode
	words []string
}

type matcherNode struct {
	children map[rune]*matcherNode
	failure  *matcherNode
	output   []int // indices into words that end at this node
}

func newMatcherNode() *matcherNode {
	return &matcherNode{children: make(map[rune]*matcherNode)}
}

// NewMatcher builds an automaton over the given words. Words are lowercased;
// empty strings are dropped.
func NewMatcher(words []string) *Matcher {
	m := &Matcher{root: newMatcherNode()}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		m.words = append(m.words, w)
	}

	for i, w := range m.words {
		node := m.root
		for _, ch := range w {
			next := node.children[ch]
			if next == nil {
				next = newMatcherNode()
				node.children[ch] = next
			}
			node = next
		}
		node.output = append(node.output, i)
	}

	m.buildFailureLinks()
	return m
}

// buildFailureLinks wires the suffix fallback links breadth-first.
func (m *Matcher) buildFailureLinks() {
	queue := make([]*matcherNode, 0, len(m.root.children))
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = m.root
			} else {
				child.failure = fail.children[ch]
				child.output = append(child.output, child.failure.output...)
			}
		}
	}
}

// Match returns the distinct trigger words present in text, sorted. The
// caller is expected to pass an already-lowercased search blob; text is
// lowercased again defensively since correctness here is safety-critical.
func (m *Matcher) Match(text string) []string {
	if len(m.words) == 0 {
		return nil
	}
	text = strings.ToLower(text)

	seen := make(map[int]struct{})
	node := m.root
	for _, ch := range text {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = m.root
			continue
		}
		node = node.children[ch]
		for _, idx := range node.output {
			seen[idx] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for idx := range seen {
		out = append(out, m.words[idx])
	}
	sort.Strings(out)
	return out
}

// Contains reports whether any trigger word occurs in text.
func (m *Matcher) Contains(text string) bool {
	if len(m.words) == 0 {
		return false
	}
	text = strings.ToLower(text)

	node := m.root
	for _, ch := range text {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = m.root
			continue
		}
		node = node.children[ch]
		if len(node.output) > 0 {
			return true
		}
	}
	return false
}

// WordCount returns how many words the automaton holds.
func (m *Matcher) WordCount() int {
	return len(m.words)
}
