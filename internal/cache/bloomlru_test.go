// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRUSeen(t *testing.T) {
	c := NewLRU(10, time.Minute)
	if c.Seen("s1") {
		t.Error("first sighting should not be seen")
	}
	if !c.Seen("s1") {
		t.Error("second sighting should be seen")
	}
	if !c.Contains("s1") {
		t.Error("Contains should report s1")
	}
	if c.Contains("s2") {
		t.Error("Contains reported unknown key")
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU(3, time.Minute)
	for i := 0; i < 5; i++ {
		c.Record(fmt.Sprintf("k%d", i))
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
	if c.Contains("k0") || c.Contains("k1") {
		t.Error("oldest entries should have been evicted")
	}
	if !c.Contains("k4") {
		t.Error("newest entry missing")
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU(10, 10*time.Millisecond)
	c.Record("s1")
	time.Sleep(20 * time.Millisecond)
	if c.Contains("s1") {
		t.Error("expired entry still reported")
	}
	if c.Seen("s1") {
		t.Error("expired entry treated as duplicate")
	}
	c.Record("s2")
	time.Sleep(20 * time.Millisecond)
	if removed := c.CleanupExpired(); removed == 0 {
		t.Error("CleanupExpired removed nothing")
	}
}

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)
	for i := 0; i < 1000; i++ {
		bf.Add(fmt.Sprintf("stmt-%d", i))
	}
	for i := 0; i < 1000; i++ {
		if !bf.Test(fmt.Sprintf("stmt-%d", i)) {
			t.Fatalf("false negative for stmt-%d", i)
		}
	}
}

func TestBloomLRUSeen(t *testing.T) {
	bl := NewBloomLRU(100, time.Minute, 0.01)
	if bl.Seen("s1") {
		t.Error("first sighting should not be seen")
	}
	if !bl.Seen("s1") {
		t.Error("redelivery should be seen")
	}
	_, _, duplicates, _ := bl.Stats()
	if duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", duplicates)
	}
}

func TestBloomLRUContainsRecord(t *testing.T) {
	bl := NewBloomLRU(100, time.Minute, 0.01)
	if bl.Contains("s1") {
		t.Error("unknown key reported as present")
	}
	// Contains must not record: a failed delivery checked here must still
	// look new on redelivery.
	if bl.Contains("s1") {
		t.Error("Contains recorded the key")
	}
	bl.Record("s1")
	if !bl.Contains("s1") {
		t.Error("recorded key not reported")
	}
}

func TestBloomLRUConcurrent(t *testing.T) {
	bl := NewBloomLRU(1000, time.Minute, 0.01)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				bl.Seen(fmt.Sprintf("w%d-s%d", w, i))
			}
		}(w)
	}
	wg.Wait()
	if bl.Len() != 800 {
		t.Errorf("Len = %d, want 800", bl.Len())
	}
}
