// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package cache

import (
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// BloomFilter is a probabilistic membership set. A false answer from Test is
// definitive; a true answer must be verified against an exact structure.
// Items cannot be removed.
type BloomFilter struct {
	mu      sync.RWMutex
	bits    []uint64
	size    uint64
	hashFns int
}

// NewBloomFilter sizes a filter for the expected item count and target
// false positive rate (e.g. 0.01 for 1%).
func NewBloomFilter(expectedItems int, falsePositiveRate float64) *BloomFilter {
	if expectedItems <= 0 {
		expectedItems = 10000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	// m = -n*ln(p)/ln(2)^2 bits, k = (m/n)*ln(2) hash functions
	ln2 := math.Ln2
	m := int(-float64(expectedItems) * math.Log(falsePositiveRate) / (ln2 * ln2))
	if m < 64 {
		m = 64
	}
	k := int(float64(m) / float64(expectedItems) * ln2)
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}

	words := (m + 63) / 64
	return &BloomFilter{
		bits:    make([]uint64, words),
		size:    uint64(words * 64),
		hashFns: k,
	}
}

// Add records key in the filter.
func (bf *BloomFilter) Add(key string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	for _, h := range bf.hashes(key) {
		idx := h % bf.size
		bf.bits[idx/64] |= 1 << (idx % 64)
	}
}

// Test reports whether key might be present. False means definitely absent.
func (bf *BloomFilter) Test(key string) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	for _, h := range bf.hashes(key) {
		idx := h % bf.size
		if bf.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// Clear resets the filter.
func (bf *BloomFilter) Clear() {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	for i := range bf.bits {
		bf.bits[i] = 0
	}
}

// hashes derives k hash values by double hashing two FNV variants.
func (bf *BloomFilter) hashes(key string) []uint64 {
	h1 := fnv.New64a()
	h1.Write([]byte(key))
	a := h1.Sum64()

	h2 := fnv.New64()
	h2.Write([]byte(key))
	h2.Write([]byte{0xff})
	b := h2.Sum64()

	out := make([]uint64, bf.hashFns)
	for i := 0; i < bf.hashFns; i++ {
		out[i] = a + uint64(i)*b
	}
	return out
}

// BloomLRU layers a Bloom filter in front of an exact LRU set. Unique keys
// short-circuit at the filter; only potential duplicates pay the LRU lookup.
// The LRU bounds memory and supplies TTL expiry the filter cannot.
type BloomLRU struct {
	bloom *BloomFilter
	lru   *LRU

	fastNegatives atomic.Int64
	slowChecks    atomic.Int64
	duplicates    atomic.Int64
}

// NewBloomLRU creates a combined dedup cache.
func NewBloomLRU(capacity int, ttl time.Duration, falsePositiveRate float64) *BloomLRU {
	return &BloomLRU{
		bloom: NewBloomFilter(capacity, falsePositiveRate),
		lru:   NewLRU(capacity, ttl),
	}
}

// Seen reports whether key was seen within the TTL window, recording it
// either way.
func (bl *BloomLRU) Seen(key string) bool {
	if !bl.bloom.Test(key) {
		bl.fastNegatives.Add(1)
		bl.bloom.Add(key)
		bl.lru.Record(key)
		return false
	}

	bl.slowChecks.Add(1)
	if bl.lru.Seen(key) {
		bl.duplicates.Add(1)
		return true
	}
	// Expired entry or bloom false positive.
	bl.bloom.Add(key)
	return false
}

// Record marks key as seen without checking. Callers that must not mark a
// key until processing succeeds pair Contains with Record instead of Seen.
func (bl *BloomLRU) Record(key string) {
	bl.bloom.Add(key)
	bl.lru.Record(key)
}

// Contains checks membership without recording.
func (bl *BloomLRU) Contains(key string) bool {
	if !bl.bloom.Test(key) {
		return false
	}
	return bl.lru.Contains(key)
}

// CleanupExpired drops expired LRU entries. The bloom filter is permanent
// until Clear.
func (bl *BloomLRU) CleanupExpired() int {
	return bl.lru.CleanupExpired()
}

// Clear resets both structures and the counters.
func (bl *BloomLRU) Clear() {
	bl.bloom.Clear()
	bl.lru.Clear()
	bl.fastNegatives.Store(0)
	bl.slowChecks.Store(0)
	bl.duplicates.Store(0)
}

// Len returns the exact entry count.
func (bl *BloomLRU) Len() int {
	return bl.lru.Len()
}

// Stats returns fast-path negatives, slow-path checks, confirmed duplicates,
// and the exact set size.
func (bl *BloomLRU) Stats() (fastNegatives, slowChecks, duplicates int64, size int) {
	return bl.fastNegatives.Load(), bl.slowChecks.Load(), bl.duplicates.Load(), bl.lru.Len()
}
