package tcl

import (
	"math/rand"
	"sort"
)

// EvictionPolicy is a closed sum type over the four victim-selection rules
// spec §4.3 defines. There is no need for runtime pluggability beyond this
// set (spec §9, "Dynamic dispatch on eviction policy").
type EvictionPolicy int

const (
	// EvictLRU selects victims with the smallest last-used timestamp.
	EvictLRU EvictionPolicy = iota
	// EvictLFU selects victims with the smallest usage count.
	EvictLFU
	// EvictFIFO selects victims with the smallest creation timestamp.
	EvictFIFO
	// EvictRandom selects victims uniformly at random without replacement.
	EvictRandom
)

// evictionCandidate is the minimal view pickVictims needs of a live entry.
type evictionCandidate struct {
	key        string
	timestamp  int64
	lastUsed   int64
	usageCount int64
}

// pickVictims selects up to n victim keys from candidates per the policy's
// rule and tie-break (spec §4.3 table). It does not mutate candidates.
func (p EvictionPolicy) pickVictims(candidates []evictionCandidate, n int) []string {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	if n > len(candidates) {
		n = len(candidates)
	}

	ordered := make([]evictionCandidate, len(candidates))
	copy(ordered, candidates)

	switch p {
	case EvictLRU:
		sort.Slice(ordered, func(i, j int) bool {
			a, b := ordered[i], ordered[j]
			if a.lastUsed != b.lastUsed {
				return a.lastUsed < b.lastUsed
			}
			if a.timestamp != b.timestamp {
				return a.timestamp < b.timestamp
			}
			return a.key < b.key
		})
	case EvictLFU:
		sort.Slice(ordered, func(i, j int) bool {
			a, b := ordered[i], ordered[j]
			if a.usageCount != b.usageCount {
				return a.usageCount < b.usageCount
			}
			if a.lastUsed != b.lastUsed {
				return a.lastUsed < b.lastUsed
			}
			if a.timestamp != b.timestamp {
				return a.timestamp < b.timestamp
			}
			return a.key < b.key
		})
	case EvictFIFO:
		sort.Slice(ordered, func(i, j int) bool {
			a, b := ordered[i], ordered[j]
			if a.timestamp != b.timestamp {
				return a.timestamp < b.timestamp
			}
			return a.key < b.key
		})
	case EvictRandom:
		rand.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	victims := make([]string, n)
	for i := 0; i < n; i++ {
		victims[i] = ordered[i].key
	}
	return victims
}
