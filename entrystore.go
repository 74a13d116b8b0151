package tcl

import "sync"

// AddResult is the outcome of EntryStore.Add.
type AddResult int

const (
	// AddOk means the entry was inserted.
	AddOk AddResult = iota
	// AddFull means capacity is exhausted and eviction could not make room.
	AddFull
	// AddAlreadyExists means an entry with the same key and source text is already present.
	AddAlreadyExists
)

// EntryStoreConfig configures the in-memory L1 tier (spec §4.2, §4.4).
type EntryStoreConfig struct {
	MaxEntries         int
	EvictionPolicy     EvictionPolicy
	EvictionBatchSize  int
	DefaultTTLMS       int64
	AutoExtendTTL      bool
	TTLExtensionMS     int64
	TTLExtendThreshold int64
	MaxTTLExtensionMS  int64 // 0 = unbounded
}

// EntryStore is the thread-safe in-memory L1 cache tier.
//
// Entries are bucketed by key to hold hash collisions: two different
// (normalized) source texts that happen to hash to the same fingerprint are
// both retained and compare unequal at lookup (spec §4.1, "Collisions are
// handled at the entry-store layer").
type EntryStore struct {
	mu      sync.RWMutex
	buckets map[string][]*Entry
	count   int
	cfg     EntryStoreConfig

	metrics *TierMetrics
}

// NewEntryStore creates an L1 entry store with the given configuration.
func NewEntryStore(cfg EntryStoreConfig) *EntryStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.EvictionBatchSize <= 0 {
		cfg.EvictionBatchSize = 10
	}
	return &EntryStore{
		buckets: make(map[string][]*Entry),
		cfg:     cfg,
		metrics: NewTierMetrics(),
	}
}

// Metrics returns this tier's metrics snapshot source.
func (s *EntryStore) Metrics() *TierMetrics {
	return s.metrics
}

// Count returns the number of entries currently stored.
func (s *EntryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// FreeSpace returns how many more entries may be added before capacity is reached.
func (s *EntryStore) FreeSpace() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.MaxEntries - s.count
}

// UsagePercent returns the fraction of capacity in use, in [0, 100].
func (s *EntryStore) UsagePercent() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.MaxEntries == 0 {
		return 0
	}
	return float64(s.count) * 100.0 / float64(s.cfg.MaxEntries)
}

// Add inserts entry, evicting victims first if the store is at capacity
// (spec §4.2, "On add, if count() == max_entries, invoke eviction...").
func (s *EntryStore) Add(entry *Entry) AddResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[entry.Key]
	for _, existing := range bucket {
		if existing.SourceText == entry.SourceText {
			return AddAlreadyExists
		}
	}

	if s.count >= s.cfg.MaxEntries {
		s.evictLocked(s.cfg.EvictionBatchSize)
		if s.count >= s.cfg.MaxEntries {
			return AddFull
		}
	}

	now := NowMS()
	stored := entry.Clone()
	stored.Timestamp = now
	stored.Metadata.UsageCount = 1
	stored.Metadata.LastUsed = now

	s.buckets[entry.Key] = append(bucket, stored)
	s.count++
	s.metrics.RecordSize(s.count)
	return AddOk
}

// Find looks up key. On a live hit it applies access-side bookkeeping
// (usage_count, last_used, optional TTL extension) and returns a copy of
// the entry. On an expired hit it removes the entry and reports NotFound
// (spec §4.2, §4.4 lazy expiry).
func (s *EntryStore) Find(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[key]
	now := NowMS()

	for i, e := range bucket {
		if e.Expired(now, s.cfg.DefaultTTLMS) {
			continue
		}
		e.Touch(now, s.cfg.AutoExtendTTL, s.cfg.TTLExtendThreshold, s.cfg.TTLExtensionMS)
		if s.cfg.MaxTTLExtensionMS > 0 && e.TTL > s.cfg.MaxTTLExtensionMS {
			e.TTL = s.cfg.MaxTTLExtensionMS
		}
		_ = i
		s.metrics.RecordHit()
		return e.Clone(), true
	}

	// No live entry: purge any expired ones found in the bucket under this key.
	if len(bucket) > 0 {
		s.removeExpiredLocked(key, now)
	}
	s.metrics.RecordMiss()
	return nil, false
}

// Remove deletes the (first) entry stored under key. Returns false if absent.
func (s *EntryStore) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.buckets[key]
	if len(bucket) == 0 {
		return false
	}
	if len(bucket) == 1 {
		delete(s.buckets, key)
	} else {
		s.buckets[key] = bucket[1:]
	}
	s.count--
	s.metrics.RecordSize(s.count)
	return true
}

// Update replaces the fields of the entry stored under key with those of
// newData, preserving lifecycle metadata (usage_count, last_used, timestamp).
func (s *EntryStore) Update(key string, newData *Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.buckets[key]
	for _, e := range bucket {
		if e.SourceText == newData.SourceText || len(bucket) == 1 {
			e.Translation = newData.Translation
			e.Confidence = newData.Confidence
			e.TTL = newData.TTL
			e.Flags = newData.Flags
			if newData.Metadata.Context != "" {
				e.Metadata.Context = newData.Metadata.Context
			}
			if newData.Metadata.Origin != "" {
				e.Metadata.Origin = newData.Metadata.Origin
			}
			if newData.Metadata.Domain != "" {
				e.Metadata.Domain = newData.Metadata.Domain
			}
			return true
		}
	}
	return false
}

// ExtendTTL adds extensionMS to the residual TTL of the entry stored under key.
func (s *EntryStore) ExtendTTL(key string, extensionMS int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.buckets[key]
	if len(bucket) == 0 {
		return false
	}
	e := bucket[0]
	e.TTL += extensionMS
	if s.cfg.MaxTTLExtensionMS > 0 && e.TTL > s.cfg.MaxTTLExtensionMS {
		e.TTL = s.cfg.MaxTTLExtensionMS
	}
	return true
}

// Evict removes up to n entries per the configured policy, harvesting
// expired entries first at zero policy cost (spec §4.3). Returns the count removed.
func (s *EntryStore) Evict(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked(n)
}

func (s *EntryStore) evictLocked(n int) int {
	if n <= 0 {
		return 0
	}
	removed := s.removeAllExpiredLocked()
	n -= removed
	if n <= 0 {
		return removed
	}

	candidates := make([]evictionCandidate, 0, s.count)
	for key, bucket := range s.buckets {
		for _, e := range bucket {
			candidates = append(candidates, evictionCandidate{
				key:        key,
				timestamp:  e.Timestamp,
				lastUsed:   e.Metadata.LastUsed,
				usageCount: e.Metadata.UsageCount,
			})
		}
	}

	victims := s.cfg.EvictionPolicy.pickVictims(candidates, n)
	for _, key := range victims {
		bucket := s.buckets[key]
		if len(bucket) == 0 {
			continue
		}
		if len(bucket) == 1 {
			delete(s.buckets, key)
		} else {
			s.buckets[key] = bucket[1:]
		}
		s.count--
		removed++
	}
	s.metrics.RecordEvictions(int64(removed))
	s.metrics.RecordSize(s.count)
	return removed
}

// ClearExpired removes every expired entry and returns the count removed
// (spec §4.4 background sweep).
func (s *EntryStore) ClearExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeAllExpiredLocked()
	s.metrics.RecordSize(s.count)
	return removed
}

func (s *EntryStore) removeAllExpiredLocked() int {
	now := NowMS()
	removed := 0
	for key := range s.buckets {
		removed += s.removeExpiredLocked(key, now)
	}
	return removed
}

func (s *EntryStore) removeExpiredLocked(key string, now int64) int {
	bucket := s.buckets[key]
	kept := bucket[:0]
	removed := 0
	for _, e := range bucket {
		if e.Expired(now, s.cfg.DefaultTTLMS) {
			removed++
			s.count--
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(s.buckets, key)
	} else {
		s.buckets[key] = kept
	}
	return removed
}
