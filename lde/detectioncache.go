package lde

import (
	"math"
	"sync"

	tcl "github.com/tofudevice/tcl"
)

// exactEntry is one slot in the L1 exact-match ring.
type exactEntry struct {
	key         string
	result      DetectionResult
	accessCount int64
	lastAccess  int64
	expiresAt   int64 // 0 = no expiry
}

// patternEntry is one per-language feature profile in the L2 pattern cache.
type patternEntry struct {
	language   string
	ngramFreq  map[string]float64
	scriptDist map[Script]int
	confidence float64
}

// CacheConfig configures the Detection Cache (spec §4.11).
type CacheConfig struct {
	L1Capacity                   int
	FrequencyWeight              float64 // W in adjusted_time = last_access + access_count*W
	DefaultTTLMS                 int64
	PatternMatchThreshold        float64
	MinTextLengthForPatternMatch int
	MinConfidenceForCache        float64
}

// Cache is the two-level Detection Cache: an L1 exact-match ring with
// frequency-weighted LRU eviction, and an L2 pattern cache of per-language
// feature vectors consulted on an L1 miss (spec §4.11).
type Cache struct {
	mu  sync.Mutex
	cfg CacheConfig

	l1 map[string]*exactEntry

	l2mu sync.RWMutex
	l2   []patternEntry
}

// NewCache constructs a Detection Cache with sane defaults for any
// unset (zero-value) configuration fields.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.L1Capacity <= 0 {
		cfg.L1Capacity = 1000
	}
	if cfg.FrequencyWeight <= 0 {
		cfg.FrequencyWeight = 1000 // ms per access, so frequent keys resist eviction meaningfully
	}
	if cfg.PatternMatchThreshold <= 0 {
		cfg.PatternMatchThreshold = 0.6
	}
	if cfg.MinTextLengthForPatternMatch <= 0 {
		cfg.MinTextLengthForPatternMatch = 10
	}
	if cfg.MinConfidenceForCache <= 0 {
		cfg.MinConfidenceForCache = 0.5
	}
	return &Cache{
		cfg: cfg,
		l1:  make(map[string]*exactEntry),
	}
}

// GetExact looks up text's fingerprint in L1. On a hit it bumps
// access_count/last_access and purges the entry first if expired (spec
// §4.11, "Expired entries purged on access").
func (c *Cache) GetExact(key string) (DetectionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.l1[key]
	if !ok {
		return DetectionResult{}, false
	}
	now := tcl.NowMS()
	if e.expiresAt > 0 && now > e.expiresAt {
		delete(c.l1, key)
		return DetectionResult{}, false
	}
	e.accessCount++
	e.lastAccess = now
	result := e.result
	result.Source = SourceCacheExact
	return result, true
}

// PutExact inserts or refreshes an L1 entry, evicting by adjusted_time if
// the ring is at capacity (spec §4.11).
func (c *Cache) PutExact(key string, result DetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := tcl.NowMS()
	if e, ok := c.l1[key]; ok {
		e.result = result
		e.lastAccess = now
		e.accessCount++
		return
	}

	if len(c.l1) >= c.cfg.L1Capacity {
		c.evictOneLocked()
	}

	var expiresAt int64
	if c.cfg.DefaultTTLMS > 0 {
		expiresAt = now + c.cfg.DefaultTTLMS
	}
	c.l1[key] = &exactEntry{
		key:         key,
		result:      result,
		accessCount: 1,
		lastAccess:  now,
		expiresAt:   expiresAt,
	}
}

// evictOneLocked removes the entry with the smallest adjusted_time
// (spec §4.11: adjusted_time = last_access + access_count · W — entries
// accessed often resist eviction even if their raw last_access is old).
func (c *Cache) evictOneLocked() {
	var victimKey string
	var minAdjusted int64
	first := true
	for k, e := range c.l1 {
		adjusted := e.lastAccess + e.accessCount*int64(c.cfg.FrequencyWeight)
		if first || adjusted < minAdjusted {
			minAdjusted = adjusted
			victimKey = k
			first = false
		}
	}
	if !first {
		delete(c.l1, victimKey)
	}
}

// SeedPattern installs or replaces a language's L2 pattern profile, built
// from a representative sample of that language's text.
func (c *Cache) SeedPattern(language, sample string) {
	c.l2mu.Lock()
	defer c.l2mu.Unlock()

	profile := patternEntry{
		language:   language,
		ngramFreq:  ngramFrequency(sample),
		scriptDist: charDistribution(sample),
	}
	for i, p := range c.l2 {
		if p.language == language {
			c.l2[i] = profile
			return
		}
	}
	c.l2 = append(c.l2, profile)
}

// MatchPattern compares text's feature vector against every seeded language
// profile and returns the best match if it clears both the similarity
// threshold and the minimum input length (spec §4.11).
func (c *Cache) MatchPattern(text string) (DetectionResult, bool) {
	runes := []rune(text)
	if len(runes) < c.cfg.MinTextLengthForPatternMatch {
		return DetectionResult{}, false
	}

	freq := ngramFrequency(text)
	dist := charDistribution(text)
	if freq == nil {
		return DetectionResult{}, false
	}

	c.l2mu.RLock()
	defer c.l2mu.RUnlock()

	var bestLang string
	var bestSim float64
	for _, p := range c.l2 {
		sim := cosineSimilarity(freq, p.ngramFreq) * scriptOverlap(dist, p.scriptDist)
		if sim > bestSim {
			bestSim = sim
			bestLang = p.language
		}
	}

	if bestLang == "" || bestSim < c.cfg.PatternMatchThreshold {
		return DetectionResult{}, false
	}

	confidence := bestSim
	if confidence > 0.8 {
		confidence = 0.8
	}
	return DetectionResult{
		Language:   bestLang,
		Confidence: confidence,
		Source:     SourceCachePattern,
		Timestamp:  tcl.NowMS(),
	}, true
}

// MaybeInsert caches result under key if its confidence clears
// min_confidence_for_cache (spec §4.11, "Only results with confidence ≥
// min_confidence_for_cache are inserted").
func (c *Cache) MaybeInsert(key string, result DetectionResult) {
	if result.Confidence < c.cfg.MinConfidenceForCache {
		return
	}
	c.PutExact(key, result)
}

// cosineSimilarity computes the cosine similarity between two sparse
// n-gram frequency vectors.
func cosineSimilarity(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for k, va := range a {
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// scriptOverlap returns the fraction of a's script mass that also appears
// in b, a cheap secondary signal alongside n-gram cosine similarity. A
// fraction f below 0.5 is mapped to 0.5 + f/2, and an empty distribution on
// either side yields 1.
func scriptOverlap(a, b map[Script]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1
	}
	var shared, total int
	for s, c := range a {
		total += c
		if _, ok := b[s]; ok {
			shared += c
		}
	}
	if total == 0 {
		return 1
	}
	overlap := float64(shared) / float64(total)
	if overlap < 0.5 {
		return 0.5 + overlap/2
	}
	return overlap
}
