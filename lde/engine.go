package lde

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	tcl "github.com/tofudevice/tcl"
)

// detectionKey addresses the Detection Cache by text content alone — unlike
// the translation fingerprint (spec §4.1), detection runs before a target
// language is known, so there is no (sourceLang, targetLang) pair to scope
// the key by.
func detectionKey(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}

// Engine ties Primary, Fallback and the Detection Cache together per the
// top-level data flow of spec §1/§4.9: cache-exact → cache-pattern →
// primary → fallback, each successful result feeding back into the cache.
type Engine struct {
	primary  *Primary
	fallback *Fallback
	cache    *Cache
	logger   *zap.Logger
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithEngineLogger sets the structured logger used for fallback-path events.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine builds an Engine from a detection cache configuration.
func NewEngine(cacheCfg CacheConfig, opts ...EngineOption) *Engine {
	e := &Engine{
		primary:  NewPrimary(),
		fallback: NewFallback(),
		cache:    NewCache(cacheCfg),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Detect runs the full cache → primary → fallback pipeline for text.
func (e *Engine) Detect(text string, opts DetectOptions) (DetectionResult, error) {
	if text == "" {
		return DetectionResult{}, tcl.NewError(tcl.KindInvalidInput, "text must not be empty")
	}
	key := detectionKey(text)

	if result, ok := e.cache.GetExact(key); ok && result.Confidence >= opts.MinConfidence {
		return result, nil
	}
	if result, ok := e.cache.MatchPattern(text); ok && result.Confidence >= opts.MinConfidence {
		e.cache.MaybeInsert(key, result)
		return result, nil
	}

	result, primaryErr := e.primary.Detect(text, opts)
	if primaryErr == nil {
		e.cache.MaybeInsert(key, result)
		return result, nil
	}
	if !tcl.IsKind(primaryErr, tcl.KindLowConfidence) {
		e.logger.Debug("primary detector unavailable, falling back", zap.Error(primaryErr))
	}

	fallbackResult, fallbackErr := e.fallback.Detect(text)
	if fallbackErr != nil {
		return DetectionResult{}, fallbackErr
	}
	if fallbackResult.Confidence < opts.MinConfidence {
		return DetectionResult{}, tcl.NewError(tcl.KindLowConfidence, "fallback confidence below requested threshold")
	}
	e.cache.MaybeInsert(key, fallbackResult)
	return fallbackResult, nil
}

// SeedPattern exposes Cache.SeedPattern so callers can warm the L2 pattern
// cache with representative samples per language at startup.
func (e *Engine) SeedPattern(language, sample string) {
	e.cache.SeedPattern(language, sample)
}
