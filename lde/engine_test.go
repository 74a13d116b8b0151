package lde

import "testing"

func TestEngineDetectEnglish(t *testing.T) {
	e := NewEngine(CacheConfig{L1Capacity: 100})
	result, err := e.Detect("This is a sample English text for testing purposes.", DetectOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "eng" {
		t.Fatalf("expected eng, got %q", result.Language)
	}
}

func TestEngineDetectFallsBackOnLowConfidence(t *testing.T) {
	e := NewEngine(CacheConfig{L1Capacity: 100})
	// Primary scores this mixed-script text at 0.85*0.7 = 0.595, below 0.6;
	// Fallback scores it at (16/20)*0.80 = 0.64.
	result, err := e.Detect("漢字とEnglishの Mixed Text", DetectOptions{MinConfidence: 0.6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceFallback {
		t.Fatalf("expected the fallback detector to answer, got source %v", result.Source)
	}
	if result.Confidence > 0.8 {
		t.Fatalf("expected fallback result capped at 0.8, got %f", result.Confidence)
	}
}

func TestEngineDetectCachesResultForRepeatLookup(t *testing.T) {
	e := NewEngine(CacheConfig{L1Capacity: 100, MinConfidenceForCache: 0.1})
	text := "This is a sample English text for testing purposes."

	first, err := e.Detect(text, DetectOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := e.Detect(text, DetectOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Source != SourceCacheExact {
		t.Fatalf("expected second lookup to hit the exact cache, got source %v", second.Source)
	}
	if second.Language != first.Language {
		t.Fatalf("expected cached language to match original detection")
	}
}

func TestEngineDetectRejectsEmptyText(t *testing.T) {
	e := NewEngine(CacheConfig{L1Capacity: 100})
	_, err := e.Detect("", DetectOptions{})
	if err == nil {
		t.Fatalf("expected error for empty text")
	}
}
