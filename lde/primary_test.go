package lde

import (
	"testing"

	tcl "github.com/tofudevice/tcl"
)

func TestPrimaryDetectEnglish(t *testing.T) {
	p := NewPrimary()
	result, err := p.Detect("This is a sample English text for testing purposes.", DetectOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Language != "eng" {
		t.Fatalf("expected eng, got %q", result.Language)
	}
	if result.Confidence <= 0.5 {
		t.Fatalf("expected confidence > 0.5, got %f", result.Confidence)
	}
}

func TestPrimaryDetectRejectsEmptyText(t *testing.T) {
	p := NewPrimary()
	_, err := p.Detect("", DetectOptions{})
	if !tcl.IsKind(err, tcl.KindInvalidInput) {
		t.Fatalf("expected KindInvalidInput, got %v", err)
	}
}

func TestPrimaryDetectLowConfidenceOnMixedScript(t *testing.T) {
	p := NewPrimary()
	_, err := p.Detect("漢字とEnglishの Mixed Text", DetectOptions{MinConfidence: 0.9})
	if !tcl.IsKind(err, tcl.KindLowConfidence) {
		t.Fatalf("expected KindLowConfidence, got %v", err)
	}
}

func TestBaseConfidenceStepwiseThresholds(t *testing.T) {
	cases := []struct {
		length int
		want   float64
	}{
		{1, 0.60}, {5, 0.65}, {10, 0.75}, {20, 0.85}, {50, 0.90}, {100, 0.95},
	}
	for _, c := range cases {
		if got := baseConfidence(c.length); got != c.want {
			t.Errorf("baseConfidence(%d) = %f, want %f", c.length, got, c.want)
		}
	}
}

func TestLengthPenaltyThresholds(t *testing.T) {
	if lengthPenalty(3) != 0.3 {
		t.Errorf("expected 0.3 penalty for length 3")
	}
	if lengthPenalty(7) != 0.2 {
		t.Errorf("expected 0.2 penalty for length 7")
	}
	if lengthPenalty(15) != 0 {
		t.Errorf("expected zero penalty for length 15")
	}
}

func TestExtractNgramsSize3(t *testing.T) {
	grams := extractNgrams("hello")
	if len(grams) != 3 {
		t.Fatalf("expected 3 trigrams from a 5-char word, got %d", len(grams))
	}
	if grams[0] != "hel" {
		t.Fatalf("expected first trigram 'hel', got %q", grams[0])
	}
}

func TestExtractNgramsTooShort(t *testing.T) {
	if grams := extractNgrams("hi"); grams != nil {
		t.Fatalf("expected nil for text shorter than NgramSize, got %v", grams)
	}
}
