// Package lde implements the Language Detection Engine: a statistical
// Primary detector, a Unicode-script Fallback detector, and the two-level
// Detection Cache that sits in front of both.
package lde

import (
	"strings"

	tcl "github.com/tofudevice/tcl"
)

// NgramSize matches the original firmware's ld_extract_ngrams (NGRAM_SIZE=3).
const NgramSize = 3

// Source identifies which stage produced a DetectionResult.
type Source int

const (
	SourcePrimary Source = iota
	SourceFallback
	SourceCacheExact
	SourceCachePattern
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceFallback:
		return "fallback"
	case SourceCacheExact:
		return "cache-exact"
	case SourceCachePattern:
		return "cache-pattern"
	default:
		return "unknown"
	}
}

// DetectionResult is the outcome of a detect call.
type DetectionResult struct {
	Language   string // ISO 639-3
	Confidence float64
	Source     Source
	Timestamp  int64
}

// DetectOptions configures a detect call.
type DetectOptions struct {
	MinConfidence      float64
	PreferredLanguages []string
	Preprocess         bool
}

// languageProfile is a tiny statistical model: the script this language is
// primarily written in, used to pick Primary's candidate language (spec §4.9).
type languageProfile struct {
	language string
	script   Script
}

// knownProfiles is the candidate language set Primary scores against. It is
// intentionally small: the device targets a bounded set of languages rather
// than open-world detection (spec §4.9, "Score candidate languages").
var knownProfiles = []languageProfile{
	{"eng", ScriptLatin},
	{"spa", ScriptLatin},
	{"fra", ScriptLatin},
	{"deu", ScriptLatin},
	{"por", ScriptLatin},
	{"rus", ScriptCyrillic},
	{"jpn", ScriptHiraganaKatakana},
	{"kor", ScriptHangul},
	{"cmn", ScriptCJK},
	{"ara", ScriptArabic},
	{"hin", ScriptDevanagari},
	{"tha", ScriptThai},
}

// Primary is the statistical detector of spec §4.9. It scores by Unicode
// script and text length only; n-gram features are not used. Among languages
// that share a script it returns a matching preferred language if one is
// given, otherwise the first such language in knownProfiles.
type Primary struct {
	profiles []languageProfile
}

// NewPrimary returns a Primary detector over the built-in candidate set.
func NewPrimary() *Primary {
	return &Primary{profiles: knownProfiles}
}

// Detect implements the spec §4.9 algorithm.
func (p *Primary) Detect(text string, opts DetectOptions) (DetectionResult, error) {
	if strings.TrimSpace(text) == "" {
		return DetectionResult{}, tcl.NewError(tcl.KindInvalidInput, "text must not be empty")
	}
	if opts.Preprocess {
		text = tcl.NormalizeForFingerprint(text)
	}

	runes := []rune(text)
	counts := scriptCounts(runes)
	dominant, dominantCount, total := dominantScript(counts)

	candidate := p.pickCandidate(dominant, opts.PreferredLanguages)

	base := baseConfidence(len(runes))
	script := scriptConfidence(dominant, counts, total, dominantCount)
	penalty := lengthPenalty(len(runes))

	final := base * script * (1 - penalty)
	if final > 0.99 {
		final = 0.99
	}

	if final < opts.MinConfidence {
		return DetectionResult{}, tcl.NewError(tcl.KindLowConfidence, "detection confidence below requested threshold")
	}

	return DetectionResult{
		Language:   candidate,
		Confidence: final,
		Source:     SourcePrimary,
		Timestamp:  tcl.NowMS(),
	}, nil
}

// pickCandidate prefers a language from preferred that matches the dominant
// script; otherwise it returns the first known profile for that script.
func (p *Primary) pickCandidate(dominant Script, preferred []string) string {
	for _, lang := range preferred {
		for _, prof := range p.profiles {
			if prof.language == lang && prof.script == dominant {
				return lang
			}
		}
	}
	for _, prof := range p.profiles {
		if prof.script == dominant {
			return prof.language
		}
	}
	return "eng"
}

// baseConfidence applies the stepwise length thresholds of spec §4.9.
func baseConfidence(length int) float64 {
	switch {
	case length < 5:
		return 0.60
	case length < 10:
		return 0.65
	case length < 20:
		return 0.75
	case length < 50:
		return 0.85
	case length < 100:
		return 0.90
	default:
		return 0.95
	}
}

// lengthPenalty applies spec §4.9's short-text penalty.
func lengthPenalty(length int) float64 {
	switch {
	case length < 5:
		return 0.3
	case length < 10:
		return 0.2
	default:
		return 0
	}
}

// scriptConfidence scores 1.0 for a clean single-script match, 0.7 for a
// mixed-script input (more than one script present), 0.8 otherwise.
func scriptConfidence(dominant Script, counts map[Script]int, total, dominantCount int) float64 {
	if total == 0 {
		return 0.8
	}
	distinctScripts := 0
	for _, c := range counts {
		if c > 0 {
			distinctScripts++
		}
	}
	if distinctScripts > 1 {
		return 0.7
	}
	if dominantCount == total {
		return 1.0
	}
	return 0.8
}

// extractNgrams returns the overlapping n-grams of text (spec §4.9 step 2,
// grounded on the original firmware's ld_extract_ngrams with NGRAM_SIZE=3).
func extractNgrams(text string) []string {
	runes := []rune(text)
	if len(runes) < NgramSize {
		return nil
	}
	grams := make([]string, 0, len(runes)-NgramSize+1)
	for i := 0; i <= len(runes)-NgramSize; i++ {
		grams = append(grams, string(runes[i:i+NgramSize]))
	}
	return grams
}

// ngramFrequency builds a normalized frequency vector over text's n-grams,
// used by the Detection Cache's pattern similarity (spec §4.11).
func ngramFrequency(text string) map[string]float64 {
	grams := extractNgrams(text)
	if len(grams) == 0 {
		return nil
	}
	freq := make(map[string]float64, len(grams))
	for _, g := range grams {
		freq[g]++
	}
	for g := range freq {
		freq[g] /= float64(len(grams))
	}
	return freq
}

// charDistribution returns a per-script character count distribution,
// reused as a lightweight feature vector by the Detection Cache.
func charDistribution(text string) map[Script]int {
	return scriptCounts([]rune(text))
}
