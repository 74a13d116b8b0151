package lde

import (
	"unicode"

	tcl "github.com/tofudevice/tcl"
)

// Script is a closed enum over the Unicode ranges the Fallback classifier
// recognizes (spec §4.10). It is the one part of the LDE built directly on
// the standard library: no language-detection or Unicode-script
// classification library appears anywhere in this repository's dependency
// corpus. Classification uses this file's own codepoint table
// (scriptRanges); the unicode package only skips spaces, digits and
// punctuation.
type Script int

const (
	ScriptNone Script = iota
	ScriptLatin
	ScriptCyrillic
	ScriptHiraganaKatakana
	ScriptHangul
	ScriptCJK
	ScriptArabic
	ScriptDevanagari
	ScriptThai
)

// scriptRange is a single Unicode codepoint range and the script it belongs
// to, matching spec §4.10's table exactly.
type scriptRange struct {
	script Script
	lo, hi rune
}

var scriptRanges = []scriptRange{
	{ScriptLatin, 0x0041, 0x007A},
	{ScriptCyrillic, 0x0400, 0x04FF},
	{ScriptHiraganaKatakana, 0x3040, 0x30FF},
	{ScriptHangul, 0xAC00, 0xD7AF},
	{ScriptCJK, 0x4E00, 0x9FFF},
	{ScriptArabic, 0x0600, 0x06FF},
	{ScriptDevanagari, 0x0900, 0x097F},
	{ScriptThai, 0x0E00, 0x0E7F},
}

// scriptDefaultLanguage maps each recognized script to its ISO 639-3
// default language (spec §4.10 table).
var scriptDefaultLanguage = map[Script]string{
	ScriptLatin:            "eng",
	ScriptCyrillic:         "rus",
	ScriptHiraganaKatakana: "jpn",
	ScriptHangul:           "kor",
	ScriptCJK:              "cmn",
	ScriptArabic:           "ara",
	ScriptDevanagari:       "hin",
	ScriptThai:             "tha",
}

func classifyRune(r rune) Script {
	for _, sr := range scriptRanges {
		if r >= sr.lo && r <= sr.hi {
			return sr.script
		}
	}
	return ScriptNone
}

// scriptCounts tallies a per-script character count over runes, ignoring
// whitespace, digits and punctuation (spec §4.10, "digits/punctuation-only
// text returns eng").
func scriptCounts(runes []rune) map[Script]int {
	counts := make(map[Script]int)
	for _, r := range runes {
		if unicode.IsSpace(r) || unicode.IsDigit(r) || unicode.IsPunct(r) {
			continue
		}
		if s := classifyRune(r); s != ScriptNone {
			counts[s]++
		}
	}
	return counts
}

// dominantScript returns the script with the highest count, the count
// itself, and the total classified characters.
func dominantScript(counts map[Script]int) (Script, int, int) {
	var dominant Script = ScriptNone
	var dominantCount, total int
	for s, c := range counts {
		total += c
		if c > dominantCount {
			dominant = s
			dominantCount = c
		}
	}
	return dominant, dominantCount, total
}

// Fallback is the Unicode-script-range classifier (spec §4.10), used when
// Primary is unavailable or returns a confidence below threshold.
type Fallback struct{}

// NewFallback returns a Fallback classifier. It holds no state.
func NewFallback() *Fallback {
	return &Fallback{}
}

// Detect classifies text by its dominant Unicode script.
func (f *Fallback) Detect(text string) (DetectionResult, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return DetectionResult{}, tcl.NewError(tcl.KindInvalidInput, "text must not be empty")
	}

	counts := scriptCounts(runes)
	dominant, dominantCount, total := dominantScript(counts)

	if total == 0 {
		// Digits/punctuation-only input (spec §4.10).
		return DetectionResult{
			Language:   "eng",
			Confidence: 0.5,
			Source:     SourceFallback,
			Timestamp:  tcl.NowMS(),
		}, nil
	}

	lang, ok := scriptDefaultLanguage[dominant]
	if !ok {
		lang = "eng"
	}

	distinctScripts := 0
	for _, c := range counts {
		if c > 0 {
			distinctScripts++
		}
	}
	mixed := distinctScripts > 1

	lengthFactor := fallbackLengthFactor(len(runes), mixed)
	confidence := (float64(dominantCount) / float64(total)) * lengthFactor

	return DetectionResult{
		Language:   lang,
		Confidence: confidence,
		Source:     SourceFallback,
		Timestamp:  tcl.NowMS(),
	}, nil
}

// fallbackLengthFactor grows with text length up to 0.95 for a pure script,
// capped at 0.80 when the input mixes scripts (spec §4.10).
func fallbackLengthFactor(length int, mixed bool) float64 {
	ceiling := 0.95
	if mixed {
		ceiling = 0.80
	}
	factor := 0.5 + float64(length)*0.05
	if factor > ceiling {
		factor = ceiling
	}
	return factor
}
