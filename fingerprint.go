package tcl

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// langCodePattern validates source/target language codes per spec §4.1.
var langCodePattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Z][a-z]{3})?(-[A-Z]{2})?$`)

// MaxKeyLength is the maximum byte length of a fingerprint key (spec §3, §4.1).
const MaxKeyLength = 512

// FingerprintConfig controls key derivation (spec §4.1).
type FingerprintConfig struct {
	// NormalizeText enables whitespace/case normalization before hashing.
	NormalizeText bool
	// StrongHash selects a 96-bit combination (FNV-1a 32-bit followed by
	// xxhash 64-bit, 24 hex digits) instead of plain FNV-1a 32-bit; it is
	// not a 128-bit hash.
	StrongHash bool
	// IncludeTimestamp appends ":<timestamp_ms>" to the key (cache-bypass use cases).
	IncludeTimestamp bool
}

// Fingerprint is the result of deriving a stable cache key from a translation request.
type Fingerprint struct {
	Key        string
	Normalized string
}

// ValidateLangCode reports whether code matches the spec's language-code grammar.
func ValidateLangCode(code string) error {
	if strings.Contains(code, ":") {
		return NewError(KindInvalidInput, "language code must not contain ':'")
	}
	if !langCodePattern.MatchString(code) {
		return NewError(KindInvalidInput, fmt.Sprintf("invalid language code %q", code))
	}
	return nil
}

// NormalizeForFingerprint strips leading/trailing whitespace, collapses
// internal whitespace runs, and lower-cases under the Unicode simple
// lowercase mapping — the normalization spec §4.1 and §4.9 both reference.
func NormalizeForFingerprint(text string) string {
	trimmed := strings.TrimSpace(text)

	var b strings.Builder
	b.Grow(len(trimmed))
	lastWasSpace := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// fnv1a32 computes the 32-bit FNV-1a hash, matching the original firmware's
// tcl_key_generator.c generate_fnv1a_hash (same offset basis and prime).
func fnv1a32(data []byte) uint32 {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	hash := offsetBasis
	for _, b := range data {
		hash ^= uint32(b)
		hash *= prime
	}
	return hash
}

// DeriveFingerprint computes the stable fingerprint for (sourceText,
// sourceLang, targetLang) per spec §4.1. The returned Key is bounded to
// MaxKeyLength bytes.
func DeriveFingerprint(sourceText, sourceLang, targetLang string, cfg FingerprintConfig) (*Fingerprint, error) {
	if err := ValidateLangCode(sourceLang); err != nil {
		return nil, err
	}
	if err := ValidateLangCode(targetLang); err != nil {
		return nil, err
	}
	if sourceText == "" {
		return nil, NewError(KindInvalidInput, "source text must not be empty")
	}

	textToHash := sourceText
	normalized := ""
	if cfg.NormalizeText {
		normalized = NormalizeForFingerprint(sourceText)
		textToHash = normalized
	}

	var hashPart string
	if cfg.StrongHash {
		lo := fnv1a32([]byte(textToHash))
		hi := xxhash.Sum64String(textToHash)
		hashPart = fmt.Sprintf("%08x%016x", lo, hi)
	} else {
		hashPart = fmt.Sprintf("%08x", fnv1a32([]byte(textToHash)))
	}

	var key string
	if cfg.IncludeTimestamp {
		key = fmt.Sprintf("%s:%s:%s:%d", sourceLang, targetLang, hashPart, NowMS())
	} else {
		key = fmt.Sprintf("%s:%s:%s", sourceLang, targetLang, hashPart)
	}

	if len(key) > MaxKeyLength {
		return nil, NewError(KindInvalidInput, "fingerprint key exceeds maximum length")
	}

	return &Fingerprint{Key: key, Normalized: normalized}, nil
}
