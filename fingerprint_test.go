package tcl

import "testing"

func TestDeriveFingerprintDeterministic(t *testing.T) {
	cfg := FingerprintConfig{NormalizeText: true}
	a, err := DeriveFingerprint("Hello World", "eng", "fra", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := DeriveFingerprint("hello   world", "eng", "fra", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Key != b.Key {
		t.Fatalf("expected normalized equivalents to produce the same key, got %q vs %q", a.Key, b.Key)
	}
}

func TestDeriveFingerprintDistinguishesLangPair(t *testing.T) {
	cfg := FingerprintConfig{}
	a, err := DeriveFingerprint("hello", "eng", "fra", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := DeriveFingerprint("hello", "eng", "spa", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Key == b.Key {
		t.Fatalf("expected different target languages to produce different keys")
	}
}

func TestDeriveFingerprintRejectsInvalidLangCode(t *testing.T) {
	_, err := DeriveFingerprint("hello", "english", "fra", FingerprintConfig{})
	if !IsKind(err, KindInvalidInput) {
		t.Fatalf("expected KindInvalidInput, got %v", err)
	}
}

func TestDeriveFingerprintRejectsEmptyText(t *testing.T) {
	_, err := DeriveFingerprint("", "eng", "fra", FingerprintConfig{})
	if !IsKind(err, KindInvalidInput) {
		t.Fatalf("expected KindInvalidInput, got %v", err)
	}
}

func TestDeriveFingerprintStrongHashDiffersFromPlain(t *testing.T) {
	plain, err := DeriveFingerprint("hello", "eng", "fra", FingerprintConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	strong, err := DeriveFingerprint("hello", "eng", "fra", FingerprintConfig{StrongHash: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain.Key == strong.Key {
		t.Fatalf("expected strong hash key to differ from plain FNV-1a key")
	}
}
