package cache

import (
	"testing"

	tcl "github.com/tofudevice/tcl"
)

func TestEncodeDecodeEntryRoundTrip(t *testing.T) {
	e := &tcl.Entry{
		Key:         "eng:fra:deadbeef",
		SourceText:  "hello",
		SourceLang:  "eng",
		TargetLang:  "fra",
		Translation: "bonjour",
		Confidence:  0.92,
		Timestamp:   1000,
		TTL:         60000,
		Flags:       tcl.FlagCloudOrigin,
		Metadata: tcl.EntryMetadata{
			UsageCount: 3,
			LastUsed:   2000,
			Context:    "greeting",
			Origin:     "cloud",
			Domain:     "general",
		},
	}

	data, err := encodeEntry(e)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	got, err := decodeEntry(data)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if !got.EqualObservable(e) {
		t.Fatalf("round-tripped entry does not match original: %+v vs %+v", got, e)
	}
	if got.Metadata.UsageCount != e.Metadata.UsageCount {
		t.Fatalf("expected usage count to survive round trip")
	}
	if !got.Flags.Has(tcl.FlagCloudOrigin) {
		t.Fatalf("expected flags to survive round trip")
	}
}

func TestDecodeEntryRejectsFutureSchemaVersion(t *testing.T) {
	_, err := decodeEntry([]byte(`{"v":99,"key":"k"}`))
	if !tcl.IsKind(err, tcl.KindSchemaTooNew) {
		t.Fatalf("expected KindSchemaTooNew, got %v", err)
	}
}

func TestDecodeEntryRejectsMalformedJSON(t *testing.T) {
	_, err := decodeEntry([]byte(`not json`))
	if !tcl.IsKind(err, tcl.KindInvalidFormat) {
		t.Fatalf("expected KindInvalidFormat, got %v", err)
	}
}
