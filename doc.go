// Package tcl implements the translation cache and language detection core
// of a distributed translation device: a multi-tier cache (in-memory →
// remote → durable) that reports a miss for the caller's translation
// backend to fill, and a
// two-tier (statistical/local → script-range/fallback) language detector
// with its own bounded detection cache.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/tofudevice/tcl"
//	    "github.com/tofudevice/tcl/cache"
//	    "github.com/tofudevice/tcl/durable"
//	)
//
//	func main() {
//	    coord := tcl.NewCoordinator(tcl.CoordinatorConfig{},
//	        tcl.WithRemoteAdapter(remoteAdapter),
//	        tcl.WithDurableBackend(durableStore),
//	    )
//
//	    fp, err := tcl.DeriveFingerprint("Hello", "en", "es", tcl.FingerprintConfig{NormalizeText: true})
//	    result, err := coord.Get(context.Background(), fp.Key)
//	}
package tcl
