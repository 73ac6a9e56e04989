package fingerprint

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestInputFingerprintOrderIndependence checks spec.md §8's Determinism
// property at the unit the fingerprint package actually controls:
// AddInputFingerprints must fold a set of input fingerprints in on a
// canonical (sorted) order, so that the map-iteration order the graph
// resolver happens to visit a transformer's inputs in never leaks into
// the resulting digest.
func TestInputFingerprintOrderIndependence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	fpGen := gen.SliceOfN(32, gen.UInt8Range(0, 255)).Map(func(bs []uint8) Fingerprint {
		var f Fingerprint
		copy(f[:], bs)
		return f
	})

	properties.Property("same fingerprint set folds identically regardless of input order", prop.ForAll(
		func(fps []Fingerprint) bool {
			reversed := make([]Fingerprint, len(fps))
			for i, fp := range fps {
				reversed[len(fps)-1-i] = fp
			}

			a := NewBuilder().AddInputFingerprints(fps).Sum()
			b := NewBuilder().AddInputFingerprints(reversed).Sum()
			return a == b
		},
		gen.SliceOf(fpGen),
	))

	properties.Property("OfBytes is deterministic for the same input", prop.ForAll(
		func(data []byte) bool {
			return OfBytes(data) == OfBytes(append([]byte(nil), data...))
		},
		gen.SliceOf(gen.UInt8Range(0, 255)),
	))

	properties.TestingRun(t)
}
