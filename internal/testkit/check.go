package testkit

import (
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"
)

// Check runs prop (a func(...) bool) against randomly generated
// arguments, failing t with the first counterexample testing/quick
// finds. gen, when non-nil, overrides the default reflection-based
// generation for property functions whose argument types need
// constrained inputs (non-empty strings, positive amounts) rather than
// the zero-biased defaults quick.Value would otherwise produce.
func Check(t *testing.T, gen func(args []reflect.Value, rnd *rand.Rand), prop any) {
	t.Helper()
	cfg := &quick.Config{}
	if gen != nil {
		cfg.Values = gen
	}
	if err := quick.Check(prop, cfg); err != nil {
		t.Fatalf("property failed: %v", err)
	}
}
