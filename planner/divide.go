//go:build !softdiv

package planner

// Reciprocal implements C7 on a target with cheap hardware division: the
// period inverse the step generator wants is just 0x0100_0000 / d, computed
// directly. See divide_softdiv.go for the Newton-Raphson fallback used when
// the build tag `softdiv` selects a target without one (spec.md §2 C7,
// §9 "Fast reciprocal").
func Reciprocal(d uint32) uint32 {
	if d == 0 {
		return 0
	}
	return 0x0100_0000 / d
}
