package foresttune

import "math/rand"

//////
// Initial design generation.
//////

// generateInitialDesign produces n space-filling configurations evaluated
// before any surrogate exists.
//
// Integer and continuous dimensions use Latin hypercube sampling: the unit
// interval is cut into n strata, each stratum is hit exactly once, and the
// strata are visited in an independent random order per dimension. Boolean
// dimensions are balanced instead: half the design at each level, shuffled,
// so both levels are always covered.
//
// The design depends only on the rng state, so a fixed seed reproduces it
// exactly; the resume path relies on that.
func generateInitialDesign(space *ParameterSpace, n int, rng *rand.Rand) []Configuration {
	if n < 1 {
		return nil
	}

	unit := make([][]float64, n)
	for i := range unit {
		unit[i] = make([]float64, space.Len())
	}

	for d, spec := range space.Specs() {
		switch spec.Kind {
		case KindBoolean:
			levels := make([]float64, n)
			for i := n / 2; i < n; i++ {
				levels[i] = 1
			}

			rng.Shuffle(n, func(i, j int) {
				levels[i], levels[j] = levels[j], levels[i]
			})

			for i := range levels {
				unit[i][d] = levels[i]
			}
		default:
			// One sample per stratum, strata in random order.
			perm := rng.Perm(n)
			for i, p := range perm {
				unit[i][d] = (float64(p) + rng.Float64()) / float64(n)
			}
		}
	}

	design := make([]Configuration, n)
	for i := range unit {
		design[i] = space.FromUnit(unit[i])
	}

	return design
}
