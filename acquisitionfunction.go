package foresttune

import (
	"math"
	"math/rand"
)

//////
// Infill criteria and the focused search that optimizes them.
//
// A criterion scores a point of the surrogate's predictive distribution;
// lower scores mark more promising points. The loop always works in its
// internal minimization orientation, so criteria never need to know whether
// the underlying measure is minimized or maximized.
//////

// Acquisition scores a surrogate prediction. Lower values indicate more
// promising points to evaluate next.
type Acquisition interface {
	// Score rates a point given the surrogate's predicted mean and variance
	// there and the best (lowest) oriented score observed so far.
	Score(mean, variance, bestSoFar float64) float64
}

// ConfidenceBound is the reference infill criterion: the predicted mean
// lowered by Lambda standard deviations.
//
//	cb(x) = mean(x) - Lambda * sqrt(variance(x))
//
// Lambda is the fixed mixing parameter between exploitation (small Lambda)
// and exploration (large Lambda). Early in a run the surrogate's variance
// dominates everywhere, so the same Lambda naturally weights exploration
// first and exploitation once the model sharpens.
type ConfidenceBound struct {
	// Lambda is the exploration weight. Typical values are 0.5 to 3; the
	// default policy uses 1.
	Lambda float64
}

// Score implements Acquisition.
func (cb ConfidenceBound) Score(mean, variance, _ float64) float64 {
	return mean - cb.Lambda*math.Sqrt(variance)
}

// ExpectedImprovement scores a point by the expected magnitude of its
// improvement over the incumbent, under the surrogate's normal predictive
// distribution. Returned negated so that, like every Acquisition, lower is
// better.
//
// Xi is the minimum improvement margin; larger values push the search toward
// unexplored regions.
type ExpectedImprovement struct {
	// Xi is the improvement margin. Typical values are 0.01 to 0.1.
	Xi float64
}

// Score implements Acquisition.
func (ei ExpectedImprovement) Score(mean, variance, bestSoFar float64) float64 {
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		return 0
	}

	improvement := bestSoFar - mean - ei.Xi
	z := improvement / sigma

	return -(improvement*normalCDF(z) + sigma*normalPDF(z))
}

//////
// Focused search.
//////

// proposer searches the parameter space for the next configuration to
// evaluate: restarts independent random starts, each running focusRounds
// rounds of pointsPerRound uniform samples in a box that halves around the
// round's best point. Every candidate is snapped to a valid raw configuration
// before scoring, so a proposal can never leave the declared bounds.
type proposer struct {
	space          *ParameterSpace
	acq            Acquisition
	restarts       int
	focusRounds    int
	pointsPerRound int
	rng            *rand.Rand
}

// propose returns exactly one configuration: the best-scoring candidate the
// focused search visited. Acquisition ties are broken toward the candidate
// closest to the incumbent in unit space, which stabilizes convergence once
// the surrogate flattens out.
func (p *proposer) propose(model Surrogate, incumbent Configuration, bestSoFar float64) Configuration {
	incumbentUnit := p.space.ToUnit(incumbent)

	var (
		bestUnit  []float64
		bestScore = math.Inf(1)
		bestDist  = math.Inf(1)
	)

	consider := func(u []float64) float64 {
		// Snap to the raw grid first; the surrogate must see the point that
		// would actually be evaluated.
		snapped := p.space.ToUnit(p.space.FromUnit(u))

		mean, variance := model.Predict(snapped)
		score := p.acq.Score(mean, variance, bestSoFar)
		dist := unitDistance(snapped, incumbentUnit)

		if score < bestScore || (score == bestScore && dist < bestDist) {
			bestScore = score
			bestDist = dist
			bestUnit = snapped
		}

		return score
	}

	for r := 0; r < p.restarts; r++ {
		center := p.space.sampleUnit(p.rng)
		width := 1.0

		roundBest := append([]float64(nil), center...)
		roundScore := consider(center)

		for round := 0; round < p.focusRounds; round++ {
			for i := 0; i < p.pointsPerRound; i++ {
				u := make([]float64, len(center))
				for d := range u {
					lo := clamp(roundBest[d]-width/2, 0, 1)
					hi := clamp(roundBest[d]+width/2, 0, 1)
					u[d] = lo + p.rng.Float64()*(hi-lo)
				}

				if s := consider(u); s < roundScore {
					roundScore = s
					roundBest = u
				}
			}

			width /= 2
		}
	}

	return p.space.FromUnit(bestUnit)
}

//////
// Factory.
//////

// newProposer wires the focused search with the run's criterion and budgets.
func newProposer(space *ParameterSpace, acq Acquisition, restarts, focusRounds, pointsPerRound int, rng *rand.Rand) *proposer {
	return &proposer{
		space:          space,
		acq:            acq,
		restarts:       restarts,
		focusRounds:    focusRounds,
		pointsPerRound: pointsPerRound,
		rng:            rng,
	}
}
