package foresttune

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//////
// Const, vars, types.
//////

// Surrogate is the regression capability the loop refits over the full
// evaluation log each iteration: a model of the objective exposing a mean and
// an uncertainty per query point. Inputs are points in the normalized unit
// hypercube; outputs are scores in the loop's internal orientation (lower is
// better).
//
// A Surrogate is owned by a single tuning run and is never shared: the loop
// is strictly sequential, so implementations need no internal locking. Fit is
// always called on the complete log; no incremental update contract exists.
type Surrogate interface {
	// Fit trains the model from scratch on all observations so far.
	Fit(xs [][]float64, ys []float64) error

	// Predict estimates the objective at x, returning the predicted mean and
	// the predictive variance (never negative).
	Predict(x []float64) (mean, variance float64)
}

// gaussianProcess is the reference Surrogate: Gaussian process regression
// with a Matérn 5/2 covariance over the unit hypercube, a constant-mean
// prior set to the sample mean, and a numerical nugget for stability under
// noisy, repeated observations.
//
// Fitting factorizes the covariance matrix with a Cholesky decomposition. An
// ill-conditioned matrix is retried once with the nugget inflated a
// hundredfold before the failure is surfaced.
//
// Memory and time scale with the log: O(n²) storage for the factorization,
// O(n³) per fit, O(n²) per prediction. The evaluation budgets this model is
// built for (tens of observations) keep all of that trivial.
type gaussianProcess struct {
	// lengthScale is the Matérn correlation length in unit space.
	lengthScale float64

	// nugget is the relative jitter added to the covariance diagonal.
	nugget float64

	// Fitted state, replaced wholesale by every Fit call.
	xs        [][]float64
	chol      mat.Cholesky
	alpha     *mat.VecDense
	meanY     float64
	signalVar float64
	fitted    bool
}

//////
// Methods.
//////

// Fit trains the process on the full set of observations. The previous fit,
// if any, is discarded.
//
// The observed values are centered on their sample mean and the kernel is
// scaled by their sample variance, so the process needs no manual output
// scaling. A covariance matrix that fails to factorize is retried once with
// an inflated nugget; a second failure is returned as an error.
func (gp *gaussianProcess) Fit(xs [][]float64, ys []float64) error {
	if len(xs) == 0 || len(xs) != len(ys) {
		return errors.New("observation inputs and values must be non-empty and aligned")
	}

	n := len(xs)

	gp.xs = make([][]float64, n)
	for i, x := range xs {
		gp.xs[i] = append([]float64(nil), x...)
	}

	gp.meanY = stat.Mean(ys, nil)

	gp.signalVar = 1.0
	if n > 1 {
		if v := stat.Variance(ys, nil); v > 0 {
			gp.signalVar = v
		}
	}

	centered := mat.NewVecDense(n, nil)
	for i, y := range ys {
		centered.SetVec(i, y-gp.meanY)
	}

	if err := gp.factorize(centered, gp.nugget); err != nil {
		// One retry with heavier regularization before giving up.
		if err = gp.factorize(centered, gp.nugget*100); err != nil {
			return err
		}
	}

	gp.fitted = true

	return nil
}

// factorize builds the covariance matrix with the given nugget, factorizes
// it, and solves for the weight vector.
func (gp *gaussianProcess) factorize(centered *mat.VecDense, nugget float64) error {
	n := len(gp.xs)

	cov := mat.NewSymDense(n, nil)

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			k := gp.kernel(gp.xs[i], gp.xs[j])
			if i == j {
				k += nugget * gp.signalVar
			}

			cov.SetSym(i, j, k)
		}
	}

	if ok := gp.chol.Factorize(cov); !ok {
		return errors.New("covariance matrix is not positive definite")
	}

	gp.alpha = mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(gp.alpha, centered); err != nil {
		return err
	}

	return nil
}

// Predict returns the posterior mean and variance at x. Before any fit it
// returns the maximally uncertain prior (0, 1), matching the convention of an
// empty model.
func (gp *gaussianProcess) Predict(x []float64) (mean, variance float64) {
	if !gp.fitted {
		return 0, 1
	}

	n := len(gp.xs)

	kstar := mat.NewVecDense(n, nil)
	for i := range gp.xs {
		kstar.SetVec(i, gp.kernel(x, gp.xs[i]))
	}

	mean = gp.meanY + mat.Dot(kstar, gp.alpha)

	// Posterior variance: prior variance minus the explained part.
	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, kstar); err != nil {
		return mean, gp.signalVar * (1 + gp.nugget)
	}

	variance = gp.signalVar*(1+gp.nugget) - mat.Dot(kstar, v)
	if variance < 0 {
		variance = 0
	}

	return mean, variance
}

// kernel evaluates the Matérn 5/2 covariance between two unit-space points.
func (gp *gaussianProcess) kernel(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		panic("input vectors must have the same length")
	}

	var sum float64

	for i := range x1 {
		diff := x1[i] - x2[i]

		sum += diff * diff
	}

	d := math.Sqrt(5) * math.Sqrt(sum) / gp.lengthScale

	return gp.signalVar * (1 + d + d*d/3) * math.Exp(-d)
}

//////
// Factory.
//////

// newGaussianProcess creates the reference surrogate with defaults suited to
// the normalized unit hypercube: a correlation length of 0.3 and a 1e-6
// relative nugget.
func newGaussianProcess() *gaussianProcess {
	return &gaussianProcess{
		lengthScale: 0.3,
		nugget:      1e-6,
	}
}
