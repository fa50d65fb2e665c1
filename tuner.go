package foresttune

import (
	"context"
	"math"
	"math/rand"

	"go.uber.org/zap"
)

//////
// Const, vars, types.
//////

// Tuner runs the sequential model-based optimization loop: evaluate a
// space-filling initial design, then repeatedly refit a surrogate over the
// full evaluation log, propose one promising configuration through the infill
// criterion, evaluate it, and checkpoint, until the evaluation budget is
// spent.
//
// The loop is strictly sequential. Every fit depends on all prior
// observations, so no two configurations are ever proposed or evaluated
// concurrently; the learner's own internal parallelism (num.threads) is an
// opaque hint passed through, not managed here.
type Tuner struct {
	cfg     Config
	measure Measure
	space   *ParameterSpace
	eval    *objectiveEvaluator
	store   *checkpointStore
	acq     Acquisition
	logger  *zap.Logger
}

//////
// Exported functionalities.
//////

// New validates the configuration and wires a Tuner. All caller-input
// problems surface here as ConfigurationError, before any evaluation or
// checkpoint I/O happens.
func New(cfg Config) (*Tuner, error) {
	if cfg.Learner == nil {
		return nil, &ConfigurationError{Reason: "a Learner is required"}
	}

	if cfg.Iterations < 1 {
		return nil, &ConfigurationError{Reason: "iteration budget must be at least 1"}
	}

	if cfg.DesignSize < 1 {
		return nil, &ConfigurationError{Reason: "design size must be at least 1"}
	}

	if cfg.CheckpointPath == "" {
		return nil, &ConfigurationError{Reason: "a checkpoint path is required"}
	}

	if cfg.NumTrees < 1 {
		return nil, &ConfigurationError{Reason: "num.trees must be at least 1"}
	}

	measure := cfg.Measure
	if measure == nil {
		var err error

		measure, err = DefaultMeasure(cfg.Task)
		if err != nil {
			return nil, err
		}
	}

	space, err := BuildSpace(cfg.Task.Size, cfg.Task.FeatureCount, cfg.TuneParameters, cfg.FixedParameters)
	if err != nil {
		return nil, err
	}

	// Fill unset search budgets from the reference policy.
	defaults := DefaultConfig()
	if cfg.Restarts < 1 {
		cfg.Restarts = defaults.Restarts
	}
	if cfg.FocusRounds < 1 {
		cfg.FocusRounds = defaults.FocusRounds
	}
	if cfg.PointsPerRound < 1 {
		cfg.PointsPerRound = defaults.PointsPerRound
	}

	acq := cfg.Acquisition
	if acq == nil {
		acq = ConfidenceBound{Lambda: 1}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Tuner{
		cfg:     cfg,
		measure: measure,
		space:   space,
		eval:    newObjectiveEvaluator(space, cfg, measure),
		store:   &checkpointStore{path: cfg.CheckpointPath},
		acq:     acq,
		logger:  logger,
	}, nil
}

// Run executes the tuning loop to completion and returns the summarized
// result.
//
// A fresh run clears any stale checkpoint at the configured path; with
// Config.Resume set and a checkpoint present, the evaluation log and the
// remaining budget are reconstructed from it, the design phase is not
// re-run, and no logged configuration is re-evaluated.
//
// On an evaluator, fitter, or checkpoint failure the error propagates with
// its context (iteration index, configuration) and the last good checkpoint
// is preserved so the run can be resumed. Cancellation via ctx is honored
// between iterations; a running evaluation is never interrupted.
func (t *Tuner) Run(ctx context.Context) (*TuningResult, error) {
	cp, rng, err := t.initialize()
	if err != nil {
		return nil, err
	}

	designSize := min(t.cfg.DesignSize, t.cfg.Iterations)

	// The design is regenerated even on resume: it depends only on the seed,
	// and regenerating keeps the rng aligned with an uninterrupted run.
	design := generateInitialDesign(t.space, designSize, rng)

	for i := len(cp.Log); i < designSize; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := t.evaluateAndLog(ctx, cp, "design", design[i]); err != nil {
			return nil, err
		}
	}

	proposer := newProposer(t.space, t.acq, t.cfg.Restarts, t.cfg.FocusRounds, t.cfg.PointsPerRound, rng)

	for len(cp.Log) < t.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		model, err := t.fitSurrogate(cp.Log)
		if err != nil {
			return nil, err
		}

		incumbent, bestOriented := t.incumbent(cp.Log)

		next := proposer.propose(model, incumbent, bestOriented)

		if err := t.evaluateAndLog(ctx, cp, "infill", next); err != nil {
			return nil, err
		}
	}

	result := Summarize(t.space, cp.Log, t.measure.ID(), t.measure.Minimize(), defaultQuantile)

	if t.cfg.BuildFinalModel {
		model, err := t.cfg.Learner.Train(ctx, t.eval.finalParams(result.Recommended.Values), t.cfg.Task)
		if err != nil {
			return nil, &EvaluationError{Iteration: cp.NextIndex, Err: err}
		}

		result.Model = model
	}

	// Successful completion: nothing left to resume.
	if err := t.store.clear(); err != nil {
		return nil, err
	}

	t.logger.Info("tuning complete",
		zap.String("runId", cp.RunID),
		zap.Int("evaluations", len(cp.Log)),
		zap.Float64("bestScore", bestScore(cp.Log, t.measure.Minimize())))

	return result, nil
}

//////
// Internal.
//////

// initialize resolves the starting state: either a fresh checkpoint shell or
// the persisted state of an interrupted run.
func (t *Tuner) initialize() (*Checkpoint, *rand.Rand, error) {
	if t.cfg.Resume && t.store.exists() {
		cp, err := t.store.load()
		if err != nil {
			return nil, nil, err
		}

		t.logger.Info("resuming from checkpoint",
			zap.String("runId", cp.RunID),
			zap.String("path", t.cfg.CheckpointPath),
			zap.Int("logged", len(cp.Log)),
			zap.Int("remaining", cp.Remaining))

		return cp, rand.New(rand.NewSource(cp.Seed)), nil
	}

	// Fresh run: a stale checkpoint at the target path is dead state.
	if err := t.store.clear(); err != nil {
		return nil, nil, err
	}

	seed := t.cfg.Seed
	if seed == 0 {
		seed = now().UnixNano()
	}

	cp := newCheckpoint(t.cfg, t.measure, t.space.Names())
	cp.Seed = seed

	t.logger.Info("starting tuning run",
		zap.String("runId", cp.RunID),
		zap.String("measure", t.measure.ID()),
		zap.Strings("parameters", t.space.Names()),
		zap.Int("budget", t.cfg.Iterations),
		zap.Int64("seed", seed))

	return cp, rand.New(rand.NewSource(seed)), nil
}

// evaluateAndLog scores one configuration, appends the observation, and
// persists the checkpoint before anything else may happen. A crash therefore
// loses at most the one in-flight evaluation.
func (t *Tuner) evaluateAndLog(ctx context.Context, cp *Checkpoint, phase string, cfg Configuration) error {
	score, elapsed, err := t.eval.evaluate(ctx, cfg)
	if err != nil {
		return &EvaluationError{Iteration: cp.NextIndex, Config: cfg, Err: err}
	}

	obs := Observation{
		Index:          cp.NextIndex,
		Config:         cfg,
		Score:          score,
		ElapsedSeconds: elapsed,
	}

	cp.Log = append(cp.Log, obs)
	cp.NextIndex++
	cp.Remaining--

	if err := t.store.save(cp); err != nil {
		return err
	}

	best := bestScore(cp.Log, t.measure.Minimize())

	t.logger.Debug("evaluated configuration",
		zap.String("phase", phase),
		zap.Int("iteration", obs.Index+1),
		zap.Int("total", t.cfg.Iterations),
		zap.Float64("score", score),
		zap.Float64("best", best),
		zap.Float64("seconds", elapsed))

	if t.cfg.ProgressChan != nil {
		update := ProgressUpdate{
			Phase:          phase,
			Iteration:      obs.Index + 1,
			Total:          t.cfg.Iterations,
			Config:         cfg,
			Score:          score,
			BestScore:      best,
			ElapsedSeconds: elapsed,
		}

		select {
		case t.cfg.ProgressChan <- update:
		default:
			// Skip update if channel is full.
		}
	}

	return nil
}

// fitSurrogate refits a fresh surrogate on the full log. The model lives for
// exactly one iteration.
func (t *Tuner) fitSurrogate(log []Observation) (Surrogate, error) {
	model := t.cfg.Surrogate
	if model == nil {
		model = newGaussianProcess()
	}

	xs := make([][]float64, len(log))
	ys := make([]float64, len(log))

	sign := orientation(t.measure.Minimize())

	for i, obs := range log {
		xs[i] = t.space.ToUnit(obs.Config)
		ys[i] = sign * obs.Score
	}

	if err := model.Fit(xs, ys); err != nil {
		return nil, &SurrogateFitError{Observations: len(log), Err: err}
	}

	return model, nil
}

// incumbent returns the best configuration seen so far and its score in the
// internal minimization orientation.
func (t *Tuner) incumbent(log []Observation) (Configuration, float64) {
	sign := orientation(t.measure.Minimize())

	best := math.Inf(1)

	var cfg Configuration

	for _, obs := range log {
		if oriented := sign * obs.Score; oriented < best {
			best = oriented
			cfg = obs.Config
		}
	}

	return cfg, best
}

// orientation maps the measure direction onto the internal always-minimize
// convention.
func orientation(minimize bool) float64 {
	if minimize {
		return 1
	}

	return -1
}

// bestScore returns the best raw measure value in the log.
func bestScore(log []Observation, minimize bool) float64 {
	sign := orientation(minimize)

	best := math.Inf(1)

	for _, obs := range log {
		if oriented := sign * obs.Score; oriented < best {
			best = oriented
		}
	}

	return sign * best
}
