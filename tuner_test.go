package foresttune

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//////
// Shared test doubles.
//////

// stubLearner encodes a deterministic objective in its out-of-bag
// predictions so tuning runs are fully reproducible. Training fails once the
// call count passes failAfter (zero disables failures).
type stubLearner struct {
	trainCalls int
	failAfter  int
	lastParams map[string]any
}

func (l *stubLearner) Train(_ context.Context, params map[string]any, _ Task) (Model, error) {
	l.trainCalls++
	l.lastParams = params

	if l.failAfter > 0 && l.trainCalls > l.failAfter {
		return nil, errors.New("training exploded")
	}

	return params, nil
}

func (l *stubLearner) OutOfBagPredictions(_ context.Context, model Model, _ Task) (*Predictions, error) {
	params := model.(map[string]any)

	score := 0.0

	if mtry, ok := params["mtry"].(int); ok {
		score += float64(mtry-3) * float64(mtry-3)
	}

	if sf, ok := params["sample.fraction"].(float64); ok {
		score += (sf - 0.7) * (sf - 0.7)
	}

	return &Predictions{Predicted: []float64{score}, Actual: []float64{0}}, nil
}

// passThroughMeasure reports the first predicted value as the score.
type passThroughMeasure struct{}

func (passThroughMeasure) ID() string { return "score" }

func (passThroughMeasure) Minimize() bool { return true }

func (passThroughMeasure) Compute(p *Predictions) (float64, error) {
	return p.Predicted[0], nil
}

// countingSurrogate records fits and predicts a flat, certain landscape.
type countingSurrogate struct {
	fits int
}

func (s *countingSurrogate) Fit(xs [][]float64, ys []float64) error {
	s.fits++

	return nil
}

func (s *countingSurrogate) Predict(_ []float64) (float64, float64) {
	return 0, 1
}

func testConfig(t *testing.T, learner Learner) Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Task = Task{Type: TaskRegression, Size: 1000, FeatureCount: 10}
	cfg.Learner = learner
	cfg.Measure = passThroughMeasure{}
	cfg.TuneParameters = []string{ParamMtry, ParamSampleFraction, ParamReplace}
	cfg.CheckpointPath = filepath.Join(t.TempDir(), "tune.ckpt.json")
	cfg.Seed = 42
	cfg.NumTrees = 50
	cfg.Restarts = 2
	cfg.FocusRounds = 3
	cfg.PointsPerRound = 10

	return cfg
}

//////
// Tests.
//////

func TestRunBudgetSplit(t *testing.T) {
	surrogate := &countingSurrogate{}

	cfg := testConfig(t, &stubLearner{})
	cfg.Iterations = 35
	cfg.DesignSize = 30
	cfg.Surrogate = surrogate

	progress := make(chan ProgressUpdate, cfg.Iterations)
	cfg.ProgressChan = progress

	tuner, err := New(cfg)
	require.NoError(t, err)

	result, err := tuner.Run(context.Background())
	require.NoError(t, err)

	// 30 design evaluations plus exactly 5 surrogate-guided ones.
	assert.Len(t, result.FullResults, 35)
	assert.Equal(t, 5, surrogate.fits)

	close(progress)

	phases := map[string]int{}
	for update := range progress {
		phases[update.Phase]++
	}

	assert.Equal(t, 30, phases["design"])
	assert.Equal(t, 5, phases["infill"])

	// Successful completion discards the checkpoint.
	_, err = os.Stat(cfg.CheckpointPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunDesignTruncation(t *testing.T) {
	surrogate := &countingSurrogate{}

	cfg := testConfig(t, &stubLearner{})
	cfg.Iterations = 10
	cfg.DesignSize = 30
	cfg.Surrogate = surrogate

	tuner, err := New(cfg)
	require.NoError(t, err)

	result, err := tuner.Run(context.Background())
	require.NoError(t, err)

	// The design is truncated to the budget and the surrogate phase is
	// skipped entirely.
	assert.Len(t, result.FullResults, 10)
	assert.Zero(t, surrogate.fits)
}

func TestRunProposalsStayInBounds(t *testing.T) {
	cfg := testConfig(t, &stubLearner{})
	cfg.Iterations = 14
	cfg.DesignSize = 8

	tuner, err := New(cfg)
	require.NoError(t, err)

	result, err := tuner.Run(context.Background())
	require.NoError(t, err)

	for _, row := range result.FullResults {
		mtry := row.Values[ParamMtry].(int)
		sf := row.Values[ParamSampleFraction].(float64)

		assert.GreaterOrEqual(t, mtry, 1)
		assert.LessOrEqual(t, mtry, 10)
		assert.GreaterOrEqual(t, sf, 0.22)
		assert.LessOrEqual(t, sf, 1.0)
	}
}

func TestRunDeterministicGivenSeed(t *testing.T) {
	run := func(path string) *TuningResult {
		cfg := testConfig(t, &stubLearner{})
		cfg.Iterations = 12
		cfg.DesignSize = 6
		cfg.CheckpointPath = path

		tuner, err := New(cfg)
		require.NoError(t, err)

		result, err := tuner.Run(context.Background())
		require.NoError(t, err)

		return result
	}

	first := run(filepath.Join(t.TempDir(), "a.json"))
	second := run(filepath.Join(t.TempDir(), "b.json"))

	require.Len(t, second.FullResults, len(first.FullResults))

	for i := range first.FullResults {
		assert.Equal(t, first.FullResults[i].Values, second.FullResults[i].Values, "row %d", i)
		assert.Equal(t, first.FullResults[i].Score, second.FullResults[i].Score, "row %d", i)
	}
}

func TestRunEvaluationFailurePreservesCheckpoint(t *testing.T) {
	learner := &stubLearner{failAfter: 12}

	cfg := testConfig(t, learner)
	cfg.Iterations = 20
	cfg.DesignSize = 5

	tuner, err := New(cfg)
	require.NoError(t, err)

	_, err = tuner.Run(context.Background())
	require.Error(t, err)

	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, 12, evalErr.Iteration)
	assert.NotNil(t, evalErr.Config)

	// The last good checkpoint survives the failure.
	cp, err := LoadCheckpoint(cfg.CheckpointPath)
	require.NoError(t, err)
	assert.Len(t, cp.Log, 12)
	assert.Equal(t, 8, cp.Remaining)
}

func TestResumeContinuesExactLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tune.ckpt.json")

	failing := &stubLearner{failAfter: 12}

	cfg := testConfig(t, failing)
	cfg.Iterations = 20
	cfg.DesignSize = 5
	cfg.CheckpointPath = path

	tuner, err := New(cfg)
	require.NoError(t, err)

	_, err = tuner.Run(context.Background())
	require.Error(t, err)

	persisted, err := LoadCheckpoint(path)
	require.NoError(t, err)
	require.Len(t, persisted.Log, 12)

	// Resume with a healthy learner: no design re-run, no re-evaluation.
	healthy := &stubLearner{}

	resumeCfg := cfg
	resumeCfg.Learner = healthy
	resumeCfg.Resume = true

	resumed, err := New(resumeCfg)
	require.NoError(t, err)

	result, err := resumed.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.FullResults, 20)
	assert.Equal(t, 8, healthy.trainCalls)

	for i, obs := range persisted.Log {
		assert.Equal(t, obs.Score, result.FullResults[i].Score, "observation %d", i)
		assert.Equal(t, decodeConfig(resumed.space, obs.Config), result.FullResults[i].Values, "observation %d", i)
	}

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFreshRunClearsStaleCheckpoint(t *testing.T) {
	cfg := testConfig(t, &stubLearner{})
	cfg.Iterations = 6
	cfg.DesignSize = 3

	require.NoError(t, os.WriteFile(cfg.CheckpointPath, []byte("stale garbage"), 0o644))

	tuner, err := New(cfg)
	require.NoError(t, err)

	result, err := tuner.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.FullResults, 6)
}

func TestNewRejectsFixedTunedCollision(t *testing.T) {
	cfg := testConfig(t, &stubLearner{})
	cfg.TuneParameters = []string{ParamMtry, ParamMinNodeSize}
	cfg.FixedParameters = map[string]any{ParamMtry: 3}

	_, err := New(cfg)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ParamMtry, cfgErr.Name)
}

func TestNewRejectsZeroFeatureCountForMtry(t *testing.T) {
	cfg := testConfig(t, &stubLearner{})
	cfg.Task.FeatureCount = 0
	cfg.TuneParameters = []string{ParamMtry}

	_, err := New(cfg)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ParamMtry, cfgErr.Name)
}

func TestNewRejectsMissingLearner(t *testing.T) {
	cfg := testConfig(t, &stubLearner{})
	cfg.Learner = nil

	_, err := New(cfg)

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRunBuildsFinalModel(t *testing.T) {
	learner := &stubLearner{}

	cfg := testConfig(t, learner)
	cfg.Iterations = 6
	cfg.DesignSize = 3
	cfg.BuildFinalModel = true

	tuner, err := New(cfg)
	require.NoError(t, err)

	result, err := tuner.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, result.Model)

	// The final refit received the decoded recommendation plus structural
	// settings.
	final := result.Model.(map[string]any)
	assert.Contains(t, final, ParamMtry)
	assert.Equal(t, 50, final["num.trees"])
	assert.Equal(t, fmt.Sprint(result.Recommended.Values[ParamMtry]), fmt.Sprint(final[ParamMtry]))
}

func TestRunHonorsCancellation(t *testing.T) {
	cfg := testConfig(t, &stubLearner{})
	cfg.Iterations = 50
	cfg.DesignSize = 5

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tuner, err := New(cfg)
	require.NoError(t, err)

	_, err = tuner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
