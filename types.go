package foresttune

import (
	"context"
	"time"

	"go.uber.org/zap"
)

//////
// Const, vars, types.
//////

// TaskType distinguishes the two supported learning tasks. Measure defaulting
// and out-of-bag prediction decoding branch on this tag rather than on runtime
// inspection of the data.
type TaskType string

const (
	// TaskClassification is a classification task; out-of-bag predictions are
	// per-class probabilities.
	TaskClassification TaskType = "classification"

	// TaskRegression is a regression task; out-of-bag predictions are scalar
	// values.
	TaskRegression TaskType = "regression"
)

// Task describes the dataset being tuned against. The tuner never touches the
// data itself; it only needs the dimensions that anchor the parameter space
// and the class levels that drive measure defaulting.
type Task struct {
	// Type is the learning task kind (classification or regression).
	Type TaskType `json:"type"`

	// Size is the number of observations in the dataset. Anchors the
	// min.node.size transform.
	Size int `json:"size"`

	// FeatureCount is the number of predictor columns. Anchors the mtry
	// bounds.
	FeatureCount int `json:"featureCount"`

	// ClassLevels holds the class labels for classification tasks, in column
	// order of the probability matrix. Empty for regression.
	ClassLevels []string `json:"classLevels,omitempty"`
}

// ParamKind is the type of a tunable dimension.
type ParamKind int

const (
	// KindInteger is an integer-valued dimension with inclusive bounds.
	KindInteger ParamKind = iota

	// KindContinuous is a real-valued dimension with inclusive bounds.
	KindContinuous

	// KindBoolean is a two-level dimension encoded as 0 or 1.
	KindBoolean
)

// String returns the human-readable kind name used in tables and errors.
func (k ParamKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindContinuous:
		return "continuous"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// ParameterSpec declares one tunable dimension: its name, kind, inclusive
// bounds, default, and an optional transform applied to the raw sampled value
// before it reaches the learner.
//
// The transform, when present, must be a pure deterministic function of the
// raw value; any external scalar it depends on (dataset size for the node-size
// mapping) is captured when the space is built. The same transform decodes
// logged raw values back to natural units for reporting, so evaluation and
// reporting can never disagree.
type ParameterSpec struct {
	// Name uniquely identifies the dimension within a space.
	Name string

	// Kind is the dimension's value type.
	Kind ParamKind

	// Lower and Upper are the inclusive bounds on the raw value. Booleans use
	// the fixed bounds [0, 1].
	Lower float64
	Upper float64

	// Default is the raw value used when the dimension is not tuned.
	Default float64

	// Transform maps the raw value to the value handed to the learner. Nil
	// means the raw value is used as-is.
	Transform func(raw float64) float64
}

// Configuration maps dimension names to concrete raw values. Integer kinds
// hold integer-valued floats; booleans hold 0 or 1. Produced by the design
// generator or the infill proposer, consumed by the objective evaluator.
type Configuration map[string]float64

// Observation is one completed evaluation: the configuration tried, the
// measure score it achieved, and how long the learner call took. Observations
// are immutable once appended to the evaluation log.
type Observation struct {
	// Index is the zero-based position of this observation in the log.
	Index int `json:"index"`

	// Config is the raw (untransformed) configuration that was evaluated.
	Config Configuration `json:"config"`

	// Score is the measure value, in the measure's own orientation.
	Score float64 `json:"score"`

	// ElapsedSeconds is the wall-clock duration of the evaluation.
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// Predictions carries a learner's out-of-bag predictions in the shape the
// built-in measures understand. Classification fills Probabilities and
// Classes; regression fills Predicted and Actual.
type Predictions struct {
	// Probabilities is one row per observation, one column per class level,
	// in the order given by ClassLevels.
	Probabilities [][]float64

	// Classes holds the true class index of each observation.
	Classes []int

	// ClassLevels names the probability columns.
	ClassLevels []string

	// Predicted and Actual are the regression predictions and truths.
	Predicted []float64
	Actual    []float64
}

// Model is the opaque fitted artifact returned by a Learner. The tuner never
// inspects it; it is handed back to the learner for out-of-bag prediction and
// surfaced in the final TuningResult when a final model is requested.
type Model any

// Learner is the external collaborator that actually fits tree ensembles.
// Implementations receive the fully transformed parameter values (integers as
// int, booleans as bool) merged with the caller's fixed parameters and the
// structural num.trees / num.threads settings.
//
// Both calls must honor ctx cancellation if the underlying training supports
// it; the tuner itself only checks for cancellation between iterations.
type Learner interface {
	// Train fits one ensemble with the given parameter values.
	Train(ctx context.Context, params map[string]any, task Task) (Model, error)

	// OutOfBagPredictions extracts held-out predictions from a fitted model.
	// Probability output for classification, scalar output for regression.
	OutOfBagPredictions(ctx context.Context, model Model, task Task) (*Predictions, error)
}

// Measure scores a set of out-of-bag predictions. Built-in implementations
// cover the common classification and regression measures; callers may supply
// their own.
type Measure interface {
	// ID is the short measure name used as the score column header.
	ID() string

	// Minimize reports whether lower scores are better.
	Minimize() bool

	// Compute reduces predictions to a single scalar score.
	Compute(p *Predictions) (float64, error)
}

// ProgressUpdate reports the state of the tuning run after each evaluation.
// Sent on Config.ProgressChan when one is provided; sends never block.
type ProgressUpdate struct {
	// Phase is "design" during the initial design and "infill" afterwards.
	Phase string

	// Iteration is the one-based count of completed evaluations.
	Iteration int

	// Total is the full evaluation budget.
	Total int

	// Config is the configuration just evaluated (raw values).
	Config Configuration

	// Score is the measure value of the last evaluation.
	Score float64

	// BestScore is the best measure value seen so far.
	BestScore float64

	// ElapsedSeconds is the duration of the last evaluation.
	ElapsedSeconds float64
}

// ResultRow is one row of a results table: decoded parameter values keyed by
// dimension name, plus the score and evaluation time columns. Integer kinds
// decode to int, booleans to bool, continuous dimensions to float64.
type ResultRow struct {
	Values         map[string]any
	Score          float64
	ElapsedSeconds float64
}

// TuningResult is the final output bundle. Created once when the loop
// finishes; never mutated afterwards.
type TuningResult struct {
	// Columns lists the table columns in declaration order: the tuned
	// dimension names followed by the measure ID and "exec.time".
	Columns []string

	// Recommended is the single-row recommendation aggregated over the
	// best-scoring tail of the log.
	Recommended ResultRow

	// FullResults holds one decoded row per observation, in log order.
	FullResults []ResultRow

	// Model is the refit final model when Config.BuildFinalModel is set,
	// nil otherwise.
	Model Model
}

// Config holds everything a tuning run needs. Construct with DefaultConfig
// and override; New validates the result before any evaluation happens.
type Config struct {
	// Task describes the dataset and task type.
	Task Task

	// Learner is the external training collaborator. Required.
	Learner Learner

	// Measure scores out-of-bag predictions. Nil selects the task-type
	// default: Brier score for binary classification, multiclass Brier for
	// multiclass, mean squared error for regression.
	Measure Measure

	// TuneParameters selects the tuned dimensions by name. Nil or empty
	// selects the full supported universe. Order of the universe, not of
	// this slice, determines column order.
	TuneParameters []string

	// FixedParameters are passed to every learner call verbatim. A name
	// here may not also appear in TuneParameters.
	FixedParameters map[string]any

	// Iterations is the total evaluation budget, including the initial
	// design.
	Iterations int

	// DesignSize is the number of space-filling configurations evaluated
	// before the surrogate takes over. Truncated to Iterations when it
	// meets or exceeds the budget.
	DesignSize int

	// NumTrees and NumThreads are forwarded to the learner as num.trees and
	// num.threads. NumThreads is an opaque resource hint for the learner's
	// internal parallelism; the tuning loop itself is strictly sequential.
	NumTrees   int
	NumThreads int

	// CheckpointPath is where the evaluation log is persisted after every
	// evaluation. Required.
	CheckpointPath string

	// Resume continues from an existing checkpoint at CheckpointPath
	// instead of starting fresh. A fresh run clears any stale checkpoint.
	Resume bool

	// BuildFinalModel trains one final ensemble on the recommended
	// configuration after the search completes.
	BuildFinalModel bool

	// Seed makes design generation and the infill search reproducible.
	// Zero selects a time-based seed.
	Seed int64

	// Surrogate overrides the regression model fitted over the log each
	// iteration. Nil selects the Gaussian process with Matérn 5/2
	// covariance.
	Surrogate Surrogate

	// Acquisition overrides the infill criterion. Nil selects the
	// confidence bound with the default exploration weight.
	Acquisition Acquisition

	// Restarts, FocusRounds and PointsPerRound bound the infill search:
	// Restarts independent starts, each running FocusRounds rounds of
	// PointsPerRound sampled candidates in a shrinking box.
	Restarts       int
	FocusRounds    int
	PointsPerRound int

	// Logger receives structured progress logging. Nil means silent.
	Logger *zap.Logger

	// ProgressChan receives a ProgressUpdate after every evaluation. Nil
	// disables updates; full channels are skipped, never blocked on.
	ProgressChan chan<- ProgressUpdate
}

//////
// Exported functionalities.
//////

// DefaultConfig returns the reference tuning policy: a 70-evaluation budget
// with a 30-point initial design, 1000 trees per ensemble, and the
// confidence-bound infill criterion searched with 5 restarts.
func DefaultConfig() Config {
	return Config{
		Iterations:     70,
		DesignSize:     30,
		NumTrees:       1000,
		NumThreads:     1,
		Restarts:       5,
		FocusRounds:    5,
		PointsPerRound: 40,
	}
}

// now is stubbed in tests that need deterministic timestamps.
var now = time.Now
