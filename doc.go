// Package foresttune provides automated hyperparameter tuning for
// random-forest-style tree ensembles using sequential model-based
// optimization (SMBO). It searches a small mixed integer/continuous/boolean
// parameter space for the settings that optimize a chosen performance
// measure, spending a fixed budget of expensive learner evaluations as
// efficiently as possible.
//
// # Features
//
// The package includes the following key features:
//
//   - Model-based search: a Gaussian process surrogate with a Matérn 5/2
//     covariance predicts performance at untested configurations, so far
//     fewer learner fits are needed than grid or random search
//   - Confidence-bound infill: the next configuration is chosen by a
//     focused search over a criterion that balances exploitation and
//     exploration; expected improvement is available as an alternative
//   - Space-filling initial design: a Latin hypercube seeds the surrogate
//     before any model-guided proposals happen
//   - Checkpointed evaluation log: the log is persisted after every single
//     evaluation, so a crashed run resumes exactly where it stopped without
//     re-evaluating anything
//   - Built-in measures: Brier score, multiclass Brier, log loss and
//     accuracy for classification; MSE and MAE for regression; callers may
//     plug in their own
//   - Decoded reporting: the recommendation and the full results table are
//     reported in natural units, with transformed dimensions (node size)
//     decoded back from their search encoding
//
// # Quick start
//
//	cfg := foresttune.DefaultConfig()
//	cfg.Task = foresttune.Task{
//	    Type:         foresttune.TaskClassification,
//	    Size:         1500,
//	    FeatureCount: 20,
//	    ClassLevels:  []string{"neg", "pos"},
//	}
//	cfg.Learner = myRangerAdapter       // external training collaborator
//	cfg.CheckpointPath = "tune.ckpt.json"
//	cfg.Seed = 42
//
//	tuner, err := foresttune.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := tuner.Run(context.Background())
//	if err != nil {
//	    log.Fatal(err)                  // checkpoint preserved for resume
//	}
//
//	fmt.Println(result.Recommended.Values)
//
// To resume an interrupted run, set cfg.Resume = true and call Run again
// with the same checkpoint path.
//
// # Tuned parameters
//
// The supported universe, in fixed declaration order: mtry (integer, 1 to
// the feature count), min.node.size (searched on the unit interval and
// mapped through an exponential transform anchored to the dataset size),
// sample.fraction (0.22 to 1), replace, and respect.unordered.factors.
// Any subset can be selected; a parameter fixed by the caller cannot also
// be tuned.
//
// # Concurrency
//
// The optimization loop is strictly sequential: each surrogate fit depends
// on all prior observations, so configurations are proposed and evaluated
// one at a time. The num.threads setting is passed through to the learner
// for its own internal parallelism.
package foresttune
