package foresttune

import (
	"context"
	"fmt"
	"time"
)

//////
// Objective evaluation.
//////

// objectiveEvaluator turns a raw configuration into one scored learner call:
// transforms each dimension, merges the caller's fixed parameters and the
// structural tree/thread settings, trains, pulls out-of-bag predictions, and
// scores them with the run's measure.
//
// Evaluation is noisy: two calls with the same configuration may return
// different scores. The loop and the surrogate both tolerate that; nothing
// here caches or deduplicates.
type objectiveEvaluator struct {
	space      *ParameterSpace
	task       Task
	learner    Learner
	measure    Measure
	fixed      map[string]any
	numTrees   int
	numThreads int
}

//////
// Methods.
//////

// evaluate scores one configuration, returning the measure value and the
// wall-clock duration of the external calls. A failed learner or measure call
// is returned as an error, never as a sentinel score; the loop decides what
// to do with it.
func (e *objectiveEvaluator) evaluate(ctx context.Context, cfg Configuration) (score, elapsedSeconds float64, err error) {
	params := e.learnerParams(cfg)

	start := time.Now()

	model, err := e.learner.Train(ctx, params, e.task)
	if err != nil {
		return 0, 0, fmt.Errorf("train: %w", err)
	}

	preds, err := e.learner.OutOfBagPredictions(ctx, model, e.task)
	if err != nil {
		return 0, 0, fmt.Errorf("out-of-bag predictions: %w", err)
	}

	score, err = e.measure.Compute(preds)
	if err != nil {
		return 0, 0, fmt.Errorf("measure %s: %w", e.measure.ID(), err)
	}

	return score, time.Since(start).Seconds(), nil
}

// learnerParams builds the full parameter map for one learner call: each
// tuned dimension transformed and cast to its natural Go type, then the fixed
// parameters, then the structural settings.
func (e *objectiveEvaluator) learnerParams(cfg Configuration) map[string]any {
	params := make(map[string]any, e.space.Len()+len(e.fixed)+2)

	for _, spec := range e.space.Specs() {
		v := cfg[spec.Name]
		if spec.Transform != nil {
			v = spec.Transform(v)
		}

		switch spec.Kind {
		case KindInteger:
			params[spec.Name] = int(v)
		case KindBoolean:
			params[spec.Name] = v != 0
		default:
			if spec.Transform != nil {
				// Transforms map onto integer natural units.
				params[spec.Name] = int(v)
			} else {
				params[spec.Name] = v
			}
		}
	}

	for name, v := range e.fixed {
		params[name] = v
	}

	params["num.trees"] = e.numTrees
	params["num.threads"] = e.numThreads

	return params
}

// finalParams builds the learner parameters for the final refit from a
// decoded recommendation row. Decoded values are already in natural units, so
// no transform is applied.
func (e *objectiveEvaluator) finalParams(recommended map[string]any) map[string]any {
	params := make(map[string]any, len(recommended)+len(e.fixed)+2)

	for name, v := range recommended {
		params[name] = v
	}

	for name, v := range e.fixed {
		params[name] = v
	}

	params["num.trees"] = e.numTrees
	params["num.threads"] = e.numThreads

	return params
}

//////
// Factory.
//////

// newObjectiveEvaluator wires the evaluator with the run's collaborators.
func newObjectiveEvaluator(space *ParameterSpace, cfg Config, measure Measure) *objectiveEvaluator {
	return &objectiveEvaluator{
		space:      space,
		task:       cfg.Task,
		learner:    cfg.Learner,
		measure:    measure,
		fixed:      cfg.FixedParameters,
		numTrees:   cfg.NumTrees,
		numThreads: cfg.NumThreads,
	}
}
