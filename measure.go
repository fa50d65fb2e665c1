package foresttune

import (
	"errors"
	"fmt"
	"math"
)

//////
// Built-in performance measures.
//
// Each measure reduces a set of out-of-bag predictions to one scalar. The
// defaults mirror the standard choices for probability forests: Brier score
// for binary classification, its multiclass generalization otherwise, and
// mean squared error for regression.
//////

// BrierScore is the mean squared error of the positive-class probability for
// binary classification. Minimized; 0 is a perfect probabilistic classifier.
type BrierScore struct{}

// ID implements Measure.
func (BrierScore) ID() string { return "brier" }

// Minimize implements Measure.
func (BrierScore) Minimize() bool { return true }

// Compute implements Measure. The positive class is the second probability
// column.
func (BrierScore) Compute(p *Predictions) (float64, error) {
	if err := checkClassification(p, 2); err != nil {
		return 0, err
	}

	var sum float64

	for i, row := range p.Probabilities {
		truth := 0.0
		if p.Classes[i] == 1 {
			truth = 1.0
		}

		diff := row[1] - truth

		sum += diff * diff
	}

	return sum / float64(len(p.Probabilities)), nil
}

// MulticlassBrierScore generalizes the Brier score to any number of classes:
// the mean over observations of the squared distance between the probability
// row and the one-hot truth. Minimized.
type MulticlassBrierScore struct{}

// ID implements Measure.
func (MulticlassBrierScore) ID() string { return "multiclass.brier" }

// Minimize implements Measure.
func (MulticlassBrierScore) Minimize() bool { return true }

// Compute implements Measure.
func (MulticlassBrierScore) Compute(p *Predictions) (float64, error) {
	if err := checkClassification(p, 2); err != nil {
		return 0, err
	}

	var sum float64

	for i, row := range p.Probabilities {
		for k, prob := range row {
			truth := 0.0
			if p.Classes[i] == k {
				truth = 1.0
			}

			diff := prob - truth

			sum += diff * diff
		}
	}

	return sum / float64(len(p.Probabilities)), nil
}

// LogLoss is the mean negative log probability assigned to the true class.
// Probabilities are floored at a small epsilon so a single hard zero cannot
// produce an infinite score. Minimized.
type LogLoss struct{}

// ID implements Measure.
func (LogLoss) ID() string { return "logloss" }

// Minimize implements Measure.
func (LogLoss) Minimize() bool { return true }

// Compute implements Measure.
func (LogLoss) Compute(p *Predictions) (float64, error) {
	if err := checkClassification(p, 2); err != nil {
		return 0, err
	}

	const eps = 1e-15

	var sum float64

	for i, row := range p.Probabilities {
		sum -= math.Log(math.Max(row[p.Classes[i]], eps))
	}

	return sum / float64(len(p.Probabilities)), nil
}

// Accuracy is the fraction of observations whose most probable class matches
// the truth. Maximized.
type Accuracy struct{}

// ID implements Measure.
func (Accuracy) ID() string { return "accuracy" }

// Minimize implements Measure.
func (Accuracy) Minimize() bool { return false }

// Compute implements Measure.
func (Accuracy) Compute(p *Predictions) (float64, error) {
	if err := checkClassification(p, 2); err != nil {
		return 0, err
	}

	var hits int

	for i, row := range p.Probabilities {
		argmax := 0
		for k, prob := range row {
			if prob > row[argmax] {
				argmax = k
			}
		}

		if argmax == p.Classes[i] {
			hits++
		}
	}

	return float64(hits) / float64(len(p.Probabilities)), nil
}

// MeanSquaredError is the mean squared difference between predicted and
// actual values for regression. Minimized.
type MeanSquaredError struct{}

// ID implements Measure.
func (MeanSquaredError) ID() string { return "mse" }

// Minimize implements Measure.
func (MeanSquaredError) Minimize() bool { return true }

// Compute implements Measure.
func (MeanSquaredError) Compute(p *Predictions) (float64, error) {
	if err := checkRegression(p); err != nil {
		return 0, err
	}

	var sum float64

	for i, pred := range p.Predicted {
		diff := pred - p.Actual[i]

		sum += diff * diff
	}

	return sum / float64(len(p.Predicted)), nil
}

// MeanAbsoluteError is the mean absolute difference between predicted and
// actual values for regression. Minimized.
type MeanAbsoluteError struct{}

// ID implements Measure.
func (MeanAbsoluteError) ID() string { return "mae" }

// Minimize implements Measure.
func (MeanAbsoluteError) Minimize() bool { return true }

// Compute implements Measure.
func (MeanAbsoluteError) Compute(p *Predictions) (float64, error) {
	if err := checkRegression(p); err != nil {
		return 0, err
	}

	var sum float64

	for i, pred := range p.Predicted {
		sum += math.Abs(pred - p.Actual[i])
	}

	return sum / float64(len(p.Predicted)), nil
}

//////
// Exported functionalities.
//////

// DefaultMeasure selects the measure for a task when the caller supplies
// none. The choice is a tagged switch over the task type: binary
// classification gets the Brier score, multiclass its generalization,
// regression mean squared error.
func DefaultMeasure(task Task) (Measure, error) {
	switch task.Type {
	case TaskClassification:
		switch {
		case len(task.ClassLevels) < 2:
			return nil, &ConfigurationError{Reason: fmt.Sprintf("classification task needs at least 2 class levels, got %d", len(task.ClassLevels))}
		case len(task.ClassLevels) == 2:
			return BrierScore{}, nil
		default:
			return MulticlassBrierScore{}, nil
		}
	case TaskRegression:
		return MeanSquaredError{}, nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown task type %q", task.Type)}
	}
}

//////
// Internal.
//////

func checkClassification(p *Predictions, minClasses int) error {
	if len(p.Probabilities) == 0 {
		return errors.New("no probability predictions")
	}

	if len(p.Classes) != len(p.Probabilities) {
		return errors.New("probability rows and true classes are misaligned")
	}

	for i, row := range p.Probabilities {
		if len(row) < minClasses {
			return fmt.Errorf("probability row %d has %d columns, need at least %d", i, len(row), minClasses)
		}

		if p.Classes[i] < 0 || p.Classes[i] >= len(row) {
			return fmt.Errorf("true class %d out of range for row %d", p.Classes[i], i)
		}
	}

	return nil
}

func checkRegression(p *Predictions) error {
	if len(p.Predicted) == 0 {
		return errors.New("no predictions")
	}

	if len(p.Actual) != len(p.Predicted) {
		return errors.New("predicted and actual values are misaligned")
	}

	return nil
}
