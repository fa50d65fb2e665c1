package foresttune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binaryPredictions() *Predictions {
	return &Predictions{
		Probabilities: [][]float64{{0.8, 0.2}, {0.3, 0.7}, {0.1, 0.9}},
		Classes:       []int{0, 1, 1},
		ClassLevels:   []string{"neg", "pos"},
	}
}

func TestBrierScore(t *testing.T) {
	score, err := BrierScore{}.Compute(binaryPredictions())
	require.NoError(t, err)

	// ((0.2-0)^2 + (0.7-1)^2 + (0.9-1)^2) / 3
	assert.InDelta(t, (0.04+0.09+0.01)/3, score, 1e-12)
	assert.True(t, BrierScore{}.Minimize())
}

func TestBrierScorePerfectClassifier(t *testing.T) {
	p := &Predictions{
		Probabilities: [][]float64{{1, 0}, {0, 1}},
		Classes:       []int{0, 1},
	}

	score, err := BrierScore{}.Compute(p)
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestMulticlassBrierScore(t *testing.T) {
	p := &Predictions{
		Probabilities: [][]float64{{1, 0, 0}, {0.2, 0.5, 0.3}},
		Classes:       []int{0, 1},
		ClassLevels:   []string{"a", "b", "c"},
	}

	score, err := MulticlassBrierScore{}.Compute(p)
	require.NoError(t, err)

	// Row 1 is perfect; row 2 contributes 0.04 + 0.25 + 0.09.
	assert.InDelta(t, (0+0.38)/2, score, 1e-12)
}

func TestLogLossFloorsHardZeros(t *testing.T) {
	p := &Predictions{
		Probabilities: [][]float64{{1, 0}},
		Classes:       []int{1},
	}

	score, err := LogLoss{}.Compute(p)
	require.NoError(t, err)
	assert.False(t, score != score, "score must not be NaN")
	assert.Greater(t, score, 30.0)
}

func TestAccuracy(t *testing.T) {
	score, err := Accuracy{}.Compute(binaryPredictions())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, score, 1e-12)
	assert.False(t, Accuracy{}.Minimize())
}

func TestMeanSquaredError(t *testing.T) {
	p := &Predictions{Predicted: []float64{2, 4}, Actual: []float64{0, 5}}

	score, err := MeanSquaredError{}.Compute(p)
	require.NoError(t, err)
	assert.InDelta(t, (4.0+1.0)/2, score, 1e-12)
}

func TestMeanAbsoluteError(t *testing.T) {
	p := &Predictions{Predicted: []float64{2, 4}, Actual: []float64{0, 5}}

	score, err := MeanAbsoluteError{}.Compute(p)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, score, 1e-12)
}

func TestMeasuresRejectMalformedPredictions(t *testing.T) {
	_, err := BrierScore{}.Compute(&Predictions{})
	assert.Error(t, err)

	_, err = BrierScore{}.Compute(&Predictions{
		Probabilities: [][]float64{{0.5, 0.5}},
		Classes:       []int{4},
	})
	assert.Error(t, err)

	_, err = MeanSquaredError{}.Compute(&Predictions{Predicted: []float64{1}})
	assert.Error(t, err)
}

func TestDefaultMeasureByTaskType(t *testing.T) {
	binary := Task{Type: TaskClassification, ClassLevels: []string{"neg", "pos"}}
	multi := Task{Type: TaskClassification, ClassLevels: []string{"a", "b", "c"}}
	regr := Task{Type: TaskRegression}

	m, err := DefaultMeasure(binary)
	require.NoError(t, err)
	assert.Equal(t, "brier", m.ID())

	m, err = DefaultMeasure(multi)
	require.NoError(t, err)
	assert.Equal(t, "multiclass.brier", m.ID())

	m, err = DefaultMeasure(regr)
	require.NoError(t, err)
	assert.Equal(t, "mse", m.ID())
}

func TestDefaultMeasureRejectsBadTasks(t *testing.T) {
	_, err := DefaultMeasure(Task{Type: TaskClassification})
	assert.Error(t, err)

	_, err = DefaultMeasure(Task{Type: TaskType("clustering")})
	assert.Error(t, err)
}
