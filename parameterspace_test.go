package foresttune

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSpacePreservesUniverseOrder(t *testing.T) {
	// Selection order must not matter; the universe declaration order does.
	space, err := BuildSpace(500, 8, []string{ParamReplace, ParamMtry, ParamSampleFraction}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{ParamMtry, ParamSampleFraction, ParamReplace}, space.Names())
}

func TestBuildSpaceFullUniverseByDefault(t *testing.T) {
	space, err := BuildSpace(500, 8, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		ParamMtry,
		ParamMinNodeSize,
		ParamSampleFraction,
		ParamReplace,
		ParamRespectUnorderedFactors,
	}, space.Names())
}

func TestBuildSpaceMtryBounds(t *testing.T) {
	space, err := BuildSpace(500, 4, []string{ParamMtry}, nil)
	require.NoError(t, err)

	spec, ok := space.Spec(ParamMtry)
	require.True(t, ok)
	assert.Equal(t, 1.0, spec.Lower)
	assert.Equal(t, 4.0, spec.Upper)
	assert.Equal(t, KindInteger, spec.Kind)
}

func TestBuildSpaceRejectsUnknownName(t *testing.T) {
	_, err := BuildSpace(500, 8, []string{"max.depth"}, nil)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "max.depth", cfgErr.Name)
}

func TestBuildSpaceRejectsFixedAndTuned(t *testing.T) {
	_, err := BuildSpace(500, 8,
		[]string{ParamMtry, ParamMinNodeSize},
		map[string]any{ParamMtry: 3})

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ParamMtry, cfgErr.Name)
}

func TestBuildSpaceRejectsZeroFeatureCount(t *testing.T) {
	_, err := BuildSpace(500, 0, []string{ParamMtry}, nil)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ParamMtry, cfgErr.Name)
}

func TestBuildSpaceRejectsNonPositiveDatasetSize(t *testing.T) {
	_, err := BuildSpace(0, 8, nil, nil)

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestNodeSizeTransformMonotoneAndPositive(t *testing.T) {
	for _, size := range []int{1, 3, 10, 200, 100000} {
		transform := nodeSizeTransform(size)

		prev := 0.0
		for i := 0; i <= 100; i++ {
			x := float64(i) / 100

			v := transform(x)

			assert.GreaterOrEqual(t, v, 1.0, "size %d x %v", size, x)
			assert.GreaterOrEqual(t, v, prev, "size %d x %v", size, x)
			assert.Equal(t, v, float64(int(v)), "size %d x %v", size, x)

			prev = v
		}
	}
}

func TestNodeSizeTransformAnchoredToDatasetSize(t *testing.T) {
	transform := nodeSizeTransform(1000)

	// x = 0 maps to the smallest node size, x = 1 to 20% of the dataset.
	assert.Equal(t, 1.0, transform(0))
	assert.InDelta(t, 200.0, transform(1), 1)
}

func TestUnitRoundTripStaysInBounds(t *testing.T) {
	space, err := BuildSpace(500, 8, nil, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		cfg := space.FromUnit(space.sampleUnit(rng))

		require.NoError(t, space.Validate(cfg))

		// Round-tripping through unit space reproduces the same raw values.
		again := space.FromUnit(space.ToUnit(cfg))
		assert.Equal(t, cfg, again)
	}
}

func TestValidateRejectsOutOfBounds(t *testing.T) {
	space, err := BuildSpace(500, 8, []string{ParamMtry, ParamSampleFraction}, nil)
	require.NoError(t, err)

	err = space.Validate(Configuration{ParamMtry: 9, ParamSampleFraction: 0.5})

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ParamMtry, cfgErr.Name)

	err = space.Validate(Configuration{ParamMtry: 3})
	assert.True(t, errors.As(err, &cfgErr))
}
