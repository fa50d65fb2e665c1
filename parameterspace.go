package foresttune

import (
	"fmt"
	"math"
	"math/rand"
)

//////
// Const, vars, types.
//////

// Names of the supported tunable dimensions. The declaration order of the
// universe is fixed; tabular output always follows it regardless of the order
// the caller selects dimensions in.
const (
	// ParamMtry is the number of candidate features per split.
	ParamMtry = "mtry"

	// ParamMinNodeSize is the minimal terminal node size, tuned on a unit
	// interval and mapped through a dataset-size-anchored exponential
	// transform.
	ParamMinNodeSize = "min.node.size"

	// ParamSampleFraction is the fraction of observations sampled per tree.
	ParamSampleFraction = "sample.fraction"

	// ParamReplace selects sampling with replacement.
	ParamReplace = "replace"

	// ParamRespectUnorderedFactors selects unordered-factor splitting.
	ParamRespectUnorderedFactors = "respect.unordered.factors"
)

// universeOrder fixes the declaration order of the supported dimensions.
var universeOrder = []string{
	ParamMtry,
	ParamMinNodeSize,
	ParamSampleFraction,
	ParamReplace,
	ParamRespectUnorderedFactors,
}

// ParameterSpace is an ordered set of ParameterSpecs with unique names. The
// active set of a run is a caller-selected subset of the supported universe;
// selection preserves universe declaration order so columnar output is
// reproducible.
type ParameterSpace struct {
	specs []ParameterSpec
	index map[string]int
}

//////
// Exported functionalities.
//////

// BuildSpace constructs the active parameter space for one tuning run.
//
// datasetSize and featureCount anchor the dimension bounds and the node-size
// transform; selected names the tuned dimensions (nil or empty selects the
// full universe); fixed holds the caller's fixed learner parameters, which are
// only inspected for collisions here.
//
// Returns a ConfigurationError when a selected name is not in the supported
// universe, when a name is simultaneously fixed and tuned, when datasetSize is
// not positive, or when mtry is selected with a non-positive featureCount.
func BuildSpace(datasetSize, featureCount int, selected []string, fixed map[string]any) (*ParameterSpace, error) {
	if datasetSize < 1 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("dataset size must be positive, got %d", datasetSize)}
	}

	if len(selected) == 0 {
		selected = universeOrder
	}

	universe := buildUniverse(datasetSize, featureCount)

	// A parameter cannot be simultaneously fixed and tuned. Checked before
	// anything else so the error names the offending parameter.
	chosen := make(map[string]bool, len(selected))

	for _, name := range selected {
		if _, ok := universe[name]; !ok {
			return nil, &ConfigurationError{Name: name, Reason: "not a supported tunable parameter"}
		}

		if chosen[name] {
			return nil, &ConfigurationError{Name: name, Reason: "selected more than once"}
		}

		if _, ok := fixed[name]; ok {
			return nil, &ConfigurationError{Name: name, Reason: "cannot be both fixed and tuned"}
		}

		chosen[name] = true
	}

	if chosen[ParamMtry] && featureCount < 1 {
		return nil, &ConfigurationError{Name: ParamMtry, Reason: fmt.Sprintf("requires a positive feature count, got %d", featureCount)}
	}

	space := &ParameterSpace{index: make(map[string]int)}

	// Universe declaration order, not selection order.
	for _, name := range universeOrder {
		if !chosen[name] {
			continue
		}

		spec := universe[name]

		if math.IsInf(spec.Lower, 0) || math.IsInf(spec.Upper, 0) ||
			math.IsNaN(spec.Lower) || math.IsNaN(spec.Upper) || spec.Lower > spec.Upper {
			return nil, &ConfigurationError{Name: name, Reason: fmt.Sprintf("bounds [%v, %v] are not finite and ordered", spec.Lower, spec.Upper)}
		}

		space.index[name] = len(space.specs)
		space.specs = append(space.specs, spec)
	}

	return space, nil
}

//////
// Methods.
//////

// Len returns the number of active dimensions.
func (s *ParameterSpace) Len() int { return len(s.specs) }

// Specs returns the active dimensions in declaration order.
func (s *ParameterSpace) Specs() []ParameterSpec { return s.specs }

// Names returns the active dimension names in declaration order.
func (s *ParameterSpace) Names() []string {
	names := make([]string, len(s.specs))
	for i, spec := range s.specs {
		names[i] = spec.Name
	}

	return names
}

// Spec returns the named dimension and whether it is active.
func (s *ParameterSpace) Spec(name string) (ParameterSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return ParameterSpec{}, false
	}

	return s.specs[i], true
}

// Validate checks that cfg assigns every active dimension a value of the
// right kind inside its bounds.
func (s *ParameterSpace) Validate(cfg Configuration) error {
	for _, spec := range s.specs {
		v, ok := cfg[spec.Name]
		if !ok {
			return &ConfigurationError{Name: spec.Name, Reason: "missing from configuration"}
		}

		if v < spec.Lower || v > spec.Upper {
			return &ConfigurationError{Name: spec.Name, Reason: fmt.Sprintf("value %v outside bounds [%v, %v]", v, spec.Lower, spec.Upper)}
		}

		if spec.Kind != KindContinuous && v != math.Trunc(v) {
			return &ConfigurationError{Name: spec.Name, Reason: fmt.Sprintf("%s dimension holds non-integral value %v", spec.Kind, v)}
		}
	}

	return nil
}

// ToUnit maps a configuration onto the unit hypercube: each dimension scaled
// to [0, 1] by its bounds, booleans as their 0/1 level. This is the space the
// surrogate and the infill search operate in.
func (s *ParameterSpace) ToUnit(cfg Configuration) []float64 {
	u := make([]float64, len(s.specs))

	for i, spec := range s.specs {
		if spec.Upper == spec.Lower {
			u[i] = 0

			continue
		}

		u[i] = (cfg[spec.Name] - spec.Lower) / (spec.Upper - spec.Lower)
	}

	return u
}

// FromUnit maps a unit-hypercube point back to a raw configuration, rounding
// integer dimensions and thresholding booleans at 0.5. The result always lies
// within the declared bounds.
func (s *ParameterSpace) FromUnit(u []float64) Configuration {
	cfg := make(Configuration, len(s.specs))

	for i, spec := range s.specs {
		x := clamp(u[i], 0, 1)
		v := spec.Lower + x*(spec.Upper-spec.Lower)

		switch spec.Kind {
		case KindInteger:
			v = clamp(math.Round(v), spec.Lower, spec.Upper)
		case KindBoolean:
			if x < 0.5 {
				v = 0
			} else {
				v = 1
			}
		}

		cfg[spec.Name] = v
	}

	return cfg
}

// sampleUnit draws one uniform point from the unit hypercube.
func (s *ParameterSpace) sampleUnit(rng *rand.Rand) []float64 {
	u := make([]float64, len(s.specs))
	for i := range u {
		u[i] = rng.Float64()
	}

	return u
}

//////
// Internal.
//////

// buildUniverse declares the supported dimensions with bounds anchored to the
// dataset at hand.
func buildUniverse(datasetSize, featureCount int) map[string]ParameterSpec {
	return map[string]ParameterSpec{
		ParamMtry: {
			Name:    ParamMtry,
			Kind:    KindInteger,
			Lower:   1,
			Upper:   float64(featureCount),
			Default: math.Max(1, math.Floor(math.Sqrt(float64(featureCount)))),
		},
		ParamMinNodeSize: {
			Name:      ParamMinNodeSize,
			Kind:      KindContinuous,
			Lower:     0,
			Upper:     1,
			Default:   0,
			Transform: nodeSizeTransform(datasetSize),
		},
		ParamSampleFraction: {
			Name:    ParamSampleFraction,
			Kind:    KindContinuous,
			Lower:   0.22,
			Upper:   1,
			Default: 1,
		},
		ParamReplace: {
			Name:    ParamReplace,
			Kind:    KindBoolean,
			Lower:   0,
			Upper:   1,
			Default: 1,
		},
		ParamRespectUnorderedFactors: {
			Name:    ParamRespectUnorderedFactors,
			Kind:    KindBoolean,
			Lower:   0,
			Upper:   1,
			Default: 0,
		},
	}
}

// nodeSizeTransform maps the unit-interval raw value onto an integer node
// size anchored to the dataset size:
//
//	t(x) = ceil(2^(log2(0.2·n) · x))
//
// The exponent is floored at zero so the mapping stays monotonically
// non-decreasing for tiny datasets, and t(x) >= 1 always holds.
func nodeSizeTransform(datasetSize int) func(float64) float64 {
	exponent := math.Max(0, math.Log2(0.2*float64(datasetSize)))

	return func(raw float64) float64 {
		return math.Ceil(math.Pow(2, exponent*raw))
	}
}
