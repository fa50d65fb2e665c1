package foresttune

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

//////
// Result summarization.
//////

// defaultQuantile is the share of the log the recommendation is aggregated
// over: the best-scoring 5 percent, with a floor of one observation.
const defaultQuantile = 0.05

// Summarize post-processes a complete evaluation log into a TuningResult:
// the per-iteration results table plus a single recommended configuration
// aggregated over the best-scoring tail.
//
// Selection takes the ceil(quantile·n) best observations, lowest scores when
// the measure is minimized, highest otherwise. Numeric columns aggregate by
// arithmetic mean (rounded for integer-natured columns), boolean columns by
// mode with ties broken by the first value encountered in log order.
// Transformed columns are decoded to natural units before they are reported.
func Summarize(space *ParameterSpace, log []Observation, measureID string, minimize bool, quantile float64) *TuningResult {
	if quantile <= 0 || quantile > 1 {
		quantile = defaultQuantile
	}

	names := space.Names()

	columns := append(append([]string(nil), names...), measureID, "exec.time")

	result := &TuningResult{Columns: columns}

	for _, obs := range log {
		result.FullResults = append(result.FullResults, ResultRow{
			Values:         decodeConfig(space, obs.Config),
			Score:          obs.Score,
			ElapsedSeconds: obs.ElapsedSeconds,
		})
	}

	if len(log) == 0 {
		return result
	}

	selected := selectTail(log, minimize, quantile)

	values := make(map[string]any, len(names))

	for _, spec := range space.Specs() {
		switch spec.Kind {
		case KindBoolean:
			values[spec.Name] = aggregateMode(selected, spec)
		default:
			values[spec.Name] = aggregateMean(selected, spec)
		}
	}

	scores := make([]float64, len(selected))
	times := make([]float64, len(selected))

	for i, obs := range selected {
		scores[i] = obs.Score
		times[i] = obs.ElapsedSeconds
	}

	result.Recommended = ResultRow{
		Values:         values,
		Score:          stat.Mean(scores, nil),
		ElapsedSeconds: stat.Mean(times, nil),
	}

	return result
}

//////
// Internal.
//////

// selectTail returns the best ceil(quantile·n) observations in log order.
func selectTail(log []Observation, minimize bool, quantile float64) []Observation {
	k := int(math.Ceil(quantile * float64(len(log))))
	k = clamp(k, 1, len(log))

	order := make([]int, len(log))
	for i := range order {
		order[i] = i
	}

	// Stable so that equal scores keep log order.
	sort.SliceStable(order, func(a, b int) bool {
		if minimize {
			return log[order[a]].Score < log[order[b]].Score
		}

		return log[order[a]].Score > log[order[b]].Score
	})

	picked := append([]int(nil), order[:k]...)
	sort.Ints(picked)

	selected := make([]Observation, k)
	for i, idx := range picked {
		selected[i] = log[idx]
	}

	return selected
}

// decodeConfig maps raw values to their reported natural units: transforms
// applied, integer kinds as int, booleans as bool.
func decodeConfig(space *ParameterSpace, cfg Configuration) map[string]any {
	values := make(map[string]any, space.Len())

	for _, spec := range space.Specs() {
		values[spec.Name] = decodeValue(spec, cfg[spec.Name])
	}

	return values
}

func decodeValue(spec ParameterSpec, raw float64) any {
	if spec.Transform != nil {
		return int(spec.Transform(raw))
	}

	switch spec.Kind {
	case KindInteger:
		return int(raw)
	case KindBoolean:
		return raw != 0
	default:
		return raw
	}
}

// aggregateMean averages the decoded column, rounding when the natural unit
// is an integer.
func aggregateMean(selected []Observation, spec ParameterSpec) any {
	var sum float64

	for _, obs := range selected {
		v := obs.Config[spec.Name]
		if spec.Transform != nil {
			v = spec.Transform(v)
		}

		sum += v
	}

	mean := sum / float64(len(selected))

	if spec.Kind == KindInteger || spec.Transform != nil {
		return int(math.Round(mean))
	}

	return mean
}

// aggregateMode returns the most frequent boolean level, ties broken by the
// level seen first in log order.
func aggregateMode(selected []Observation, spec ParameterSpec) bool {
	counts := [2]int{}
	first := -1

	for _, obs := range selected {
		level := 0
		if obs.Config[spec.Name] != 0 {
			level = 1
		}

		if first == -1 {
			first = level
		}

		counts[level]++
	}

	if counts[0] == counts[1] {
		return first == 1
	}

	return counts[1] > counts[0]
}
