package solver

import "math"

// DefaultCap is the upper bound used for options that no constraint limits.
const DefaultCap = 100

// MaximumCount returns the largest number of units of option that keeps every
// constrained component at or below its max when the option is taken alone.
// Options without a limiting ingredient are capped at defaultCap.
func MaximumCount(option Option, constraints Constraints, defaultCap int) int {
	bound := -1
	for _, ingredient := range option.Ingredients {
		constraint, ok := constraints[ingredient.Name]
		if !ok || ingredient.Amount <= 0 {
			continue
		}
		count := clampCount(math.Floor(constraint.Max / ingredient.Amount))
		if bound < 0 || count < bound {
			bound = count
		}
	}

	if bound < 0 {
		return max(defaultCap, 0)
	}
	return bound
}

func boundsFor(options []Option, constraints Constraints, defaultCap int) []int {
	bounds := make([]int, len(options))
	for i, option := range options {
		bounds[i] = MaximumCount(option, constraints, defaultCap)
	}
	return bounds
}

func clampCount(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	default:
		return int(v)
	}
}
