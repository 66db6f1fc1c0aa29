package solver

import (
	"cmp"
	"maps"
	"math"
	"slices"
)

// Score holds the ranking keys of a combination.
type Score struct {
	Distance            float64
	NumberOfSupplements int
}

// ScoreCombination measures how far combination lands from the targets. The
// distance is the sum of relative deviations |amount-target|/target over the
// components that have a positive target; components are visited in sorted
// key order so equal inputs always produce bit-identical distances.
func ScoreCombination(combination Combination, constraints Constraints) Score {
	return scoreAmounts(CalculateAmounts(combination), combination, constraints)
}

func scoreAmounts(amounts map[string]float64, combination Combination, constraints Constraints) Score {
	var score Score
	for _, key := range slices.Sorted(maps.Keys(amounts)) {
		constraint, ok := constraints[key]
		if !ok || constraint.Target <= 0 {
			continue
		}
		score.Distance += math.Abs(amounts[key]-constraint.Target) / constraint.Target
	}
	for _, entry := range combination {
		score.NumberOfSupplements += entry.Count
	}
	return score
}

// CompareResults orders results by ascending distance, then by ascending unit count.
func CompareResults(a, b Result) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	return cmp.Compare(a.NumberOfSupplements, b.NumberOfSupplements)
}

// SortResults sorts results in place. Exact ties keep their enumeration order.
func SortResults(results []Result) {
	slices.SortStableFunc(results, CompareResults)
}
