package solver

// CalculateAmounts sums the contribution of every selected unit per component.
// Entries and ingredients are visited in order, so the floating point result is
// reproducible for a given combination.
func CalculateAmounts(combination Combination) map[string]float64 {
	amounts := make(map[string]float64)
	for _, entry := range combination {
		for _, ingredient := range entry.Option.Ingredients {
			amounts[ingredient.Name] += ingredient.Amount * float64(entry.Count)
		}
	}
	return amounts
}

// AmountsExceedConstraints reports whether any constrained component is above its max.
// Components present on only one side never count as a violation.
func AmountsExceedConstraints(amounts map[string]float64, constraints Constraints) bool {
	for key, value := range amounts {
		if constraint, ok := constraints[key]; ok && value > constraint.Max {
			return true
		}
	}
	return false
}

// SatisfiesRequirements reports whether combination holds at least the required
// number of units of every required option. Options are matched by ID.
func SatisfiesRequirements(combination Combination, requirements []RequiredSupplement) bool {
	for _, req := range requirements {
		satisfied := false
		for _, entry := range combination {
			if entry.Option.ID == req.Option.ID && entry.Count >= req.Amount {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}
