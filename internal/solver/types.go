package solver

import "context"

// Constraint bounds the aggregated amount of a single component.
type Constraint struct {
	Target float64 `json:"target" yaml:"target"`
	Max    float64 `json:"max" yaml:"max"`
}

// Constraints maps a component key to its constraint. Components missing from
// the map are unconstrained.
type Constraints map[string]Constraint

// Ingredient is the amount of one component contributed by a single unit of an option.
type Ingredient struct {
	Name   string  `json:"name" yaml:"name"`
	Amount float64 `json:"amount" yaml:"amount"`
}

// Option is a catalog item with a fixed per-unit composition.
type Option struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name,omitempty" yaml:"name"`
	Ingredients []Ingredient `json:"ingredients" yaml:"ingredients"`
}

// RequiredSupplement forces at least Amount units of Option into every accepted combination.
type RequiredSupplement struct {
	Option Option
	Amount int
}

// Entry pairs an option with the number of units selected.
type Entry struct {
	Count  int
	Option Option
}

// Combination holds one entry per input option, in input order.
type Combination []Entry

// Result is a feasible combination together with its ranking keys.
type Result struct {
	Supplements         Combination
	Distance            float64
	NumberOfSupplements int
	Constraints         Constraints
}

// Solver describes the behaviour required from a combination solver.
type Solver interface {
	Solve(ctx context.Context, constraints Constraints, options []Option, required ...RequiredSupplement) ([]Result, error)
	SolveTop(ctx context.Context, n int, constraints Constraints, options []Option, required ...RequiredSupplement) ([]Result, int, error)
}
