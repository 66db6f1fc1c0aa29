// Package catalog reads supplement catalogs and nutrient constraints from YAML files.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/supplement-planner/internal/solver"
)

// ErrInvalidCatalog is returned when a catalog entry fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Supplement is a catalog record. Ingredient amounts are per single unit.
type Supplement struct {
	ID          string              `yaml:"id" json:"id"`
	Name        string              `yaml:"name" json:"name"`
	Maker       string              `yaml:"maker,omitempty" json:"maker,omitempty"`
	Image       string              `yaml:"image,omitempty" json:"image,omitempty"`
	Ingredients []solver.Ingredient `yaml:"ingredients" json:"ingredients"`
}

// Option converts the record into the solver's input type.
func (s Supplement) Option() solver.Option {
	ingredients := make([]solver.Ingredient, len(s.Ingredients))
	copy(ingredients, s.Ingredients)
	return solver.Option{
		ID:          s.ID,
		Name:        s.Name,
		Ingredients: ingredients,
	}
}

// Requirement forces a minimum number of units of a supplement into every result.
type Requirement struct {
	SupplementID string `yaml:"supplement" json:"supplementId"`
	Amount       int    `yaml:"amount" json:"amount"`
}

// Catalog is the content of a catalog file.
type Catalog struct {
	Constraints  solver.Constraints `yaml:"constraints"`
	Supplements  []Supplement       `yaml:"supplements"`
	Requirements []Requirement      `yaml:"requirements"`
}

// Options returns the supplements as solver options, in file order.
func (c *Catalog) Options() []solver.Option {
	options := make([]solver.Option, len(c.Supplements))
	for i, s := range c.Supplements {
		options[i] = s.Option()
	}
	return options
}

// RequiredSupplements resolves the requirements against the supplements.
func (c *Catalog) RequiredSupplements() ([]solver.RequiredSupplement, error) {
	return Resolve(c.Requirements, c.Supplements)
}

// Resolve turns requirements into solver input, looking supplements up by id.
func Resolve(requirements []Requirement, supplements []Supplement) ([]solver.RequiredSupplement, error) {
	out := make([]solver.RequiredSupplement, 0, len(requirements))
	for _, req := range requirements {
		idx := slices.IndexFunc(supplements, func(s Supplement) bool { return s.ID == req.SupplementID })
		if idx < 0 {
			return nil, fmt.Errorf("%w: requirement references unknown supplement %q", ErrInvalidCatalog, req.SupplementID)
		}
		out = append(out, solver.RequiredSupplement{Option: supplements[idx].Option(), Amount: req.Amount})
	}
	return out, nil
}

// Find returns the supplement with the given id.
func (c *Catalog) Find(id string) (Supplement, bool) {
	for _, s := range c.Supplements {
		if s.ID == id {
			return s, true
		}
	}
	return Supplement{}, false
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if cat.Constraints == nil {
		cat.Constraints = solver.Constraints{}
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks every constraint and supplement of the catalog.
func (c *Catalog) Validate() error {
	for name, constraint := range c.Constraints {
		if err := ValidateConstraint(name, constraint); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(c.Supplements))
	for i, s := range c.Supplements {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("%w: supplement %d: id is required", ErrInvalidCatalog, i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: supplement %d: duplicate id %q", ErrInvalidCatalog, i, s.ID)
		}
		seen[s.ID] = struct{}{}

		if err := ValidateSupplement(s); err != nil {
			return fmt.Errorf("supplement %d: %w", i, err)
		}
	}

	for i, req := range c.Requirements {
		if _, ok := seen[req.SupplementID]; !ok {
			return fmt.Errorf("%w: requirement %d: unknown supplement %q", ErrInvalidCatalog, i, req.SupplementID)
		}
		if err := ValidateRequirement(req); err != nil {
			return fmt.Errorf("requirement %d: %w", i, err)
		}
	}
	return nil
}

// ValidateRequirement checks the amount of a requirement.
func ValidateRequirement(req Requirement) error {
	if req.Amount < 0 {
		return fmt.Errorf("%w: requirement amount must be >= 0, got %d", ErrInvalidCatalog, req.Amount)
	}
	return nil
}

// ValidateSupplement checks a single supplement record. The id is not checked.
func ValidateSupplement(s Supplement) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: supplement name is required", ErrInvalidCatalog)
	}
	for j, ing := range s.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return fmt.Errorf("%w: ingredient %d: name is required", ErrInvalidCatalog, j)
		}
		if !isAmount(ing.Amount) {
			return fmt.Errorf("%w: ingredient %q: amount must be a finite non-negative number, got %v", ErrInvalidCatalog, ing.Name, ing.Amount)
		}
	}
	return nil
}

// ValidateConstraint checks a single named constraint.
func ValidateConstraint(name string, c solver.Constraint) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: constraint name is required", ErrInvalidCatalog)
	}
	if !isAmount(c.Target) || !isAmount(c.Max) {
		return fmt.Errorf("%w: constraint %q: target and max must be finite non-negative numbers", ErrInvalidCatalog, name)
	}
	return nil
}

func isAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
