package storage

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/eugenenazirov/supplement-planner/internal/catalog"
	"github.com/eugenenazirov/supplement-planner/internal/solver"
)

var (
	// ErrInvalidSupplement indicates a supplement record violates validation rules.
	ErrInvalidSupplement = errors.New("invalid supplement")
	// ErrInvalidConstraint indicates a constraint violates validation rules.
	ErrInvalidConstraint = errors.New("invalid constraint")
	// ErrInvalidRequirement indicates a requirement violates validation rules.
	ErrInvalidRequirement = errors.New("invalid requirement")
	// ErrNotFound is returned when a supplement or constraint does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a supplement whose id is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// Storage provides access to the supplement catalog, the nutrient constraints
// and the minimum-inclusion requirements.
type Storage interface {
	ListSupplements() ([]catalog.Supplement, error)
	GetSupplement(id string) (catalog.Supplement, error)
	CreateSupplement(s catalog.Supplement) (catalog.Supplement, error)
	SaveSupplement(s catalog.Supplement) (catalog.Supplement, error)
	DeleteSupplement(id string) error

	ListConstraints() (solver.Constraints, error)
	SetConstraint(name string, c solver.Constraint) error
	DeleteConstraint(name string) error

	ListRequirements() ([]catalog.Requirement, error)
	SetRequirement(req catalog.Requirement) error
	DeleteRequirement(supplementID string) error
}

// MemoryStorage keeps the catalog in-memory and guards access with a RWMutex.
// Supplements keep insertion order.
type MemoryStorage struct {
	mu           sync.RWMutex
	supplements  []catalog.Supplement
	constraints  solver.Constraints
	requirements []catalog.Requirement
	newID        func() string
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		constraints: solver.Constraints{},
		newID:       uuid.NewString,
	}
}

// Seed replaces the store content with the catalog.
func (s *MemoryStorage) Seed(cat *catalog.Catalog) error {
	if cat == nil {
		return nil
	}
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	supplements := make([]catalog.Supplement, len(cat.Supplements))
	for i, sup := range cat.Supplements {
		supplements[i] = cloneSupplement(sup)
	}

	s.mu.Lock()
	s.supplements = supplements
	s.constraints = maps.Clone(cat.Constraints)
	if s.constraints == nil {
		s.constraints = solver.Constraints{}
	}
	s.requirements = slices.Clone(cat.Requirements)
	s.mu.Unlock()

	return nil
}

// ListSupplements returns a defensive copy of all supplements in insertion order.
func (s *MemoryStorage) ListSupplements() ([]catalog.Supplement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Supplement, len(s.supplements))
	for i, sup := range s.supplements {
		out[i] = cloneSupplement(sup)
	}
	return out, nil
}

// GetSupplement returns the supplement with the given id.
func (s *MemoryStorage) GetSupplement(id string) (catalog.Supplement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return catalog.Supplement{}, fmt.Errorf("supplement %q: %w", id, ErrNotFound)
	}
	return cloneSupplement(s.supplements[idx]), nil
}

// CreateSupplement validates and appends a new supplement. A supplement
// without an id gets a fresh UUID. An id already in the store is rejected with
// ErrAlreadyExists.
func (s *MemoryStorage) CreateSupplement(sup catalog.Supplement) (catalog.Supplement, error) {
	sup, err := prepareSupplement(sup)
	if err != nil {
		return catalog.Supplement{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sup.ID == "" {
		sup.ID = s.newID()
	}
	if s.indexOf(sup.ID) >= 0 {
		return catalog.Supplement{}, fmt.Errorf("supplement %q: %w", sup.ID, ErrAlreadyExists)
	}
	s.supplements = append(s.supplements, sup)
	return cloneSupplement(sup), nil
}

// SaveSupplement validates and stores a supplement. A supplement without an id
// gets a fresh UUID; an existing id is replaced in place.
func (s *MemoryStorage) SaveSupplement(sup catalog.Supplement) (catalog.Supplement, error) {
	sup, err := prepareSupplement(sup)
	if err != nil {
		return catalog.Supplement{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sup.ID == "" {
		sup.ID = s.newID()
	}
	if idx := s.indexOf(sup.ID); idx >= 0 {
		s.supplements[idx] = sup
	} else {
		s.supplements = append(s.supplements, sup)
	}
	return cloneSupplement(sup), nil
}

func prepareSupplement(sup catalog.Supplement) (catalog.Supplement, error) {
	sup = cloneSupplement(sup)
	sup.ID = strings.TrimSpace(sup.ID)
	if err := catalog.ValidateSupplement(sup); err != nil {
		return catalog.Supplement{}, fmt.Errorf("%w: %w", ErrInvalidSupplement, err)
	}
	return sup, nil
}

// DeleteSupplement removes the supplement with the given id.
func (s *MemoryStorage) DeleteSupplement(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("supplement %q: %w", id, ErrNotFound)
	}
	s.supplements = slices.Delete(s.supplements, idx, idx+1)
	s.requirements = slices.DeleteFunc(s.requirements, func(req catalog.Requirement) bool {
		return req.SupplementID == id
	})
	return nil
}

// ListConstraints returns a copy of the constraint map.
func (s *MemoryStorage) ListConstraints() (solver.Constraints, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.constraints), nil
}

// SetConstraint validates and stores the constraint for a component.
func (s *MemoryStorage) SetConstraint(name string, c solver.Constraint) error {
	name = strings.TrimSpace(name)
	if err := catalog.ValidateConstraint(name, c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConstraint, err)
	}

	s.mu.Lock()
	s.constraints[name] = c
	s.mu.Unlock()

	return nil
}

// DeleteConstraint removes the constraint for a component.
func (s *MemoryStorage) DeleteConstraint(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.constraints[name]; !ok {
		return fmt.Errorf("constraint %q: %w", name, ErrNotFound)
	}
	delete(s.constraints, name)
	return nil
}

// ListRequirements returns a copy of the stored requirements.
func (s *MemoryStorage) ListRequirements() ([]catalog.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]catalog.Requirement, len(s.requirements))
	copy(out, s.requirements)
	return out, nil
}

// SetRequirement stores the minimum amount for an existing supplement,
// replacing a previous requirement for the same supplement.
func (s *MemoryStorage) SetRequirement(req catalog.Requirement) error {
	if err := catalog.ValidateRequirement(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequirement, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(req.SupplementID) < 0 {
		return fmt.Errorf("supplement %q: %w", req.SupplementID, ErrNotFound)
	}
	idx := slices.IndexFunc(s.requirements, func(r catalog.Requirement) bool {
		return r.SupplementID == req.SupplementID
	})
	if idx >= 0 {
		s.requirements[idx] = req
	} else {
		s.requirements = append(s.requirements, req)
	}
	return nil
}

// DeleteRequirement removes the requirement for a supplement.
func (s *MemoryStorage) DeleteRequirement(supplementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.requirements)
	s.requirements = slices.DeleteFunc(s.requirements, func(r catalog.Requirement) bool {
		return r.SupplementID == supplementID
	})
	if len(s.requirements) == before {
		return fmt.Errorf("requirement for %q: %w", supplementID, ErrNotFound)
	}
	return nil
}

func (s *MemoryStorage) indexOf(id string) int {
	return slices.IndexFunc(s.supplements, func(sup catalog.Supplement) bool {
		return sup.ID == id
	})
}

func cloneSupplement(src catalog.Supplement) catalog.Supplement {
	src.Ingredients = slices.Clone(src.Ingredients)
	return src
}
