package solver

import (
	"context"
	"runtime"
	"slices"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// minChunkSize keeps small searches on a single goroutine.
	minChunkSize = 4096
	// chunksPerWorker gives the pool room to balance uneven chunks.
	chunksPerWorker = 4
	// cancelCheckInterval is how many combinations are evaluated between context checks.
	cancelCheckInterval = 1024
)

type exhaustiveSolver struct {
	defaultCap int
	limit      int
	workers    int
	logger     *zap.Logger
}

// SolverOption configures the solver returned by New.
type SolverOption func(*exhaustiveSolver)

// WithDefaultCap sets the bound used for options no constraint limits.
func WithDefaultCap(limit int) SolverOption {
	return func(s *exhaustiveSolver) {
		s.defaultCap = limit
	}
}

// WithCombinationLimit sets the maximum size of the search space.
func WithCombinationLimit(limit int) SolverOption {
	return func(s *exhaustiveSolver) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithWorkers sets how many goroutines evaluate combinations. Values below one
// fall back to GOMAXPROCS.
func WithWorkers(workers int) SolverOption {
	return func(s *exhaustiveSolver) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

// WithLogger attaches a logger for debug output.
func WithLogger(logger *zap.Logger) SolverOption {
	return func(s *exhaustiveSolver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Solver that exhaustively searches the bounded combination space.
func New(opts ...SolverOption) Solver {
	s := &exhaustiveSolver{
		defaultCap: DefaultCap,
		limit:      DefaultCombinationLimit,
		workers:    runtime.GOMAXPROCS(0),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve runs a solver with default settings.
func Solve(constraints Constraints, options []Option, required ...RequiredSupplement) ([]Result, error) {
	return New().Solve(context.Background(), constraints, options, required...)
}

// Solve returns every feasible combination of options sorted by distance from
// the targets, then by total unit count.
func (s *exhaustiveSolver) Solve(ctx context.Context, constraints Constraints, options []Option, required ...RequiredSupplement) ([]Result, error) {
	results, _, err := s.solve(ctx, 0, constraints, options, required)
	return results, err
}

// SolveTop returns the first n results Solve would return, along with the
// number of feasible combinations found. Only n results per chunk are held in
// memory. A non-positive n keeps every result.
func (s *exhaustiveSolver) SolveTop(ctx context.Context, n int, constraints Constraints, options []Option, required ...RequiredSupplement) ([]Result, int, error) {
	return s.solve(ctx, n, constraints, options, required)
}

func (s *exhaustiveSolver) solve(ctx context.Context, keep int, constraints Constraints, options []Option, required []RequiredSupplement) ([]Result, int, error) {
	if len(options) == 0 {
		return []Result{}, 0, nil
	}

	bounds := boundsFor(options, constraints, s.defaultCap)
	total, err := CountCombinations(bounds, s.limit)
	if err != nil {
		return nil, 0, err
	}

	chunks := splitRange(total, s.workers)
	s.logger.Debug("solving",
		zap.Ints("bounds", bounds),
		zap.Int("combinations", total),
		zap.Int("chunks", len(chunks)),
		zap.Int("required", len(required)),
		zap.Int("keep", keep),
	)

	parts := make([][]Result, len(chunks))
	feasible := make([]int, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range chunks {
		g.Go(func() error {
			res, found, err := evaluateRange(gctx, keep, constraints, options, required, bounds, c)
			parts[i] = res
			feasible[i] = found
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	size, found := 0, 0
	for i, part := range parts {
		size += len(part)
		found += feasible[i]
	}
	// Parts are concatenated in chunk order so the stable sort keeps ties in
	// enumeration order.
	results := make([]Result, 0, size)
	for _, part := range parts {
		results = append(results, part...)
	}
	SortResults(results)
	if keep > 0 && len(results) > keep {
		results = slices.Clip(results[:keep])
	}

	s.logger.Debug("solved", zap.Int("feasible", found), zap.Int("results", len(results)))
	return results, found, nil
}

type indexRange struct {
	start, end int
}

// splitRange cuts [0, total) into contiguous ranges, in order.
func splitRange(total, workers int) []indexRange {
	parts := max(workers, 1) * chunksPerWorker
	size := max((total+parts-1)/parts, minChunkSize)

	ranges := make([]indexRange, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		ranges = append(ranges, indexRange{start: start, end: min(start+size, total)})
	}
	return ranges
}

// evaluateRange enumerates the count vectors with linear index in r and keeps
// the feasible ones, scored, in enumeration order. When keep is positive only
// the best keep results of the range are returned, ordered as SortResults
// would order them. The second return value counts every feasible vector.
func evaluateRange(ctx context.Context, keep int, constraints Constraints, options []Option, required []RequiredSupplement, bounds []int, r indexRange) ([]Result, int, error) {
	scratch := make(Combination, len(options))
	for i, option := range options {
		scratch[i].Option = option
	}

	var results []Result
	found := 0
	odo := newOdometer(bounds, r.start)
	for idx := r.start; idx < r.end; idx++ {
		if (idx-r.start)%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		for i, count := range odo.digits {
			scratch[i].Count = count
		}
		odo.next()

		if !SatisfiesRequirements(scratch, required) {
			continue
		}
		amounts := CalculateAmounts(scratch)
		if AmountsExceedConstraints(amounts, constraints) {
			continue
		}
		found++

		score := scoreAmounts(amounts, scratch, constraints)
		candidate := Result{
			Distance:            score.Distance,
			NumberOfSupplements: score.NumberOfSupplements,
			Constraints:         constraints,
		}
		if keep <= 0 {
			candidate.Supplements = cloneCombination(scratch)
			results = append(results, candidate)
			continue
		}
		results = insertTop(results, candidate, scratch, keep)
	}
	return results, found, nil
}

// insertTop places candidate into top, which is sorted and holds at most keep
// entries. Equal entries already present stay ahead of candidate. The
// combination is cloned only when the candidate is kept.
func insertTop(top []Result, candidate Result, combination Combination, keep int) []Result {
	if len(top) == keep && CompareResults(candidate, top[keep-1]) >= 0 {
		return top
	}
	pos := sort.Search(len(top), func(i int) bool {
		return CompareResults(top[i], candidate) > 0
	})
	candidate.Supplements = cloneCombination(combination)
	if len(top) == keep {
		top = top[:keep-1]
	}
	return slices.Insert(top, pos, candidate)
}

func cloneCombination(src Combination) Combination {
	out := make(Combination, len(src))
	copy(out, src)
	return out
}
