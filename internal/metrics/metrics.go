// Package metrics exposes Prometheus instrumentation for solver runs.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eugenenazirov/supplement-planner/internal/solver"
)

const namespace = "supplement_planner"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeTooMany  = "too_many_combinations"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

const (
	outcomeLabel        = "outcome"
	resultBucketsStart  = 1
	resultBucketsFactor = 4
	resultBucketsCount  = 10
)

// Recorder holds the solver collectors.
type Recorder struct {
	solves   *prometheus.CounterVec
	duration prometheus.Histogram
	results  prometheus.Histogram
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solve_total",
			Help:      "Number of solve calls by outcome.",
		}, []string{outcomeLabel}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall time spent per solve call.",
			Buckets:   prometheus.DefBuckets,
		}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_results",
			Help:      "Number of feasible combinations found per successful solve.",
			Buckets:   prometheus.ExponentialBuckets(resultBucketsStart, resultBucketsFactor, resultBucketsCount),
		}),
	}

	for _, c := range []prometheus.Collector{r.solves, r.duration, r.results} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records one solve call.
func (r *Recorder) Observe(elapsed time.Duration, results int, err error) {
	r.solves.WithLabelValues(outcome(err)).Inc()
	r.duration.Observe(elapsed.Seconds())
	if err == nil {
		r.results.Observe(float64(results))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, solver.ErrTooManyCombinations):
		return OutcomeTooMany
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

type instrumentedSolver struct {
	next     solver.Solver
	recorder *Recorder
	now      func() time.Time
}

// Instrument wraps next so that every call is recorded.
func Instrument(next solver.Solver, recorder *Recorder) solver.Solver {
	if recorder == nil {
		return next
	}
	return &instrumentedSolver{next: next, recorder: recorder, now: time.Now}
}

func (s *instrumentedSolver) Solve(ctx context.Context, constraints solver.Constraints, options []solver.Option, required ...solver.RequiredSupplement) ([]solver.Result, error) {
	start := s.now()
	results, err := s.next.Solve(ctx, constraints, options, required...)
	s.recorder.Observe(s.now().Sub(start), len(results), err)
	return results, err
}

func (s *instrumentedSolver) SolveTop(ctx context.Context, n int, constraints solver.Constraints, options []solver.Option, required ...solver.RequiredSupplement) ([]solver.Result, int, error) {
	start := s.now()
	results, found, err := s.next.SolveTop(ctx, n, constraints, options, required...)
	s.recorder.Observe(s.now().Sub(start), found, err)
	return results, found, err
}
