package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eugenenazirov/supplement-planner/internal/solver"
)

type stubSolver struct {
	results []solver.Result
	err     error
}

func (s *stubSolver) Solve(context.Context, solver.Constraints, []solver.Option, ...solver.RequiredSupplement) ([]solver.Result, error) {
	return s.results, s.err
}

func (s *stubSolver) SolveTop(_ context.Context, n int, _ solver.Constraints, _ []solver.Option, _ ...solver.RequiredSupplement) ([]solver.Result, int, error) {
	found := len(s.results)
	if n > 0 && found > n {
		return s.results[:n], found, s.err
	}
	return s.results, found, s.err
}

func TestInstrumentRecordsOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	recorder, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder returned error: %v", err)
	}

	calls := []struct {
		stub    *stubSolver
		outcome string
	}{
		{stub: &stubSolver{results: make([]solver.Result, 3)}, outcome: OutcomeSuccess},
		{stub: &stubSolver{err: fmt.Errorf("wrapped: %w", solver.ErrTooManyCombinations)}, outcome: OutcomeTooMany},
		{stub: &stubSolver{err: context.Canceled}, outcome: OutcomeCanceled},
		{stub: &stubSolver{err: errors.New("boom")}, outcome: OutcomeError},
	}

	for _, call := range calls {
		s := Instrument(call.stub, recorder)
		_, gotErr := s.Solve(context.Background(), nil, nil)
		if !errors.Is(gotErr, call.stub.err) {
			t.Fatalf("expected error %v to pass through, got %v", call.stub.err, gotErr)
		}
		if got := testutil.ToFloat64(recorder.solves.WithLabelValues(call.outcome)); got != 1 {
			t.Fatalf("expected one %s observation, got %v", call.outcome, got)
		}
	}

	if got := testutil.CollectAndCount(recorder.duration); got != 1 {
		t.Fatalf("expected duration histogram to be collected, got %d", got)
	}
}

func TestInstrumentWithRealSolver(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	recorder, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder returned error: %v", err)
	}

	s := Instrument(solver.New(), recorder)
	constraints := solver.Constraints{"vitaminC": {Target: 100, Max: 200}}
	options := []solver.Option{
		{ID: "small", Ingredients: []solver.Ingredient{{Name: "vitaminC", Amount: 12.5}}},
		{ID: "big", Ingredients: []solver.Ingredient{{Name: "vitaminC", Amount: 75}}},
	}

	results, err := s.Solve(context.Background(), constraints, options)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 33 {
		t.Fatalf("expected 33 results, got %d", len(results))
	}
	if got := testutil.ToFloat64(recorder.solves.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
}

func TestInstrumentSolveTopRecordsFeasibleCount(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	recorder, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder returned error: %v", err)
	}

	s := Instrument(&stubSolver{results: make([]solver.Result, 7)}, recorder)
	results, found, err := s.SolveTop(context.Background(), 2, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || found != 7 {
		t.Fatalf("expected 2 results of 7 feasible, got %d of %d", len(results), found)
	}
	if got := testutil.ToFloat64(recorder.solves.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.CollectAndCount(recorder.results); got != 1 {
		t.Fatalf("expected results histogram to be collected, got %d", got)
	}
}

func TestNewRecorderRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestInstrumentWithoutRecorder(t *testing.T) {
	t.Parallel()

	stub := &stubSolver{}
	if got := Instrument(stub, nil); got != stub {
		t.Fatalf("expected solver to be returned unwrapped")
	}
}

func TestObserveElapsed(t *testing.T) {
	t.Parallel()

	recorder, err := NewRecorder(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recorder.Observe(250*time.Millisecond, 0, nil)
	if got := testutil.ToFloat64(recorder.solves.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
}
