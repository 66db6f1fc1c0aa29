package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/supplement-planner/internal/solver"
)

var testCatalog = filepath.Join("..", "..", "internal", "catalog", "testdata", "catalog.yaml")

func testLogger(t *testing.T) func(string) (*zap.Logger, error) {
	return func(string) (*zap.Logger, error) {
		return zaptest.NewLogger(t), nil
	}
}

func runJSON(t *testing.T, args ...string) jsonOutput {
	t.Helper()

	var out bytes.Buffer
	if err := run(context.Background(), append([]string{"--format", "json", "--catalog", testCatalog}, args...), &out, testLogger(t)); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	var decoded jsonOutput
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	return decoded
}

func TestRunUsesCatalogRequirements(t *testing.T) {
	t.Parallel()

	out := runJSON(t)
	if out.TotalResults != 11 {
		t.Fatalf("expected 11 feasible combinations, got %d", out.TotalResults)
	}
	if len(out.Results) != 10 {
		t.Fatalf("expected default top 10, got %d", len(out.Results))
	}

	want := jsonResult{
		Supplements:         []jsonEntry{{ID: "big", Name: "Vitamin C+D Forte", Count: 1}},
		Amounts:             map[string]float64{"vitaminC": 75, "vitaminD": 50},
		Distance:            0.25,
		NumberOfSupplements: 1,
	}
	if diff := cmp.Diff(want, out.Results[0]); diff != "" {
		t.Fatalf("unexpected best result (-want +got):\n%s", diff)
	}
}

func TestRunRequireFlagReplacesCatalogRequirements(t *testing.T) {
	t.Parallel()

	out := runJSON(t, "--require", "small=2", "--top", "50")
	if out.TotalResults != 16 {
		t.Fatalf("expected 16 feasible combinations, got %d", out.TotalResults)
	}
	for _, res := range out.Results {
		if res.Supplements[0].ID != "small" || res.Supplements[0].Count < 2 {
			t.Fatalf("result violates requirement: %+v", res)
		}
	}
}

func TestRunConstraintOverride(t *testing.T) {
	t.Parallel()

	// a zero max on vitaminC leaves only the empty combination, which fails
	// the big >= 1 requirement from the catalog
	out := runJSON(t, "--constraint", "vitaminC=100:0")
	if out.TotalResults != 0 || len(out.Results) != 0 {
		t.Fatalf("expected no results, got %+v", out)
	}
}

func TestRunTextOutput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := run(context.Background(), []string{"-c", testCatalog, "--top", "3"}, &out, testLogger(t)); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if lines[0] != "3 of 11 feasible combinations" {
		t.Fatalf("unexpected summary line %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "RANK") {
		t.Fatalf("expected table header, got %q", lines[2])
	}
	if len(lines) != 6 {
		t.Fatalf("expected summary, blank line, header and 3 rows, got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[3], "1x big") || !strings.Contains(lines[3], "vitaminC=75 vitaminD=50") {
		t.Fatalf("unexpected first row %q", lines[3])
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	t.Parallel()

	testCases := map[string][]string{
		"MissingCatalog":    {},
		"ZeroTop":           {"-c", testCatalog, "--top", "0"},
		"UnknownFormat":     {"-c", testCatalog, "--format", "xml"},
		"BadRequirement":    {"-c", testCatalog, "--require", "big=many"},
		"UnknownSupplement": {"-c", testCatalog, "--require", "ghost=1"},
		"BadConstraint":     {"-c", testCatalog, "--constraint", "vitaminC=100"},
		"NegativeMax":       {"-c", testCatalog, "--constraint", "vitaminC=100:-1"},
		"MissingFile":       {"-c", filepath.Join(t.TempDir(), "missing.yaml")},
	}

	for name, args := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			if err := run(context.Background(), args, &out, testLogger(t)); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestRunTooManyCombinations(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := run(context.Background(), []string{"-c", testCatalog, "--combination-limit", "5"}, &out, testLogger(t))
	if !errors.Is(err, solver.ErrTooManyCombinations) {
		t.Fatalf("expected ErrTooManyCombinations, got %v", err)
	}
}
