// Command solve ranks supplement combinations for a catalog file and prints
// the best ones.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/supplement-planner/internal/catalog"
	"github.com/eugenenazirov/supplement-planner/internal/logging"
	"github.com/eugenenazirov/supplement-planner/internal/solver"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, logging.New); err != nil {
		fmt.Fprintln(os.Stderr, "solve:", err)
		os.Exit(1)
	}
}

type options struct {
	catalogFile      string
	requirements     map[string]string
	constraints      map[string]string
	top              int
	format           string
	defaultCap       int
	combinationLimit int
	workers          int
	logLevel         string
}

func parseArgs(args []string) (options, error) {
	opts := options{
		requirements: map[string]string{},
		constraints:  map[string]string{},
	}

	app := kingpin.New("solve", "Rank supplement combinations from a catalog file against its nutrient targets")
	app.Flag("catalog", "YAML catalog of supplements, constraints and requirements").Short('c').Required().StringVar(&opts.catalogFile)
	app.Flag("require", "Minimum units of a supplement, as id=count (repeatable; replaces catalog requirements)").Short('r').StringMapVar(&opts.requirements)
	app.Flag("constraint", "Override a constraint, as name=target:max (repeatable)").StringMapVar(&opts.constraints)
	app.Flag("top", "Number of ranked combinations to print").Default("10").IntVar(&opts.top)
	app.Flag("format", "Output format").Default(formatText).EnumVar(&opts.format, formatText, formatJSON)
	app.Flag("default-cap", "Upper bound for supplements no constraint limits").Default(strconv.Itoa(solver.DefaultCap)).IntVar(&opts.defaultCap)
	app.Flag("combination-limit", "Largest search space to enumerate").Default(strconv.Itoa(solver.DefaultCombinationLimit)).IntVar(&opts.combinationLimit)
	app.Flag("workers", "Goroutines scoring combinations (0 uses GOMAXPROCS)").Default("0").IntVar(&opts.workers)
	app.Flag("log-level", "Log level (debug, info, warn, error)").Default("warn").StringVar(&opts.logLevel)

	if _, err := app.Parse(args); err != nil {
		return options{}, err
	}
	if opts.top <= 0 {
		return options{}, fmt.Errorf("--top must be positive, got %d", opts.top)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer, newLogger func(string) (*zap.Logger, error)) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	cat, err := catalog.Load(opts.catalogFile)
	if err != nil {
		return err
	}
	if err := applyConstraintOverrides(cat.Constraints, opts.constraints); err != nil {
		return err
	}
	if len(opts.requirements) > 0 {
		reqs, err := parseRequirements(opts.requirements)
		if err != nil {
			return err
		}
		cat.Requirements = reqs
	}
	required, err := cat.RequiredSupplements()
	if err != nil {
		return err
	}

	s := solver.New(
		solver.WithDefaultCap(opts.defaultCap),
		solver.WithCombinationLimit(opts.combinationLimit),
		solver.WithWorkers(opts.workers),
		solver.WithLogger(logger),
	)

	start := time.Now()
	results, total, err := s.SolveTop(ctx, opts.top, cat.Constraints, cat.Options(), required...)
	if err != nil {
		return err
	}
	logger.Info("solve finished",
		zap.Int("results", total),
		zap.Duration("elapsed", time.Since(start)),
	)

	if opts.format == formatJSON {
		return writeJSON(stdout, results, total)
	}
	return writeText(stdout, results, total)
}

func parseRequirements(raw map[string]string) ([]catalog.Requirement, error) {
	reqs := make([]catalog.Requirement, 0, len(raw))
	for _, id := range slices.Sorted(maps.Keys(raw)) {
		amount, err := strconv.Atoi(strings.TrimSpace(raw[id]))
		if err != nil {
			return nil, fmt.Errorf("--require %s: %w", id, err)
		}
		reqs = append(reqs, catalog.Requirement{SupplementID: id, Amount: amount})
	}
	return reqs, nil
}

func applyConstraintOverrides(dst solver.Constraints, raw map[string]string) error {
	for name, value := range raw {
		targetRaw, maxRaw, ok := strings.Cut(value, ":")
		if !ok {
			return fmt.Errorf("--constraint %s: expected target:max, got %q", name, value)
		}
		target, err := strconv.ParseFloat(strings.TrimSpace(targetRaw), 64)
		if err != nil {
			return fmt.Errorf("--constraint %s: target: %w", name, err)
		}
		limit, err := strconv.ParseFloat(strings.TrimSpace(maxRaw), 64)
		if err != nil {
			return fmt.Errorf("--constraint %s: max: %w", name, err)
		}

		c := solver.Constraint{Target: target, Max: limit}
		if err := catalog.ValidateConstraint(name, c); err != nil {
			return err
		}
		dst[name] = c
	}
	return nil
}

func writeText(w io.Writer, results []solver.Result, total int) error {
	fmt.Fprintf(w, "%d of %d feasible combinations\n\n", len(results), total)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tDISTANCE\tUNITS\tSUPPLEMENTS\tAMOUNTS")
	for i, res := range results {
		fmt.Fprintf(tw, "%d\t%.4f\t%d\t%s\t%s\n",
			i+1, res.Distance, res.NumberOfSupplements,
			describeSupplements(res.Supplements), describeAmounts(solver.CalculateAmounts(res.Supplements)))
	}
	return tw.Flush()
}

func describeSupplements(combination solver.Combination) string {
	parts := make([]string, 0, len(combination))
	for _, entry := range combination {
		if entry.Count == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%dx %s", entry.Count, entry.Option.ID))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func describeAmounts(amounts map[string]float64) string {
	parts := make([]string, 0, len(amounts))
	for _, name := range slices.Sorted(maps.Keys(amounts)) {
		parts = append(parts, name+"="+strconv.FormatFloat(amounts[name], 'f', -1, 64))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

type jsonEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type jsonResult struct {
	Supplements         []jsonEntry        `json:"supplements"`
	Amounts             map[string]float64 `json:"amounts"`
	Distance            float64            `json:"distance"`
	NumberOfSupplements int                `json:"numberOfSupplements"`
}

type jsonOutput struct {
	Results      []jsonResult `json:"results"`
	TotalResults int          `json:"totalResults"`
}

func writeJSON(w io.Writer, results []solver.Result, total int) error {
	out := jsonOutput{Results: make([]jsonResult, len(results)), TotalResults: total}
	for i, res := range results {
		entries := make([]jsonEntry, 0, len(res.Supplements))
		for _, e := range res.Supplements {
			if e.Count > 0 {
				entries = append(entries, jsonEntry{ID: e.Option.ID, Name: e.Option.Name, Count: e.Count})
			}
		}
		out.Results[i] = jsonResult{
			Supplements:         entries,
			Amounts:             solver.CalculateAmounts(res.Supplements),
			Distance:            res.Distance,
			NumberOfSupplements: res.NumberOfSupplements,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
