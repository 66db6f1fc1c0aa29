package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/supplement-planner/internal/application"
	"github.com/eugenenazirov/supplement-planner/internal/config"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Config{
		Port:                 "0",
		LogLevel:             "info",
		ShutdownGracePeriod:  time.Second,
		ReadHeaderTimeout:    time.Second,
		WriteTimeout:         5 * time.Second,
		IdleTimeout:          5 * time.Second,
		EnableRequestLogging: true,
		Solver: config.SolverConfig{
			DefaultCap:       100,
			CombinationLimit: 1_000_000,
			ResultLimit:      20,
		},
	}
	app, err := application.New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("application.New: %v", err)
	}

	srv := httptest.NewServer(app.Server().Handler)
	t.Cleanup(srv.Close)
	return srv
}

func performRequest(t *testing.T, srv *httptest.Server, method, target string, payload any) *http.Response {
	t.Helper()

	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+target, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, data)
	}
}

type solveResult struct {
	TotalResults int `json:"totalResults"`
	Results      []struct {
		Supplements []struct {
			ID    string `json:"id"`
			Count int    `json:"count"`
		} `json:"supplements"`
		Distance float64 `json:"distance"`
	} `json:"results"`
}

func solve(t *testing.T, srv *httptest.Server) solveResult {
	t.Helper()

	resp := performRequest(t, srv, http.MethodPost, "/api/solve", map[string]any{})
	expectStatus(t, resp, http.StatusOK)

	var out solveResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode solve response: %v", err)
	}
	return out
}

func TestIntegrationFlow(t *testing.T) {
	srv := newServer(t)

	expectStatus(t, performRequest(t, srv, http.MethodGet, "/api/health", nil), http.StatusOK)

	if out := solve(t, srv); out.TotalResults != 0 {
		t.Fatalf("expected no results from an empty catalog, got %d", out.TotalResults)
	}

	for _, sup := range []map[string]any{
		{"id": "small", "name": "Vitamin C 12.5", "ingredients": []map[string]any{{"name": "vitaminC", "amount": 12.5}}},
		{"id": "big", "name": "Vitamin C 75", "ingredients": []map[string]any{{"name": "vitaminC", "amount": 75}}},
	} {
		expectStatus(t, performRequest(t, srv, http.MethodPost, "/api/supplements", sup), http.StatusCreated)
	}
	expectStatus(t, performRequest(t, srv, http.MethodPut, "/api/constraints/vitaminC", map[string]any{"target": 100, "max": 200}), http.StatusOK)

	out := solve(t, srv)
	if out.TotalResults != 33 {
		t.Fatalf("expected 33 feasible combinations, got %d", out.TotalResults)
	}
	best := out.Results[0]
	if best.Distance != 0 || len(best.Supplements) != 2 ||
		best.Supplements[0].ID != "small" || best.Supplements[0].Count != 2 ||
		best.Supplements[1].ID != "big" || best.Supplements[1].Count != 1 {
		t.Fatalf("unexpected best combination: %+v", best)
	}

	expectStatus(t, performRequest(t, srv, http.MethodPut, "/api/requirements/big", map[string]any{"amount": 1}), http.StatusOK)
	if out := solve(t, srv); out.TotalResults != 16 {
		t.Fatalf("expected 16 combinations with big required, got %d", out.TotalResults)
	}

	// deleting the supplement drops its requirement too
	expectStatus(t, performRequest(t, srv, http.MethodDelete, "/api/supplements/big", nil), http.StatusNoContent)
	if out := solve(t, srv); out.TotalResults != 17 {
		t.Fatalf("expected 17 combinations of small alone, got %d", out.TotalResults)
	}

	resp := performRequest(t, srv, http.MethodGet, "/metrics", nil)
	expectStatus(t, resp, http.StatusOK)
	exposition, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(exposition), `supplement_planner_solve_total{outcome="success"} 4`) {
		t.Fatalf("expected four successful solves in metrics, got:\n%s", exposition)
	}
}
