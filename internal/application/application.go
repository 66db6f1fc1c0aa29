package application

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eugenenazirov/supplement-planner/internal/api"
	"github.com/eugenenazirov/supplement-planner/internal/catalog"
	"github.com/eugenenazirov/supplement-planner/internal/config"
	"github.com/eugenenazirov/supplement-planner/internal/metrics"
	"github.com/eugenenazirov/supplement-planner/internal/solver"
	"github.com/eugenenazirov/supplement-planner/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage  *storage.MemoryStorage
	solver   solver.Solver
	registry *prometheus.Registry
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	if cfg.CatalogFile != "" {
		path, err := resolveProjectPath(cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to locate catalog: %w", err)
		}
		cat, err := catalog.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		if err := store.Seed(cat); err != nil {
			return nil, fmt.Errorf("failed to seed storage: %w", err)
		}
		logger.Info("catalog loaded",
			zap.String("path", path),
			zap.Int("supplements", len(cat.Supplements)),
			zap.Int("constraints", len(cat.Constraints)),
			zap.Int("requirements", len(cat.Requirements)),
		)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	s := metrics.Instrument(solver.New(
		solver.WithDefaultCap(cfg.Solver.DefaultCap),
		solver.WithCombinationLimit(cfg.Solver.CombinationLimit),
		solver.WithWorkers(cfg.Solver.Workers),
		solver.WithLogger(logger.Named("solver")),
	), recorder)

	handler := api.NewHandler(s, store,
		api.WithResultLimit(cfg.Solver.ResultLimit),
		api.WithHandlerLogger(logger.Named("api")),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	rootHandler := BuildRootHandler(apiRouter, registry)

	return &App{
		storage:  store,
		solver:   s,
		registry: registry,
		handler:  handler,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(cfg, rootHandler),
	}, nil
}

// BuildRootHandler mounts the API under /api/ and the Prometheus exposition
// endpoint for gatherer under /metrics.
func BuildRootHandler(apiHandler http.Handler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", http.NotFoundHandler())
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// resolveProjectPath returns path unchanged when it exists or is absolute.
// Otherwise it walks up from the working directory looking for it, so a
// relative catalog path works from any package directory of the repo.
func resolveProjectPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s: %w", path, os.ErrNotExist)
}
