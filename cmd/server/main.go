package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/supplement-planner/internal/application"
	"github.com/eugenenazirov/supplement-planner/internal/config"
	"github.com/eugenenazirov/supplement-planner/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("supplement-planner", "Supplement Planner - ranks supplement combinations against nutrient targets")
	overrides := registerFlags(kingpinApp)
	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	cfg, err := config.Load(overrides.resolve())
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

// flagValues holds raw flag values. Negative numbers and empty strings mean
// the flag was not set.
type flagValues struct {
	configFile       *string
	port             *string
	catalogFile      *string
	logLevel         *string
	rateLimitRPS     *float64
	rateLimitBurst   *int
	defaultCap       *int
	combinationLimit *int
	workers          *int
}

func registerFlags(app *kingpin.Application) *flagValues {
	return &flagValues{
		configFile:       app.Flag("config", "Path to YAML configuration file").String(),
		port:             app.Flag("port", "HTTP port exposed by the service").String(),
		catalogFile:      app.Flag("catalog", "YAML catalog of supplements, constraints and requirements to preload").String(),
		logLevel:         app.Flag("log-level", "Log level (debug, info, warn, error)").String(),
		rateLimitRPS:     app.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64(),
		rateLimitBurst:   app.Flag("rate-limit-burst", "Burst capacity for rate limiter").Default("-1").Int(),
		defaultCap:       app.Flag("default-cap", "Upper bound for supplements no constraint limits").Default("-1").Int(),
		combinationLimit: app.Flag("combination-limit", "Largest search space a single solve may enumerate").Default("-1").Int(),
		workers:          app.Flag("workers", "Goroutines scoring combinations (0 uses GOMAXPROCS)").Default("-1").Int(),
	}
}

func (f *flagValues) resolve() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile: *f.configFile,
	}

	if *f.port != "" {
		overrides.Port = f.port
	}
	if *f.catalogFile != "" {
		overrides.CatalogFile = f.catalogFile
	}
	if *f.logLevel != "" {
		overrides.LogLevel = f.logLevel
	}
	if *f.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = f.rateLimitRPS
	}
	if *f.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = f.rateLimitBurst
	}
	if *f.defaultCap >= 0 {
		overrides.DefaultCap = f.defaultCap
	}
	if *f.combinationLimit >= 0 {
		overrides.CombinationLimit = f.combinationLimit
	}
	if *f.workers >= 0 {
		overrides.Workers = f.workers
	}

	return overrides
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
