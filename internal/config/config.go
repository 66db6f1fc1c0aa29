package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/supplement-planner/internal/solver"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultResultLimit    = 20
	defaultLogLevel       = "info"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	CatalogFile          string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	Solver               SolverConfig
}

// SolverConfig holds the search knobs.
type SolverConfig struct {
	// DefaultCap bounds options that no constraint limits.
	DefaultCap int
	// CombinationLimit is the largest search space a solve may enumerate.
	CombinationLimit int
	// Workers is the number of goroutines scoring combinations; 0 means GOMAXPROCS.
	Workers int
	// ResultLimit is the number of ranked results the API returns by default.
	ResultLimit int
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	CatalogFile          string        `yaml:"catalog_file"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Solver               yamlSolver    `yaml:"solver"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlSolver struct {
	DefaultCap       *int `yaml:"default_cap"`
	CombinationLimit *int `yaml:"combination_limit"`
	Workers          *int `yaml:"workers"`
	ResultLimit      *int `yaml:"result_limit"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile       string
	Port             *string
	CatalogFile      *string
	LogLevel         *string
	RateLimitRPS     *float64
	RateLimitBurst   *int
	DefaultCap       *int
	CombinationLimit *int
	Workers          *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	// Load from YAML file if specified (overrides env)
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		LogLevel:             defaultLogLevel,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         30 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		Solver: SolverConfig{
			DefaultCap:       solver.DefaultCap,
			CombinationLimit: solver.DefaultCombinationLimit,
			ResultLimit:      defaultResultLimit,
		},
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.CatalogFile != "" {
		cfg.CatalogFile = yamlCfg.CatalogFile
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	durations := []struct {
		key   string
		raw   string
		field *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.field = value
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	setIfPresent(&cfg.RateLimitRPS, yamlCfg.RateLimit.RPS)
	setIfPresent(&cfg.RateLimitBurst, yamlCfg.RateLimit.Burst)
	setIfPresent(&cfg.Solver.DefaultCap, yamlCfg.Solver.DefaultCap)
	setIfPresent(&cfg.Solver.CombinationLimit, yamlCfg.Solver.CombinationLimit)
	setIfPresent(&cfg.Solver.Workers, yamlCfg.Solver.Workers)
	setIfPresent(&cfg.Solver.ResultLimit, yamlCfg.Solver.ResultLimit)

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := env("PORT"); port != "" {
		cfg.Port = port
	}
	if catalog := env("CATALOG_FILE"); catalog != "" {
		cfg.CatalogFile = catalog
	}
	if level := env("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		value, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = value
	}

	ints := []struct {
		key   string
		field *int
	}{
		{"RATE_LIMIT_BURST", &cfg.RateLimitBurst},
		{"SOLVER_DEFAULT_CAP", &cfg.Solver.DefaultCap},
		{"SOLVER_COMBINATION_LIMIT", &cfg.Solver.CombinationLimit},
		{"SOLVER_WORKERS", &cfg.Solver.Workers},
		{"SOLVER_RESULT_LIMIT", &cfg.Solver.ResultLimit},
	}
	for _, i := range ints {
		raw := env(i.key)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", i.key, err)
		}
		*i.field = value
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.CatalogFile != nil && *overrides.CatalogFile != "" {
		cfg.CatalogFile = *overrides.CatalogFile
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	setIfPresent(&cfg.RateLimitRPS, overrides.RateLimitRPS)
	setIfPresent(&cfg.RateLimitBurst, overrides.RateLimitBurst)
	setIfPresent(&cfg.Solver.DefaultCap, overrides.DefaultCap)
	setIfPresent(&cfg.Solver.CombinationLimit, overrides.CombinationLimit)
	setIfPresent(&cfg.Solver.Workers, overrides.Workers)
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.Solver.DefaultCap < 0 {
		return fmt.Errorf("solver default cap must be >= 0")
	}
	if cfg.Solver.CombinationLimit <= 0 {
		return fmt.Errorf("solver combination limit must be > 0")
	}
	if cfg.Solver.Workers < 0 {
		return fmt.Errorf("solver workers must be >= 0")
	}
	if cfg.Solver.ResultLimit <= 0 {
		return fmt.Errorf("solver result limit must be > 0")
	}
	return nil
}

func setIfPresent[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
