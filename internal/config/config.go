package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"zebrabmd/adapters/stats/fitter"
	"zebrabmd/internal/analysis/benchmark"
	"zebrabmd/internal/errors"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Engine   EngineConfig
	Server   ServerConfig
	Database DatabaseConfig
	LogLevel string
}

// EngineConfig holds the estimation settings
type EngineConfig struct {
	BMR               float64
	BMR50             float64
	PValueThreshold   float64
	Confidence        float64
	BMDLMaxIterations int
	BMDLTolerance     float64
	FitMaxIterations  int
	FitMaxEvaluations int
	CurvePoints       int
	Models            []string
	Workers           int
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds the optional SQL result sink
type DatabaseConfig struct {
	Driver string
	URL    string
}

// Enabled reports whether a database sink was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads .env (when present) and the process environment, then validates
func Load() (*Config, error) {
	// A missing .env is the normal case outside development
	_ = godotenv.Load()

	cfg := &Config{
		Engine:   loadEngineConfig(),
		Server:   ServerConfig{Port: getEnvOrDefault("PORT", "8080")},
		Database: loadDatabaseConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func loadEngineConfig() EngineConfig {
	defaults := benchmark.DefaultOptions()
	return EngineConfig{
		BMR:               getEnvFloatOrDefault("BMD_BMR", defaults.BMR),
		BMR50:             getEnvFloatOrDefault("BMD_BMR50", defaults.BMR50),
		PValueThreshold:   getEnvFloatOrDefault("BMD_PVALUE_THRESHOLD", defaults.PValueThreshold),
		Confidence:        getEnvFloatOrDefault("BMD_CONFIDENCE", defaults.Confidence),
		BMDLMaxIterations: getEnvIntOrDefault("BMD_BMDL_MAX_ITER", defaults.BMDLMaxIterations),
		BMDLTolerance:     getEnvFloatOrDefault("BMD_BMDL_TOLERANCE", defaults.BMDLTolerance),
		FitMaxIterations:  getEnvIntOrDefault("BMD_FIT_MAX_ITER", defaults.Fit.MaxIterations),
		FitMaxEvaluations: getEnvIntOrDefault("BMD_FIT_MAX_EVALS", defaults.Fit.MaxEvaluations),
		CurvePoints:       getEnvIntOrDefault("BMD_CURVE_POINTS", defaults.CurvePoints),
		Models:            getEnvListOrDefault("BMD_MODELS", nil),
		Workers:           getEnvIntOrDefault("BMD_WORKERS", runtime.GOMAXPROCS(0)),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver: getEnvOrDefault("DB_DRIVER", "sqlite"),
		URL:    getEnvOrDefault("DATABASE_URL", ""),
	}
}

// Options converts the engine settings into benchmark options
func (e EngineConfig) Options() benchmark.Options {
	opts := benchmark.DefaultOptions()
	opts.BMR = e.BMR
	opts.BMR50 = e.BMR50
	opts.PValueThreshold = e.PValueThreshold
	opts.Confidence = e.Confidence
	opts.BMDLMaxIterations = e.BMDLMaxIterations
	opts.BMDLTolerance = e.BMDLTolerance
	opts.Fit = fitter.Settings{
		MaxIterations:     e.FitMaxIterations,
		MaxEvaluations:    e.FitMaxEvaluations,
		GradientThreshold: opts.Fit.GradientThreshold,
		FunctionTolerance: opts.Fit.FunctionTolerance,
	}
	opts.CurvePoints = e.CurvePoints
	opts.Models = e.Models
	return opts
}

func validateConfig(config *Config) error {
	if err := config.Engine.Options().Validate(); err != nil {
		return err
	}
	if config.Engine.Workers <= 0 {
		return errors.ConfigInvalid("BMD_WORKERS must be positive")
	}
	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("DB_DRIVER must be sqlite or postgres, got %q", config.Database.Driver))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated value, dropping blanks
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
