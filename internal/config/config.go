// Package config loads the solver's configuration from defaults, an
// optional YAML config file, and environment variables, in that order of
// increasing priority, using the same koanf-based layering the rest of the
// logistics stack uses.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the top-level solver configuration.
type Config struct {
	App     AppConfig     `koanf:"app"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Cache   CacheConfig   `koanf:"cache"`
	Search  SearchConfig  `koanf:"search"`
}

// AppConfig holds identity fields used for logging and correlation.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

// LogConfig controls the shared logger.
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Output     string `koanf:"output"`
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"`
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig controls the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
}

// CacheConfig controls the TSP tour cache backend.
type CacheConfig struct {
	Driver       string        `koanf:"driver"` // memory, redis
	FilePath     string        `koanf:"file_path"`
	RedisAddr    string        `koanf:"redis_addr"`
	RedisDB      int           `koanf:"redis_db"`
	FlushPeriod  time.Duration `koanf:"flush_period"`
}

// SearchConfig controls the tabu/MIP search knobs described in spec.md §4.6-§4.8.
type SearchConfig struct {
	Alpha                 int           `koanf:"alpha"`                    // tabu steps per restart window
	Beta1                 float64       `koanf:"gamma1"`                   // tabu hash exponent 1
	Beta2                 float64       `koanf:"gamma2"`                   // tabu hash exponent 2
	Beta3                 float64       `koanf:"gamma3"`                   // tabu hash exponent 3
	BitSize               int           `koanf:"bit_size"`                 // tabu bit-array size (power of two)
	WindowMIPTimeout      time.Duration `koanf:"window_mip_timeout"`       // per-window MIP budget
	SearchTimeout         time.Duration `koanf:"search_timeout"`           // total post-initial-MIP budget
	ThreadsPerWorker      int           `koanf:"threads_per_worker"`
	MIPThreads            int           `koanf:"mip_threads"`
	Epsilon               float64       `koanf:"epsilon"`
}

// Validate checks the configuration for structurally invalid values and
// fills in a couple of defaults that must never be zero.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		c.App.Name = "irpsolver"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of debug/info/warn/error, got %q", c.Log.Level))
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		errs = append(errs, fmt.Sprintf("cache.driver must be memory or redis, got %q", c.Cache.Driver))
	}

	if c.Search.Alpha <= 0 {
		errs = append(errs, "search.alpha must be positive")
	}
	if c.Search.BitSize <= 0 || c.Search.BitSize&(c.Search.BitSize-1) != 0 {
		errs = append(errs, "search.bit_size must be a positive power of two")
	}
	if c.Search.Beta1 == c.Search.Beta2 || c.Search.Beta2 == c.Search.Beta3 || c.Search.Beta1 == c.Search.Beta3 {
		errs = append(errs, "search.gamma1/2/3 must be pairwise distinct")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
