package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "IRPSOLVER_"

// Loader loads configuration from defaults, a config file, and environment
// variables, in that order of increasing priority.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithConfigPath overrides the single config file path to try, e.g. from the -c flag.
func WithConfigPath(path string) LoaderOption {
	return func(l *Loader) {
		if path != "" {
			l.configPaths = []string{path}
		}
	}
}

// NewLoader creates a Loader with the default search paths.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/irpsolver/config.yaml",
		},
		envPrefix: envPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load runs the full defaults -> file -> env -> validate pipeline.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	if err := l.k.Load(env.ProviderWithValue(l.envPrefix, ".", envKeyMapper(l.envPrefix)), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) loadConfigFile() error {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return l.k.Load(file.Provider(p), yaml.Parser())
		}
	}
	for _, p := range l.configPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return l.k.Load(file.Provider(abs), yaml.Parser())
		}
	}
	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

func envKeyMapper(prefix string) func(string, string) (string, any) {
	return func(envKey, value string) (string, any) {
		key := strings.ToLower(strings.TrimPrefix(envKey, prefix))
		key = strings.ReplaceAll(key, "_", ".")
		return key, value
	}
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":        "irpsolver",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		"metrics.enabled":   false,
		"metrics.port":      9464,
		"metrics.path":      "/metrics",
		"metrics.namespace": "irpsolver",

		"cache.driver":       "memory",
		"cache.file_path":    "tspcache.csv",
		"cache.redis_addr":   "localhost:6379",
		"cache.redis_db":     0,
		"cache.flush_period": 5 * time.Second,

		"search.alpha":              50,
		"search.gamma1":             0.5,
		"search.gamma2":             1.3,
		"search.gamma3":             1.8,
		"search.bit_size":           1 << 20,
		"search.window_mip_timeout": 120 * time.Second,
		"search.search_timeout":     2100 * time.Second,
		"search.threads_per_worker": 1,
		"search.mip_threads":        4,
		"search.epsilon":            1e-6,
	}
}

// MustLoad loads configuration or panics.
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
