// Package config loads the YAML configuration of the kektorann bench tool:
// the index parameters, the benchmark workload and the logging and metrics
// settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sanonone/kektorann/pkg/core/hnsw"
	"github.com/sanonone/kektorann/pkg/core/types"
	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML file.
type Config struct {
	Index hnsw.Config `yaml:"index"`
	Bench BenchConfig `yaml:"bench"`
	// MetricsAddr is where /metrics is served. Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat   string `yaml:"log_format"` // text or json
}

// BenchConfig describes the synthetic workload.
type BenchConfig struct {
	Vectors  int   `yaml:"vectors"`
	Queries  int   `yaml:"queries"`
	K        int   `yaml:"k"`
	EfSearch []int `yaml:"ef_search"`
	Seed     int64 `yaml:"seed"`
	// Workers bounds concurrent searches. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns a configuration that runs a small benchmark.
func DefaultConfig() Config {
	idx := hnsw.DefaultConfig(128)
	idx.Seed = 42
	// Derived from M after loading, so that a file setting only m stays
	// consistent.
	idx.M0 = 0
	idx.ML = nil
	return Config{
		Index: idx,
		Bench: BenchConfig{
			Vectors:  10000,
			Queries:  200,
			K:        10,
			EfSearch: []int{10, 20, 50, 100, 200},
			Seed:     1,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfig reads the YAML configuration file using strict parsing.
// Fields missing from the file keep their defaults; unknown fields are an
// error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		cfg.Index = cfg.Index.Normalize()
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}

	cfg.Index = cfg.Index.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	b := c.Bench
	if b.Vectors < 1 || b.Queries < 1 || b.K < 1 {
		return types.InvalidArgumentf("bench: vectors, queries and k must be positive")
	}
	if len(b.EfSearch) == 0 {
		return types.InvalidArgumentf("bench: ef_search needs at least one value")
	}
	for _, ef := range b.EfSearch {
		if ef < 1 {
			return types.InvalidArgumentf("bench: ef_search values must be positive, got %d", ef)
		}
	}
	if b.Workers < 0 {
		return types.InvalidArgumentf("bench: workers must not be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return types.InvalidArgumentf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// NewLogger builds the slog logger described by the config.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, types.InvalidArgumentf("log_level %q: %v", s, err)
	}
	return level, nil
}
