// Package config loads Scry settings from a .scry.yaml file, with
// sensible defaults when the file or individual keys are absent.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working
// directory when no explicit path is given.
const DefaultFile = ".scry.yaml"

// Duration wraps time.Duration so it can be written as "10s" or "1m"
// in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds all user-tunable settings.
type Config struct {
	// DBPath is the BadgerDB directory for persisted graphs.
	DBPath string `yaml:"db_path"`

	// DumpPath is the JSON graph dump to load and watch.
	DumpPath string `yaml:"dump_path"`

	// HistoryOrder is the default ordering for history queries:
	// "newest_first" or "oldest_first".
	HistoryOrder string `yaml:"history_order"`

	// PathDepth is the default MAX DEPTH for path queries.
	PathDepth int `yaml:"path_depth"`

	// QueryTimeout bounds a single query execution. Zero disables the
	// deadline.
	QueryTimeout Duration `yaml:"query_timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:       ".scry/db",
		DumpPath:     ".scry/graph.json",
		HistoryOrder: "newest_first",
		PathDepth:    6,
		QueryTimeout: Duration(10 * time.Second),
		LogLevel:     "info",
	}
}

// Load reads the config at path, layered over the defaults. A missing
// file is not an error when path is the default location.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.HistoryOrder {
	case "newest_first", "oldest_first":
	default:
		return fmt.Errorf("invalid history_order %q (newest_first or oldest_first)", c.HistoryOrder)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.PathDepth < 1 {
		return fmt.Errorf("path_depth must be positive, got %d", c.PathDepth)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must not be negative")
	}
	return nil
}
