// Package config loads statecore tool settings from YAML, JSON or TOML.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds settings for the CLI and the components it wires together.
// Zero values mean "unspecified"; Merge keeps the defaults for them.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	// LogDispatch turns on per-event broadcaster logging.
	LogDispatch bool `json:"log_dispatch" yaml:"log_dispatch" toml:"log_dispatch"`

	// FreezeCheck enables the broadcaster's event mutation check.
	FreezeCheck bool `json:"freeze_check" yaml:"freeze_check" toml:"freeze_check"`

	// Journal is the SQLite trace journal path. Empty disables journaling.
	Journal string `json:"journal" yaml:"journal" toml:"journal"`

	// MetricsNamespace prefixes Prometheus metric names.
	MetricsNamespace string `json:"metrics_namespace" yaml:"metrics_namespace" toml:"metrics_namespace"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:         "info",
		MetricsNamespace: "statecore",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// LoadOrDefault returns Default() merged with the file at path.
// An empty path yields Default().
func LoadOrDefault(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	file, err := Load(path)
	if err != nil {
		return cfg, err
	}
	cfg = cfg.Merge(file)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Merge returns c with every non-zero field of other applied on top.
func (c Config) Merge(other Config) Config {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogDispatch {
		c.LogDispatch = true
	}
	if other.FreezeCheck {
		c.FreezeCheck = true
	}
	if other.Journal != "" {
		c.Journal = other.Journal
	}
	if other.MetricsNamespace != "" {
		c.MetricsNamespace = other.MetricsNamespace
	}
	return c
}

// Validate checks field values.
func (c Config) Validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.ContainsAny(c.MetricsNamespace, " -.") {
		return fmt.Errorf("metrics_namespace %q: must be a Prometheus identifier", c.MetricsNamespace)
	}
	return nil
}

// Level returns the slog level for LogLevel, falling back to Info.
func (c Config) Level() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level %q: want debug, info, warn or error", s)
	}
}
