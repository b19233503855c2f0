package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// GraphPath is an .hcl file or directory holding the initial graph.
	// Empty starts with an empty working set.
	GraphPath string
	// ModulesPath holds the node-kind manifest files.
	ModulesPath string

	// ListenAddr is the HTTP listen address.
	ListenAddr string
	// StorePath enables the on-disk store; empty keeps node data in memory.
	StorePath string
	// Watch re-applies the graph when GraphPath changes on disk.
	Watch bool

	LogFormat string
	LogLevel  string

	BatchThreshold int
	PassBudget     time.Duration
}

// logLevels maps the accepted LogLevel values onto slog levels. The empty
// value keeps the info default.
var logLevels = map[string]slog.Level{
	"":      slog.LevelInfo,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewConfig validates and normalizes a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ModulesPath == "" {
		return nil, errors.New("ModulesPath is a required configuration field and cannot be empty")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Watch && cfg.GraphPath == "" {
		return nil, errors.New("Watch requires a GraphPath to watch")
	}
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	return &cfg, nil
}
