package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/flowgraph/internal/config"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
	loader   config.Loader
	cfg      *Config
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Configuration failures are fatal startup errors and panic.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var configPaths []string
	if appConfig.GraphPath != "" {
		configPaths = append(configPaths, appConfig.GraphPath)
	}
	if appConfig.ModulesPath != "" {
		configPaths = append(configPaths, appConfig.ModulesPath)
	}

	model, err := loader.Load(ctx, configPaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All node-kind modules registered.", "count", len(modules))

	reg.ApplyManifests(model)
	logger.Debug("Handle schemas applied from kind manifests.")

	if err := reg.Validate(ctx, model); err != nil {
		// A mismatch between manifests and Go handlers is a programmer error.
		panic(err)
	}
	logger.Debug("Registry validation passed.", "kinds", reg.Names())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		model:    model,
		loader:   loader,
		cfg:      appConfig,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded configuration model. Primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
