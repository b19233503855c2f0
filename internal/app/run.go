package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/flowgraph/internal/api"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/engine"
	"github.com/vk/flowgraph/internal/metrics"
	"github.com/vk/flowgraph/internal/observe"
	"github.com/vk/flowgraph/internal/render/wsrender"
	"github.com/vk/flowgraph/internal/store"
	"github.com/vk/flowgraph/internal/store/badgerstore"
	"github.com/vk/flowgraph/internal/store/inmemory"
)

const shutdownTimeout = 5 * time.Second

// Run builds the engine from the loaded model and serves the HTTP API until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	st, closeStore, err := a.openStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	eng := engine.New(a.registry, engine.Options{
		BatchThreshold: a.cfg.BatchThreshold,
		PassBudget:     a.cfg.PassBudget,
		Store:          st,
		Observer:       observe.Multi{metrics.Prometheus{}, observe.Log{Logger: a.logger}},
		Logger:         a.logger,
	})
	defer eng.Close()

	if err := eng.LoadModel(ctx, a.model); err != nil {
		return fmt.Errorf("failed to load initial graph: %w", err)
	}
	a.logger.Info("Initial graph settled.", "nodes", len(a.model.Nodes), "connections", len(a.model.Connections))

	hub := wsrender.NewHub()
	go hub.Run(ctx)
	eng.Subscribe(hub)

	if a.cfg.Watch {
		stop, err := a.watchGraph(ctx, eng)
		if err != nil {
			return fmt.Errorf("failed to watch graph path: %w", err)
		}
		defer stop()
	}

	httpSrv := &http.Server{
		Addr:    a.cfg.ListenAddr,
		Handler: api.New(eng, hub, a.logger).Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP API serving.", "addr", a.cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	a.logger.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// openStore selects the persistence adapter: badger on disk when StorePath
// is set, the in-memory adapter otherwise.
func (a *App) openStore() (store.Store, func(), error) {
	if a.cfg.StorePath == "" {
		return inmemory.New(), func() {}, nil
	}

	bs, err := badgerstore.Open(badgerstore.Config{Path: a.cfg.StorePath, Logger: a.logger})
	if err != nil {
		return nil, nil, err
	}
	return bs, func() {
		if cerr := bs.Close(); cerr != nil {
			a.logger.Warn("Store close failed.", "error", cerr)
		}
	}, nil
}
