package app

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/engine"
)

// debounceWindow absorbs editor write bursts into one reload.
const debounceWindow = 250 * time.Millisecond

// watchGraph reloads and re-applies the graph whenever GraphPath changes on
// disk. The returned stop function releases the watcher.
func (a *App) watchGraph(ctx context.Context, eng *engine.Engine) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(a.cfg.GraphPath); err != nil {
		watcher.Close()
		return nil, err
	}
	a.logger.Info("Watching graph path for changes.", "path", a.cfg.GraphPath)

	go func() {
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceWindow, func() {
					a.reloadGraph(ctx, eng)
				})
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				a.logger.Warn("Graph watcher error.", "error", werr)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

// reloadGraph loads the graph path again and swaps the working set. A load
// or validation failure keeps the running graph untouched.
func (a *App) reloadGraph(ctx context.Context, eng *engine.Engine) {
	logger := ctxlog.FromContext(ctx)

	model, err := a.loader.Load(ctx, a.cfg.GraphPath, a.cfg.ModulesPath)
	if err != nil {
		logger.Warn("Graph reload failed, keeping the running graph.", "error", err)
		return
	}
	if err := eng.LoadModel(ctx, model); err != nil {
		logger.Warn("Graph re-apply failed, keeping the running graph.", "error", err)
		return
	}
	a.model = model
	logger.Info("Graph reloaded from disk.", "nodes", len(model.Nodes), "connections", len(model.Connections))
}
