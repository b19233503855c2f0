package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowgraph/internal/engine"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/internal/supervisor"
	"github.com/vk/flowgraph/modules/trigger"
	"github.com/vk/flowgraph/modules/webhook"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	reg := registry.New()
	(&trigger.Module{}).Register(reg)
	(&webhook.Module{}).Register(reg)
	e := engine.New(reg, engine.Options{})
	t.Cleanup(e.Close)
	return e
}

func wire(t *testing.T, e *engine.Engine, url string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.AddNode(ctx, "t", "trigger", map[string]any{"enabled": false}))
	require.NoError(t, e.AddNode(ctx, "hook", "webhook", map[string]any{"url": url}))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "hook", TargetHandleID: "fire",
	}))
}

func TestDeliversActiveInputs(t *testing.T) {
	ctx := context.Background()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := newEngine(t)
	wire(t, e, srv.URL)
	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))

	active, ok := e.Activation("hook")
	require.True(t, ok)
	assert.True(t, active)
	assert.Equal(t, map[string]any{"fire": true}, got)
}

func TestNon2xxErrorsTheNode(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e := newEngine(t)
	wire(t, e, srv.URL)
	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))

	active, ok := e.Activation("hook")
	require.True(t, ok)
	assert.False(t, active)
	assert.Equal(t, supervisor.Errored, e.Supervisor().StateOf("hook"))
	assert.ErrorContains(t, e.Supervisor().LastError("hook"), "unexpected status 502")
}
