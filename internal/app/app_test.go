package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowgraph/internal/app"
	"github.com/vk/flowgraph/internal/hcl"
)

const sampleGraph = `
node "trigger" "start" {
  data = { enabled = true }
}

node "logic.and" "gate" {}

connection {
  source = "start.out"
  target = "gate.in_a"
}
`

func writeGraph(t *testing.T, content string) (graphPath, modulesPath string) {
	t.Helper()
	dir := t.TempDir()
	graphPath = filepath.Join(dir, "graph.hcl")
	require.NoError(t, os.WriteFile(graphPath, []byte(content), 0o600))
	modulesPath = filepath.Join(dir, "modules")
	require.NoError(t, os.Mkdir(modulesPath, 0o700))
	return graphPath, modulesPath
}

func testConfig(t *testing.T, graphPath, modulesPath string) *app.Config {
	t.Helper()
	cfg, err := app.NewConfig(app.Config{
		GraphPath:   graphPath,
		ModulesPath: modulesPath,
		ListenAddr:  "127.0.0.1:0",
		LogFormat:   "text",
		LogLevel:    "error",
	})
	require.NoError(t, err)
	return cfg
}

func TestNewConfigValidation(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		cfg, err := app.NewConfig(app.Config{ModulesPath: "modules"})
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.ListenAddr)
	})

	tests := []struct {
		name string
		cfg  app.Config
	}{
		{"missing modules path", app.Config{}},
		{"watch without graph", app.Config{ModulesPath: "modules", Watch: true}},
		{"unknown log level", app.Config{ModulesPath: "modules", LogLevel: "loud"}},
		{"unknown log format", app.Config{ModulesPath: "modules", LogFormat: "xml"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := app.NewConfig(tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewAppLoadsGraph(t *testing.T) {
	graphPath, modulesPath := writeGraph(t, sampleGraph)
	out := &bytes.Buffer{}

	a := app.NewApp(out, testConfig(t, graphPath, modulesPath), hcl.NewLoader())

	model := a.Model()
	assert.Len(t, model.Nodes, 2)
	assert.Len(t, model.Connections, 1)

	names := a.Registry().Names()
	assert.Contains(t, names, "trigger")
	assert.Contains(t, names, "logic.and")
	assert.Contains(t, names, "webhook")
}

func TestNewAppPanicsOnBadGraph(t *testing.T) {
	graphPath, modulesPath := writeGraph(t, `node "trigger" {`)
	out := &bytes.Buffer{}

	assert.Panics(t, func() {
		app.NewApp(out, testConfig(t, graphPath, modulesPath), hcl.NewLoader())
	})
}

func TestRunServesUntilCancelled(t *testing.T) {
	graphPath, modulesPath := writeGraph(t, sampleGraph)
	out := &bytes.Buffer{}
	a := app.NewApp(out, testConfig(t, graphPath, modulesPath), hcl.NewLoader())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the server a moment to come up, then shut it down.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
