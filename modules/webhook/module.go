// Package webhook provides the webhook action kind: an HTTP POST fired at a
// configured URL when the node activates, carrying the active inputs as a
// JSON body.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/internal/typecheck"
)

const defaultTimeout = 10 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client defaults to an http.Client with a 10s timeout.
	Client *http.Client
}

// Register registers the webhook kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	r.RegisterKind(&registry.Kind{
		Name: "webhook",
		Handles: []graph.Handle{
			{ID: "fire", Direction: graph.DirectionTarget, TypeCode: typecheck.TypeBoolean, Position: "left", Required: true},
			{ID: "payload", Direction: graph.DirectionTarget, TypeCode: typecheck.TypeJSON, Position: "left", Required: false},
			{ID: "status", Direction: graph.DirectionSource, TypeCode: typecheck.TypeNumber, Position: "right"},
		},
		ResetKeys: []string{"url"},
		Compute: func(ctx context.Context, data, activeInputs map[string]any) (*registry.ComputeResult, error) {
			url, _ := data["url"].(string)
			if url == "" {
				return nil, fmt.Errorf("webhook: url is not configured")
			}

			body, err := json.Marshal(activeInputs)
			if err != nil {
				return nil, fmt.Errorf("webhook: encoding payload: %w", err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("webhook: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("webhook: %w", err)
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, fmt.Errorf("webhook: unexpected status %d from %s", resp.StatusCode, url)
			}

			ctxlog.FromContext(ctx).Debug("Webhook delivered.", "url", url, "status", resp.StatusCode)
			return &registry.ComputeResult{
				Outputs: map[string]any{"status": resp.StatusCode},
			}, nil
		},
	})
}
