package email_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowgraph/internal/engine"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/internal/supervisor"
	"github.com/vk/flowgraph/modules/email"
	"github.com/vk/flowgraph/modules/trigger"
)

type fakeSender struct {
	sent []email.Message
}

func (f *fakeSender) Send(_ context.Context, msg email.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func newEngine(t *testing.T, sender email.Sender) *engine.Engine {
	t.Helper()
	reg := registry.New()
	(&trigger.Module{}).Register(reg)
	(&email.Module{Sender: sender}).Register(reg)
	e := engine.New(reg, engine.Options{})
	t.Cleanup(e.Close)
	return e
}

func wire(t *testing.T, e *engine.Engine, data map[string]any) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.AddNode(ctx, "t", "trigger", map[string]any{"enabled": false}))
	require.NoError(t, e.AddNode(ctx, "mail", "email", data))
	require.NoError(t, e.AddConnection(ctx, graph.Connection{
		SourceNodeID: "t", SourceHandleID: "out", TargetNodeID: "mail", TargetHandleID: "send",
	}))
}

func TestSendOnActivation(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	e := newEngine(t, sender)
	wire(t, e, map[string]any{"to": "ops@example.com", "subject": "alert", "body": "fired"})

	require.Empty(t, sender.sent, "nothing sends while the trigger is off")

	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ops@example.com", sender.sent[0].To)
	assert.Equal(t, "fired", sender.sent[0].Body)
}

func TestMissingRecipientErrors(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	e := newEngine(t, sender)
	wire(t, e, nil)

	require.NoError(t, e.SetNodeData(ctx, "t", map[string]any{"enabled": true}))

	active, ok := e.Activation("mail")
	require.True(t, ok)
	assert.False(t, active)
	assert.Equal(t, supervisor.Errored, e.Supervisor().StateOf("mail"))

	// Setting the recipient touches a reset key and recovers immediately.
	require.NoError(t, e.SetNodeData(ctx, "mail", map[string]any{"to": "ops@example.com"}))
	assert.Equal(t, supervisor.Healthy, e.Supervisor().StateOf("mail"))
	require.Len(t, sender.sent, 1)
}
