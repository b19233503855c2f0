// Package email provides the email action kind. Delivery is delegated to a
// Sender so the engine-facing contract stays pure; the default sender only
// records the message.
package email

import (
	"context"
	"fmt"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/internal/typecheck"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages. Implementations own transport and credentials.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes the message to the log instead of delivering it.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, msg Message) error {
	ctxlog.FromContext(ctx).Info("Email dispatched.", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Module implements the registry.Module interface for this package.
type Module struct {
	// Sender defaults to LogSender.
	Sender Sender
}

// Register registers the email kind with the engine.
func (m *Module) Register(r *registry.Registry) {
	sender := m.Sender
	if sender == nil {
		sender = LogSender{}
	}

	r.RegisterKind(&registry.Kind{
		Name: "email",
		Handles: []graph.Handle{
			{ID: "send", Direction: graph.DirectionTarget, TypeCode: typecheck.TypeBoolean, Position: "left", Required: true},
			{ID: "body", Direction: graph.DirectionTarget, TypeCode: typecheck.TypeString, Position: "left", Required: false},
			{ID: "sent", Direction: graph.DirectionSource, TypeCode: typecheck.TypeBoolean, Position: "right"},
		},
		ResetKeys: []string{"to", "subject"},
		Compute: func(ctx context.Context, data, activeInputs map[string]any) (*registry.ComputeResult, error) {
			to, _ := data["to"].(string)
			if to == "" {
				return nil, fmt.Errorf("email: recipient is not configured")
			}
			subject, _ := data["subject"].(string)

			body, _ := data["body"].(string)
			if v, ok := activeInputs["body"]; ok {
				body = fmt.Sprintf("%v", v)
			}

			if err := sender.Send(ctx, Message{To: to, Subject: subject, Body: body}); err != nil {
				return nil, fmt.Errorf("email: %w", err)
			}
			return &registry.ComputeResult{
				Outputs: map[string]any{"sent": true},
			}, nil
		},
	})
}
