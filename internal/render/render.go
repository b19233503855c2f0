// Package render defines the rendering adapter capability: a subscriber that
// receives propagation events synchronously as Tier 1 of the propagation
// contract. The engine makes no assumption about how or when a subscriber
// paints state; the no-op subscriber is the default, selected explicitly at
// construction time.
package render

import "github.com/vk/flowgraph/internal/event"

// Subscriber receives every activation flip. OnPropagation is called
// synchronously from inside the settle pass, so implementations must return
// quickly and must not call back into the engine's mutation API.
type Subscriber interface {
	OnPropagation(ev event.Propagation)
}

// Nop discards all events.
type Nop struct{}

func (Nop) OnPropagation(event.Propagation) {}

// Func adapts a plain function into a Subscriber.
type Func func(ev event.Propagation)

func (f Func) OnPropagation(ev event.Propagation) { f(ev) }
