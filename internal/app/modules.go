package app

import (
	"github.com/vk/flowgraph/internal/registry"
	"github.com/vk/flowgraph/modules/email"
	"github.com/vk/flowgraph/modules/logic"
	"github.com/vk/flowgraph/modules/text"
	"github.com/vk/flowgraph/modules/trigger"
	"github.com/vk/flowgraph/modules/webhook"
)

// coreModules is the definitive list of node-kind modules compiled into the
// flowgraph binary.
var coreModules = []registry.Module{
	&trigger.Module{},
	&logic.Module{},
	&text.Module{},
	&email.Module{},
	&webhook.Module{},
}
