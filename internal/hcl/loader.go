package hcl

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowgraph/internal/config"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/ref"
	"github.com/vk/flowgraph/internal/schema"
)

// Loader implements config.Loader for HCL files.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under the given paths (files or directories)
// and merges them into a single config model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	model := config.NewModel()
	parser := hclparse.NewParser()

	for _, path := range paths {
		files, err := findHCLFiles(path)
		if err != nil {
			return nil, fmt.Errorf("scanning config path %q: %w", path, err)
		}
		logger.Debug("Discovered HCL files.", "path", path, "count", len(files))

		for _, file := range files {
			f, diags := parser.ParseHCLFile(file)
			if diags.HasErrors() {
				return nil, fmt.Errorf("parsing %s: %w", file, diags)
			}
			partial, err := l.translate(ctx, f.Body)
			if err != nil {
				return nil, fmt.Errorf("translating %s: %w", file, err)
			}
			model.Merge(partial)
		}
	}

	if err := validateModel(model); err != nil {
		return nil, err
	}
	logger.Debug("Configuration model assembled.",
		"nodes", len(model.Nodes), "connections", len(model.Connections), "kinds", len(model.Kinds))
	return model, nil
}

// LoadBytes parses a single in-memory HCL document. Used by tests and by the
// file watcher, which re-reads the graph file itself.
func (l *Loader) LoadBytes(ctx context.Context, filename string, src []byte) (*config.Model, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", filename, diags)
	}
	model, err := l.translate(ctx, f.Body)
	if err != nil {
		return nil, fmt.Errorf("translating %s: %w", filename, err)
	}
	if err := validateModel(model); err != nil {
		return nil, err
	}
	return model, nil
}

// translate decodes one HCL body into a partial config model.
func (l *Loader) translate(ctx context.Context, body hcl.Body) (*config.Model, error) {
	var raw schema.GraphConfig
	if diags := gohcl.DecodeBody(body, nil, &raw); diags.HasErrors() {
		return nil, diags
	}

	model := config.NewModel()

	for _, n := range raw.Nodes {
		data := map[string]any{}
		if n.Data != nil {
			val, diags := n.Data.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("evaluating data for node %q: %w", n.Name, diags)
			}
			converted, err := ctyValueToDataMap(val)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", n.Name, err)
			}
			data = converted
		}
		model.Nodes = append(model.Nodes, &config.Node{
			ID:   n.Name,
			Kind: n.Kind,
			Data: data,
		})
	}

	for _, c := range raw.Connections {
		source, err := ref.Parse(c.Source)
		if err != nil {
			return nil, fmt.Errorf("connection source: %w", err)
		}
		target, err := ref.Parse(c.Target)
		if err != nil {
			return nil, fmt.Errorf("connection target: %w", err)
		}
		model.Connections = append(model.Connections, &config.Connection{
			SourceNode:   source.Node,
			SourceHandle: source.Handle,
			TargetNode:   target.Node,
			TargetHandle: target.Handle,
		})
	}

	for _, k := range raw.Kinds {
		kind, err := l.translateKind(ctx, k)
		if err != nil {
			return nil, err
		}
		model.Kinds[kind.Name] = kind
	}

	return model, nil
}

// translateKind converts one kind manifest block into the model form.
func (l *Loader) translateKind(ctx context.Context, k *schema.KindBlock) (*config.Kind, error) {
	kind := &config.Kind{
		Name:        k.Name,
		Category:    k.Category,
		Description: k.Description,
		ResetKeys:   k.ResetKeys,
	}
	if kind.Category == "" {
		kind.Category = "standard"
	}

	for _, h := range k.Inputs {
		handle, err := translateHandle(ctx, h, "target")
		if err != nil {
			return nil, fmt.Errorf("kind %q input %q: %w", k.Name, h.ID, err)
		}
		kind.Handles = append(kind.Handles, handle)
	}
	for _, h := range k.Outputs {
		handle, err := translateHandle(ctx, h, "source")
		if err != nil {
			return nil, fmt.Errorf("kind %q output %q: %w", k.Name, h.ID, err)
		}
		kind.Handles = append(kind.Handles, handle)
	}

	return kind, nil
}

func translateHandle(ctx context.Context, h *schema.HandleBlock, direction string) (*config.Handle, error) {
	code, err := typeExprToCode(ctx, h.Type)
	if err != nil {
		return nil, err
	}

	// Inputs are activation-relevant unless the manifest opts out.
	required := direction == "target"
	if h.Required != nil {
		required = *h.Required
	}

	position := h.Position
	if position == "" {
		if direction == "target" {
			position = "left"
		} else {
			position = "right"
		}
	}

	return &config.Handle{
		ID:        h.ID,
		Direction: direction,
		TypeCode:  code,
		Position:  position,
		Required:  required,
	}, nil
}

// validateModel enforces cross-block invariants the decoder cannot express.
func validateModel(model *config.Model) error {
	seen := make(map[string]struct{}, len(model.Nodes))
	for _, n := range model.Nodes {
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("duplicate node instance name %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	for _, k := range model.Kinds {
		handles := make(map[string]struct{}, len(k.Handles))
		for _, h := range k.Handles {
			if _, dup := handles[h.ID]; dup {
				return fmt.Errorf("kind %q declares duplicate handle id %q", k.Name, h.ID)
			}
			handles[h.ID] = struct{}{}
		}
	}
	return nil
}

// findHCLFiles recursively collects .hcl files under the root path, which may
// itself be a single file.
func findHCLFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
