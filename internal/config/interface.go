package config

import "context"

// Loader turns configuration paths (files or directories) into a unified
// Model. Implementations own the file format; everything past the loader
// works on the model alone.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, error)
}
