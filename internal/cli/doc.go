// Package cli parses command-line arguments into an app.Config. It is the
// only package that knows about flags; everything else consumes the typed
// configuration.
package cli
