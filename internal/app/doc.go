// Package app contains the application lifecycle: configuration, logger
// setup, registry assembly, engine construction and the HTTP serving loop,
// decoupled from any specific entrypoint like a CLI.
package app
