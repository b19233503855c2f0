// Package api exposes the engine's mutation surface over HTTP. Every graph
// edit a client can make maps onto exactly one engine entry point, so the
// single-orchestrator guarantee holds regardless of how many clients
// connect. Activation flips stream out over the websocket endpoint.
package api
