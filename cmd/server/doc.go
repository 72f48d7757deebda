// Package main is the entry point for the AgentOS telemetry server.
//
// The server turns arbitrary values into bounded, JSON-safe trees and
// reports them as events:
//   - POST /v1/normalize returns a normalized copy of a value
//   - POST /v1/evaluate runs a script in a pooled JavaScript sandbox
//   - POST /v1/events builds, encodes and forwards an event
//
// Configuration:
//   - TOML file given by -config or CONFIG_FILE
//   - Environment variables (override the file)
//   - CLI flags (override everything)
//   - Defaults for development
//
// Usage:
//
//	# Forward CBOR events, zstd compressed
//	./server -port 8000 -endpoint https://collector.example/api/events -codec cbor -compression zstd
//
//	# Development mode (colored logs, debug level)
//	./server -dev -log-level debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
