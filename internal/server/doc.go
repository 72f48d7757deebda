// Package server wires the telemetry service together.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (request IDs, recovery, metrics, CORS, rate limiting)
//   - Normalizer configured from the environment
//   - Sandbox pool for script evaluation
//   - Event encoder and delivery transport
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Create metrics, encoder, sandbox pool and transport
//  4. Setup HTTP routes and middleware
//  5. Start HTTP server
//  6. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
