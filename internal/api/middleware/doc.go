// Package middleware provides the HTTP middleware of the telemetry API.
//
// Middleware stack includes:
//   - RequestID: ULID request IDs, echoed in X-Request-ID
//   - Recovery: Panic recovery, logging the normalized panic value
//   - Logger: One debug line per request
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting with idle eviction
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Recovery(log))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(origins...)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
