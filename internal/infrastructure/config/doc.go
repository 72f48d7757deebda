// Package config provides 12-factor configuration management for the
// telemetry service.
//
// Configuration is loaded from environment variables with sensible defaults.
// LoadFile layers a TOML file between the defaults and the environment, and
// CLI flags can override both for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, CORS origins)
//   - Normalize: depth, breadth and byte budgets of normalization
//   - Sandbox: JavaScript pool size, timeouts and result budgets
//   - Report: event codec, compression and value length
//   - Transport: upstream endpoint, retries and circuit breaker
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS
//   - NORMALIZE_DEPTH, NORMALIZE_MAX_PROPERTIES, NORMALIZE_MAX_SIZE
//   - SANDBOX_POOL_SIZE, SANDBOX_TIMEOUT, SANDBOX_DEPTH
//   - REPORT_CODEC, REPORT_COMPRESSION
//   - TRANSPORT_ENDPOINT, TRANSPORT_AUTH_TOKEN, TRANSPORT_RETRY_MAX
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
