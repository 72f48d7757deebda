/*
Package monitoring provides Prometheus metrics for the telemetry service.

# Overview

Metrics live on a dedicated registry rather than the global default, so
several servers (and tests) can coexist in one process. The registry also
carries the Go runtime and process collectors.

# Features

- HTTP request metrics (latency, throughput, size) by route template
- Normalization count, latency and output size by mode
- Sandbox run outcomes, latency and idle pool size
- Event outcomes, encoded payload size and circuit breaker state

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(func(d time.Duration) {
		metrics.RecordNormalize("size", d, size)
	})
	// ... normalize ...
	timer.Stop()

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
*/
package monitoring
