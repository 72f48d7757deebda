/*
Package http implements the REST API of the telemetry service.

# Routes

	GET  /              service banner
	GET  /health        sandbox pool and transport breaker status
	GET  /metrics       Prometheus exposition
	GET  /metrics/json  metrics snapshot
	POST /v1/normalize  {value, depth?, max_properties?, max_size?} -> {normalized, size}
	POST /v1/evaluate   {script, html?} -> sandbox result
	POST /v1/events     {message?, level?, error?, value?, extra?, tags?} -> {event_id, size, forwarded}

/v1/normalize answers in YAML when the Accept header asks for
application/yaml. /v1/events accepts JSON or CBOR bodies, optionally gzip
or zstd encoded, and forwards the encoded event when a transport endpoint
is configured.
*/
package http
