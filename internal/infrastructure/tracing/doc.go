/*
Package tracing provides lightweight request tracing.

Every HTTP request gets a span carried in its context. The handlers open
child spans around sandbox runs and event forwarding, and the transport
propagates the active span to the upstream collector through headers.
Finished spans are logged asynchronously through zap; their log fields
are normalized, so arbitrary values are safe to attach.

	tracer := tracing.New("telemetry", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	err := tracer.Run(ctx, "event.forward", func(ctx context.Context, span *tracing.Span) error {
		span.SetTag("event.id", ev.EventID)
		_, err := client.Send(ctx, payload)
		return err
	})

Headers:
  - X-Trace-ID identifies the whole request flow
  - X-Span-ID identifies the calling operation

IDs are prefixed ULIDs. Inbound IDs longer than 64 bytes are ignored.
*/
package tracing
