package tracing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/shared/id"
)

// Header names used for propagation
const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"

	maxHeaderID = 64
)

// TraceID represents a unique trace identifier
type TraceID string

// SpanID represents a unique span identifier
type SpanID string

// Span represents a single operation in a trace
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	Service    string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Tags       map[string]string
	Logs       []LogEntry
	Error      error
	StatusCode int

	mu sync.Mutex
}

// LogEntry represents a log within a span
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Tracer collects finished spans and logs them asynchronously
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span

	closeOnce sync.Once
	done      sync.WaitGroup
}

// New creates a new tracer instance
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1000),
	}

	t.done.Add(1)
	go t.collectSpans()

	return t
}

// StartSpan creates a child of the span in ctx, or a new root span
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = TraceID(id.Default().GenerateWithPrefix(id.TracePrefix))
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.Default().GenerateWithPrefix(id.SpanPrefix)),
		ParentID:  GetSpanID(ctx),
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)

	return span, ctx
}

// Run runs fn in a child span of ctx named name. The span records the
// error fn returns and is submitted when fn returns. A nil tracer runs fn
// without a span.
func (t *Tracer) Run(ctx context.Context, name string, fn func(ctx context.Context, span *Span) error) error {
	if t == nil {
		return fn(ctx, &Span{Tags: map[string]string{}})
	}
	span, ctx := t.StartSpan(ctx, name)
	defer func() {
		span.Finish()
		t.Submit(span)
	}()

	err := fn(ctx, span)
	if err != nil {
		span.SetError(err)
	}
	return err
}

// Finish marks the span as complete
func (s *Span) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Error = err
	if s.StatusCode < 500 {
		s.StatusCode = 500
	}
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusCode = code
}

// Log adds a log entry to the span
func (s *Span) Log(message string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Logs = append(s.Logs, LogEntry{
		Timestamp: time.Now(),
		Message:   message,
		Fields:    fields,
	})
}

func (t *Tracer) collectSpans() {
	defer t.done.Done()
	for span := range t.spans {
		t.processSpan(span)
	}
}

// processSpan logs span data. Span log fields are arbitrary caller values,
// so they go through the normalizing encoder.
func (t *Tracer) processSpan(span *Span) {
	span.mu.Lock()
	defer span.mu.Unlock()

	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
	}

	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	if len(span.Tags) > 0 {
		fields = append(fields, zap.Any("tags", span.Tags))
	}
	if len(span.Logs) > 0 {
		fields = append(fields, logging.Value("logs", span.Logs))
	}

	if span.Error != nil {
		fields = append(fields, zap.Error(span.Error))
		t.logger.Error("span completed with error", fields...)
	} else {
		t.logger.Debug("span completed", fields...)
	}
}

// Submit sends a span to the collector
func (t *Tracer) Submit(span *Span) {
	defer func() {
		// Submit after Close drops the span.
		_ = recover()
	}()
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
		)
	}
}

// Close stops the collector after draining submitted spans
func (t *Tracer) Close() {
	t.closeOnce.Do(func() {
		close(t.spans)
	})
	t.done.Wait()
}

// ExtractTraceContext extracts trace context from headers. Oversized IDs
// are ignored.
func ExtractTraceContext(headers map[string]string) (TraceID, SpanID) {
	traceID := headers[TraceHeader]
	spanID := headers[SpanHeader]
	if len(traceID) > maxHeaderID {
		traceID = ""
	}
	if len(spanID) > maxHeaderID || traceID == "" {
		spanID = ""
	}
	return TraceID(traceID), SpanID(spanID)
}

// InjectTraceContext injects trace context into headers
func InjectTraceContext(ctx context.Context, headers map[string]string) {
	if traceID := GetTraceID(ctx); traceID != "" {
		headers[TraceHeader] = string(traceID)
	}
	if spanID := GetSpanID(ctx); spanID != "" {
		headers[SpanHeader] = string(spanID)
	}
}

// Context keys for trace propagation
type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}

// GetSpanID retrieves the span ID from context
func GetSpanID(ctx context.Context) SpanID {
	if spanID, ok := ctx.Value(spanIDKey).(SpanID); ok {
		return spanID
	}
	return ""
}
