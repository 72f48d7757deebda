package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/report"
)

// EventRequest describes something to report. At least one of Message,
// Error or Value must be set. Value is the thrown value when it is not an
// error; it is described by its keys and attached size-bounded.
type EventRequest struct {
	Message string            `json:"message,omitempty"`
	Level   string            `json:"level,omitempty"`
	Error   *ErrorPayload     `json:"error,omitempty"`
	Value   any               `json:"value,omitempty"`
	Extra   map[string]any    `json:"extra,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
}

// ErrorPayload is a thrown error as seen by the client.
type ErrorPayload struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

// EventResponse acknowledges an event.
type EventResponse struct {
	EventID   string `json:"event_id"`
	Size      int    `json:"size"`
	Forwarded bool   `json:"forwarded"`
	Error     string `json:"delivery_error,omitempty"`
}

var errEmptyEvent = errors.New("event needs a message, an error or a value")

// SubmitEvent handles POST /v1/events. Bodies may be JSON or CBOR, plain
// or gzip/zstd encoded.
func (h *Handlers) SubmitEvent(c *gin.Context) {
	req, err := h.decodeEvent(c)
	if err != nil {
		h.metrics.RecordEvent("rejected")
		c.JSON(eventStatus(err), gin.H{"error": err.Error()})
		return
	}

	ev, err := h.buildEvent(req)
	if err != nil {
		h.metrics.RecordEvent("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if rid := middleware.GetRequestID(c); rid != "" {
		ev.SetTag("request_id", rid)
	}
	if traceID := tracing.GetTraceID(c.Request.Context()); traceID != "" {
		ev.SetTag("trace_id", string(traceID))
	}

	ev.Normalize(h.normalizer, h.eventDepth)
	ev.Truncate(h.maxValueLength)
	ev.Fingerprint = ev.ComputeFingerprint()

	payload, err := h.encoder.Encode(ev)
	if err != nil {
		h.metrics.RecordEvent("rejected")
		c.JSON(eventStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.metrics.RecordPayload(h.encoder.Codec.Name(), payload.Size)
	h.metrics.RecordEvent("accepted")

	resp := EventResponse{EventID: ev.EventID, Size: payload.Size}
	if h.transport != nil && h.transport.Enabled() {
		err := h.tracer.Run(c.Request.Context(), "event.forward", func(ctx context.Context, span *tracing.Span) error {
			span.SetTag("event.id", ev.EventID)
			span.SetTag("event.codec", payload.ContentType)
			_, err := h.transport.Send(ctx, payload)
			return err
		})
		if err != nil {
			h.metrics.RecordEvent("failed")
			h.logFor(c).Warn("Event forwarding failed",
				zap.String("event_id", ev.EventID),
				zap.Error(err))
			resp.Error = err.Error()
		} else {
			h.metrics.RecordEvent("forwarded")
			resp.Forwarded = true
		}
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *Handlers) decodeEvent(c *gin.Context) (*EventRequest, error) {
	codec, ok := report.CodecForContentType(c.ContentType())
	if !ok {
		return nil, errUnsupportedMedia{c.ContentType()}
	}
	encoding := c.GetHeader("Content-Encoding")
	if encoding == "identity" {
		encoding = ""
	}
	compression, err := report.ParseCompression(encoding)
	if err != nil {
		return nil, errUnsupportedMedia{encoding}
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		return nil, err
	}
	// Some SDKs compress without declaring it
	if c.GetHeader("Content-Encoding") == "" {
		compression = report.SniffCompression(body)
	}
	data, err := compression.Decompress(body, int(h.maxBodyBytes))
	if err != nil {
		return nil, err
	}

	var req EventRequest
	if err := codec.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid %s body: %w", codec.Name(), err)
	}
	return &req, nil
}

func (h *Handlers) buildEvent(req *EventRequest) (*report.Event, error) {
	level, err := report.ParseLevel(req.Level)
	if err != nil {
		return nil, err
	}

	var ev *report.Event
	switch {
	case req.Value != nil:
		ev = report.FromValue(req.Value, h.normalizer)
	case req.Error != nil && req.Error.Value != "":
		ev = report.NewEvent(level)
		typ := req.Error.Type
		if typ == "" {
			typ = "Error"
		}
		ev.Exception = []report.Exception{{Type: typ, Value: req.Error.Value}}
		ev.Message = req.Error.Value
	case req.Message != "":
		if req.Level == "" {
			level = report.LevelInfo
		}
		ev = report.NewEvent(level)
	default:
		return nil, errEmptyEvent
	}

	ev.Level = level
	if req.Message != "" {
		ev.Message = req.Message
	}
	for k, v := range req.Extra {
		ev.SetExtra(k, v)
	}
	for k, v := range req.Tags {
		ev.SetTag(k, v)
	}
	return ev, nil
}

type errUnsupportedMedia struct{ value string }

func (e errUnsupportedMedia) Error() string {
	return fmt.Sprintf("unsupported media type or encoding: %q", e.value)
}

func eventStatus(err error) int {
	var media errUnsupportedMedia
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &media):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &tooLarge), errors.Is(err, report.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
