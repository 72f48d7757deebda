package report

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize"
)

// Level is the severity of an event.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// ParseLevel parses a severity name. An empty name means LevelError.
func ParseLevel(name string) (Level, error) {
	switch l := Level(strings.ToLower(name)); l {
	case "":
		return LevelError, nil
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelFatal:
		return l, nil
	case "warn":
		return LevelWarning, nil
	}
	return "", fmt.Errorf("unknown level: %q", name)
}

const (
	// Platform identifies events produced by this service.
	Platform = "go"

	// DefaultDepth is the normalization depth applied to event data.
	DefaultDepth = 3
	// DefaultMaxBreadth bounds the entries kept per object in event data.
	DefaultMaxBreadth = 1000
	// DefaultMaxValueLength bounds messages and exception values.
	DefaultMaxValueLength = 250
	// MaxKeysLength bounds the key list of a non-error exception message.
	MaxKeysLength = 40

	serializedKey = "__serialized__"
)

// SDK names the producer of an event.
type SDK struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DefaultSDK is stamped on new events.
var DefaultSDK = SDK{Name: "agentos.telemetry", Version: "1.0.0"}

// Exception is one entry of an exception chain.
type Exception struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

// Breadcrumb is a trail entry recorded before the event.
type Breadcrumb struct {
	Timestamp time.Time      `json:"timestamp"`
	Category  string         `json:"category,omitempty"`
	Message   string         `json:"message,omitempty"`
	Level     Level          `json:"level,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Event is an error report.
type Event struct {
	EventID     string            `json:"event_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Level       Level             `json:"level"`
	Platform    string            `json:"platform"`
	Message     string            `json:"message,omitempty"`
	Exception   []Exception       `json:"exception,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Extra       map[string]any    `json:"extra,omitempty"`
	Contexts    map[string]any    `json:"contexts,omitempty"`
	Breadcrumbs []Breadcrumb      `json:"breadcrumbs,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	SDK         SDK               `json:"sdk"`
}

// NewEventID returns a random identifier in the 32-character hex form.
func NewEventID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")
}

// NewEvent creates an empty event at level.
func NewEvent(level Level) *Event {
	return &Event{
		EventID:   NewEventID(),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Platform:  Platform,
		SDK:       DefaultSDK,
	}
}

// FromError builds an exception event from err and its wrapped causes,
// innermost cause first. The error itself is kept in extra so that its
// fields survive normalization.
func FromError(err error) *Event {
	ev := NewEvent(LevelError)
	for e := err; e != nil; e = errors.Unwrap(e) {
		ev.Exception = append([]Exception{{Type: errorType(e), Value: e.Error()}}, ev.Exception...)
	}
	ev.SetExtra("error", err)
	return ev
}

// FromValue builds an event from something thrown that is not an error.
// Strings become the message; anything else is described by its keys and
// attached whole, size-bounded by n, under extra.__serialized__.
func FromValue(value any, n *normalize.Normalizer) *Event {
	if err, ok := value.(error); ok {
		return FromError(err)
	}
	ev := NewEvent(LevelError)
	if s, ok := value.(string); ok {
		ev.Message = s
		ev.Exception = []Exception{{Type: "Error", Value: s, Synthetic: true}}
		return ev
	}
	if n == nil {
		n = normalize.New(normalize.WithMaxProperties(DefaultMaxBreadth))
	}
	msg := "Non-Error exception captured with keys: " + ExtractKeysForMessage(value, MaxKeysLength)
	ev.Message = msg
	ev.Exception = []Exception{{Type: "Error", Value: msg, Synthetic: true}}
	ev.SetExtra(serializedKey, n.NormalizeToSize(value))
	return ev
}

// SetExtra records additional data on the event.
func (e *Event) SetExtra(key string, value any) {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
}

// SetTag records a searchable tag on the event.
func (e *Event) SetTag(key, value string) {
	if e.Tags == nil {
		e.Tags = make(map[string]string)
	}
	e.Tags[key] = value
}

// AddBreadcrumb appends a breadcrumb, stamping it if it has no time.
func (e *Event) AddBreadcrumb(b Breadcrumb) {
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now().UTC()
	}
	e.Breadcrumbs = append(e.Breadcrumbs, b)
}

// Normalize replaces the free-form parts of the event (extra, contexts
// and breadcrumb data) with normalized copies at depth. Non-positive
// depths select DefaultDepth. Already normalized data is left untouched,
// so a size-bounded extra.__serialized__ keeps its shape.
func (e *Event) Normalize(n *normalize.Normalizer, depth int) {
	if n == nil {
		n = normalize.New(normalize.WithMaxProperties(DefaultMaxBreadth))
	}
	if depth <= 0 {
		depth = DefaultDepth
	}
	n = n.With(normalize.WithDepth(depth))

	if e.Extra != nil {
		serialized, hasSerialized := e.Extra[serializedKey]
		e.Extra = normalizeMap(n, e.Extra)
		if hasSerialized {
			e.Extra[serializedKey] = serialized
		}
	}
	if e.Contexts != nil {
		e.Contexts = normalizeMap(n, e.Contexts)
	}
	for i := range e.Breadcrumbs {
		if e.Breadcrumbs[i].Data != nil {
			e.Breadcrumbs[i].Data = normalizeMap(n, e.Breadcrumbs[i].Data)
		}
	}
}

// normalizeMap keeps the top level a Go map; nested mappings stay ordered.
func normalizeMap(n *normalize.Normalizer, m map[string]any) map[string]any {
	fields, _ := n.Normalize(m).(normalize.Fields)
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

// Truncate bounds the message, exception values and breadcrumb messages
// to maxLength characters.
func (e *Event) Truncate(maxLength int) {
	e.Message = Truncate(e.Message, maxLength)
	for i := range e.Exception {
		e.Exception[i].Value = Truncate(e.Exception[i].Value, maxLength)
	}
	for i := range e.Breadcrumbs {
		e.Breadcrumbs[i].Message = Truncate(e.Breadcrumbs[i].Message, maxLength)
	}
}

func errorType(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
