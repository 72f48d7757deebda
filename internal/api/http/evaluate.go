package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/sandbox"
)

// EvaluateRequest runs Script, optionally against a document parsed from HTML.
type EvaluateRequest struct {
	Script string `json:"script"`
	HTML   string `json:"html,omitempty"`
}

// EvaluateResponse is the JSON form of a sandbox result.
type EvaluateResponse struct {
	Value      any                 `json:"value"`
	Exception  *ExceptionResponse  `json:"exception,omitempty"`
	Console    []ConsoleEntry      `json:"console"`
	DOMChanges []DOMChangeResponse `json:"dom_changes,omitempty"`
	DurationMS float64             `json:"duration_ms"`
}

// ExceptionResponse describes an uncaught throw.
type ExceptionResponse struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Value   any    `json:"value"`
}

// ConsoleEntry is one console call.
type ConsoleEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Args    []any     `json:"args"`
	Time    time.Time `json:"time"`
}

// DOMChangeResponse is one recorded DOM mutation.
type DOMChangeResponse struct {
	Type     string `json:"type"`
	Selector string `json:"selector"`
	Property string `json:"property"`
	Value    any    `json:"value"`
}

// Evaluate handles POST /v1/evaluate
func (h *Handlers) Evaluate(c *gin.Context) {
	if h.pool == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sandbox disabled"})
		return
	}

	var req EvaluateRequest
	if err := h.bindJSON(c, &req); err != nil {
		c.JSON(bodyStatus(err), gin.H{"error": err.Error()})
		return
	}
	if req.Script == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "script is required"})
		return
	}

	var dom *sandbox.DOM
	if req.HTML != "" {
		parsed, err := sandbox.ParseDOM(req.HTML)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		dom = parsed
	}

	var result *sandbox.Result
	err := h.tracer.Run(c.Request.Context(), "sandbox.execute", func(ctx context.Context, span *tracing.Span) error {
		var err error
		result, err = h.pool.Execute(ctx, req.Script, dom)
		if result != nil && result.Exception != nil {
			span.SetTag("exception.type", result.Exception.Type)
		}
		return err
	})
	h.metrics.SetSandboxAvailable(h.pool.Stats().Available)
	h.metrics.RecordSandboxRun(sandbox.Outcome(result, err), resultDuration(result))
	if err != nil {
		h.logFor(c).Warn("Sandbox execution failed", zap.Error(err))
		c.JSON(evaluateStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, evaluateResponse(result))
}

func resultDuration(r *sandbox.Result) time.Duration {
	if r == nil {
		return 0
	}
	return r.Duration
}

func evaluateStatus(err error) int {
	switch {
	case errors.Is(err, sandbox.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, sandbox.ErrAcquireTimeout), errors.Is(err, sandbox.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func evaluateResponse(r *sandbox.Result) EvaluateResponse {
	resp := EvaluateResponse{
		Value:      r.Value,
		Console:    make([]ConsoleEntry, 0, len(r.Console)),
		DurationMS: durationMS(r.Duration),
	}
	if ex := r.Exception; ex != nil {
		resp.Exception = &ExceptionResponse{
			Type:    ex.Type,
			Message: ex.Message,
			Stack:   ex.Stack,
			Value:   ex.Value,
		}
	}
	for _, e := range r.Console {
		resp.Console = append(resp.Console, ConsoleEntry{
			Level:   e.Level,
			Message: e.Message,
			Args:    e.Args,
			Time:    e.Time,
		})
	}
	for _, ch := range r.DOMChanges {
		resp.DOMChanges = append(resp.DOMChanges, DOMChangeResponse{
			Type:     ch.Type,
			Selector: ch.Selector,
			Property: ch.Property,
			Value:    ch.Value,
		})
	}
	return resp
}
