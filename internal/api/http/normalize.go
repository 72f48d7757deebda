package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize"
)

// NormalizeRequest asks for a JSON-safe copy of Value. Unset budgets fall
// back to the server configuration; a negative MaxSize disables the size
// bound.
type NormalizeRequest struct {
	Value         any  `json:"value"`
	Depth         *int `json:"depth,omitempty"`
	MaxProperties *int `json:"max_properties,omitempty"`
	MaxSize       *int `json:"max_size,omitempty"`
}

// NormalizeResponse carries the normalized tree and its JSON size.
type NormalizeResponse struct {
	Normalized any `json:"normalized" yaml:"normalized"`
	Size       int `json:"size" yaml:"size"`
}

// Normalize handles POST /v1/normalize
func (h *Handlers) Normalize(c *gin.Context) {
	var req NormalizeRequest
	if err := h.bindJSON(c, &req); err != nil {
		c.JSON(bodyStatus(err), gin.H{"error": err.Error()})
		return
	}

	var opts []normalize.Option
	if req.Depth != nil {
		opts = append(opts, normalize.WithDepth(*req.Depth))
	}
	if req.MaxProperties != nil {
		opts = append(opts, normalize.WithMaxProperties(*req.MaxProperties))
	}
	bounded := req.MaxSize == nil || *req.MaxSize >= 0
	if req.MaxSize != nil && bounded {
		opts = append(opts, normalize.WithMaxSize(*req.MaxSize))
	}
	n := h.normalizer.With(opts...)

	mode := "plain"
	if bounded {
		mode = "size"
	}

	var out any
	timer := monitoring.NewTimer(nil)
	if bounded {
		out = n.NormalizeToSize(req.Value)
	} else {
		out = n.Normalize(req.Value)
	}
	elapsed := timer.Stop()

	size, err := normalize.Size(out)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.metrics.RecordNormalize(mode, elapsed, size)

	render(c, http.StatusOK, NormalizeResponse{Normalized: out, Size: size})
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
