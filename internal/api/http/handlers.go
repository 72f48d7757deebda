package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/report"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/transport"
)

// DefaultMaxBodyBytes bounds request bodies of the JSON endpoints.
const DefaultMaxBodyBytes = 1 << 20

// Options holds the dependencies of the handler set. Pool and Transport
// may be nil, disabling evaluation and forwarding respectively.
type Options struct {
	Normalizer     *normalize.Normalizer
	Pool           *sandbox.Pool
	Encoder        *report.Encoder
	Transport      *transport.Client
	Metrics        *monitoring.Metrics
	Logger         *logging.Logger
	Tracer         *tracing.Tracer // optional; wraps sandbox runs and event forwarding in spans
	EventDepth     int
	MaxValueLength int
	MaxBodyBytes   int64
}

// Handlers contains all HTTP handlers
type Handlers struct {
	normalizer     *normalize.Normalizer
	pool           *sandbox.Pool
	encoder        *report.Encoder
	transport      *transport.Client
	metrics        *monitoring.Metrics
	log            *logging.Logger
	tracer         *tracing.Tracer
	eventDepth     int
	maxValueLength int
	maxBodyBytes   int64
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	h := &Handlers{
		normalizer:     opts.Normalizer,
		pool:           opts.Pool,
		encoder:        opts.Encoder,
		transport:      opts.Transport,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		tracer:         opts.Tracer,
		eventDepth:     opts.EventDepth,
		maxValueLength: opts.MaxValueLength,
		maxBodyBytes:   opts.MaxBodyBytes,
	}
	if h.normalizer == nil {
		h.normalizer = normalize.New(normalize.WithMaxProperties(report.DefaultMaxBreadth))
	}
	if h.encoder == nil {
		h.encoder = &report.Encoder{Codec: report.JSONCodec{}, Compression: report.CompressionNone}
	}
	if h.metrics == nil {
		h.metrics = monitoring.NewMetrics()
	}
	if h.log == nil {
		h.log = logging.NewNop()
	}
	if h.eventDepth <= 0 {
		h.eventDepth = report.DefaultDepth
	}
	if h.maxValueLength <= 0 {
		h.maxValueLength = report.DefaultMaxValueLength
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = DefaultMaxBodyBytes
	}
	return h
}

// Register attaches all routes to r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{})))
	r.GET("/metrics/json", h.MetricsJSON)

	v1 := r.Group("/v1")
	v1.POST("/normalize", h.Normalize)
	v1.POST("/evaluate", h.Evaluate)
	v1.POST("/events", h.SubmitEvent)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "AgentOS Telemetry",
		"version": report.DefaultSDK.Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"sandbox": gin.H{"enabled": h.pool != nil},
		"transport": gin.H{
			"enabled": h.transport != nil && h.transport.Enabled(),
		},
	}
	if h.pool != nil {
		body["sandbox"] = h.pool.Stats()
	}
	if h.transport != nil && h.transport.Enabled() {
		body["transport"] = gin.H{
			"enabled": true,
			"breaker": h.transport.Breaker(),
		}
	}
	c.JSON(http.StatusOK, body)
}

// MetricsJSON returns the metrics snapshot
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

var bodyDecoder = sonic.Config{UseInt64: true}.Froze()

// bindJSON decodes a bounded JSON body. Integers decode as int64 so they
// survive normalization unchanged.
func (h *Handlers) bindJSON(c *gin.Context, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("empty request body")
	}
	if err := bodyDecoder.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func bodyStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// render writes body as YAML when the client asks for it, JSON otherwise.
func render(c *gin.Context, status int, body any) {
	accept := c.GetHeader("Accept")
	if strings.Contains(accept, "application/yaml") || strings.Contains(accept, "application/x-yaml") {
		data, err := yaml.Marshal(body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(status, "application/yaml; charset=utf-8", data)
		return
	}
	c.JSON(status, body)
}

// logFor returns the handler logger tagged with the request's IDs.
func (h *Handlers) logFor(c *gin.Context) *logging.Logger {
	return h.log.ForRequest(middleware.GetRequestID(c), string(tracing.GetTraceID(c.Request.Context())))
}
