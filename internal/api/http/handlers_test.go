package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/report"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/transport"
)

func setupRouter(t *testing.T, opts Options) (*gin.Engine, *Handlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(
			normalize.WithDepth(3),
			normalize.WithMaxProperties(1000),
		)
	}
	h := NewHandlers(opts)
	router := gin.New()
	router.Use(middleware.RequestID())
	h.Register(router)
	return router, h
}

func newPool(t *testing.T, cfg sandbox.Config) *sandbox.Pool {
	t.Helper()
	pool, err := sandbox.NewPool(cfg, 1)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t, Options{Pool: newPool(t, sandbox.DefaultConfig())})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["sandbox"].(map[string]any)["size"])
	assert.Equal(t, false, body["transport"].(map[string]any)["enabled"])
}

func TestNormalize(t *testing.T) {
	router, _ := setupRouter(t, Options{})
	deep := `{"a":{"b":{"c":{"d":1}}}}`

	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       string
	}{
		{
			name:       "default depth",
			body:       `{"value":` + deep + `}`,
			wantStatus: http.StatusOK,
			want:       `{"normalized":{"a":{"b":{"c":"[Object]"}}},"size":28}`,
		},
		{
			name:       "explicit depth",
			body:       `{"value":` + deep + `,"depth":1}`,
			wantStatus: http.StatusOK,
			want:       `{"normalized":{"a":"[Object]"},"size":16}`,
		},
		{
			name:       "max properties",
			body:       `{"value":[1,2,3],"max_properties":2}`,
			wantStatus: http.StatusOK,
			want:       `{"normalized":[1,2,"[MaxProperties ~]"],"size":25}`,
		},
		{
			name:       "shrinks to max size",
			body:       `{"value":{"a":{"b":"` + strings.Repeat("x", 100) + `"}},"max_size":20}`,
			wantStatus: http.StatusOK,
			want:       `{"normalized":{"a":"[Object]"},"size":16}`,
		},
		{
			name:       "negative max size is unbounded",
			body:       `{"value":{"a":"` + strings.Repeat("x", 10) + `"},"max_size":-1}`,
			wantStatus: http.StatusOK,
			want:       `{"normalized":{"a":"xxxxxxxxxx"},"size":18}`,
		},
		{
			name:       "large integers keep precision",
			body:       `{"value":12345678901234567}`,
			wantStatus: http.StatusOK,
			want:       `{"normalized":12345678901234567,"size":17}`,
		},
		{
			name:       "invalid json",
			body:       `{"value":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/v1/normalize", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.want != "" {
				assert.JSONEq(t, tt.want, w.Body.String())
			}
		})
	}
}

func TestNormalizeRecordsMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	router, _ := setupRouter(t, Options{Metrics: metrics})

	postJSON(router, "/v1/normalize", `{"value":1}`)
	postJSON(router, "/v1/normalize", `{"value":1,"max_size":-1}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NormalizeTotal.WithLabelValues("size")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NormalizeTotal.WithLabelValues("plain")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `telemetry_normalize_total{mode="size"} 1`)
}

func TestNormalizeYAML(t *testing.T) {
	router, _ := setupRouter(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/normalize", strings.NewReader(`{"value":{"name":"x","n":2}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/yaml")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/yaml"))

	var out struct {
		Normalized map[string]any `yaml:"normalized"`
		Size       int            `yaml:"size"`
	}
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "x", out.Normalized["name"])
	assert.Equal(t, 18, out.Size)
}

func TestNormalizeBodyLimit(t *testing.T) {
	router, _ := setupRouter(t, Options{MaxBodyBytes: 32})

	w := postJSON(router, "/v1/normalize", `{"value":"`+strings.Repeat("x", 64)+`"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestEvaluate(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	router, _ := setupRouter(t, Options{Pool: newPool(t, cfg)})

	t.Run("completion value", func(t *testing.T) {
		w := postJSON(router, "/v1/evaluate", `{"script":"console.log('hi', 1); ({a: 1, f: function named() {}})"}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, map[string]any{"a": float64(1), "f": "[Function: named]"}, body["value"])
		console := body["console"].([]any)
		require.Len(t, console, 1)
		assert.Equal(t, "log", console[0].(map[string]any)["level"])
		assert.Equal(t, []any{"hi", float64(1)}, console[0].(map[string]any)["args"])
	})

	t.Run("exception", func(t *testing.T) {
		w := postJSON(router, "/v1/evaluate", `{"script":"throw new TypeError('bad')"}`)

		require.Equal(t, http.StatusOK, w.Code)
		ex := decode(t, w)["exception"].(map[string]any)
		assert.Equal(t, "TypeError", ex["type"])
		assert.Equal(t, "bad", ex["message"])
	})

	t.Run("document", func(t *testing.T) {
		w := postJSON(router, "/v1/evaluate",
			`{"script":"document.querySelector('#x').getAttribute('data-v')","html":"<div id=\"x\" data-v=\"7\"></div>"}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "7", decode(t, w)["value"])
	})

	t.Run("timeout", func(t *testing.T) {
		w := postJSON(router, "/v1/evaluate", `{"script":"while (true) {}"}`)

		assert.Equal(t, http.StatusRequestTimeout, w.Code)
	})

	t.Run("missing script", func(t *testing.T) {
		w := postJSON(router, "/v1/evaluate", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEvaluateWithoutPool(t *testing.T) {
	router, _ := setupRouter(t, Options{})

	w := postJSON(router, "/v1/evaluate", `{"script":"1"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type upstream struct {
	mu      sync.Mutex
	status  int
	bodies  [][]byte
	headers []http.Header
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.bodies = append(u.bodies, data)
	u.headers = append(u.headers, r.Header.Clone())
	status := u.status
	u.mu.Unlock()
	w.WriteHeader(status)
}

func (u *upstream) request(t *testing.T, i int) ([]byte, http.Header) {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	require.Greater(t, len(u.bodies), i)
	return u.bodies[i], u.headers[i]
}

func newTransport(t *testing.T, u *upstream) *transport.Client {
	t.Helper()
	srv := httptest.NewServer(u)
	t.Cleanup(srv.Close)
	cfg := transport.DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.RetryMax = 0
	return transport.New(cfg, nil)
}

func TestSubmitEventForwards(t *testing.T) {
	up := &upstream{status: http.StatusOK}
	metrics := monitoring.NewMetrics()
	router, _ := setupRouter(t, Options{Transport: newTransport(t, up), Metrics: metrics})

	w := postJSON(router, "/v1/events", `{"value":{"foo":1,"bar":{"x":{"y":{"z":1}}}},"tags":{"env":"test"}}`)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["forwarded"])
	assert.Len(t, body["event_id"], 32)

	sent, header := up.request(t, 0)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, body["event_id"], header.Get("X-Event-ID"))

	ev, err := report.Decode(sent, report.JSONCodec{}, report.CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, "Non-Error exception captured with keys: bar, foo", ev.Message)
	assert.Equal(t, report.LevelError, ev.Level)
	assert.Equal(t, "test", ev.Tags["env"])
	assert.Equal(t, ev.ComputeFingerprint(), ev.Fingerprint)
	assert.NotEmpty(t, ev.Tags["request_id"])
	assert.Equal(t, map[string]any{
		"foo": float64(1),
		"bar": map[string]any{"x": map[string]any{"y": "[Object]"}},
	}, ev.Extra["__serialized__"])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsTotal.WithLabelValues("forwarded")))
}

func TestSubmitEventDeliveryFailure(t *testing.T) {
	up := &upstream{status: http.StatusInternalServerError}
	metrics := monitoring.NewMetrics()
	router, _ := setupRouter(t, Options{Transport: newTransport(t, up), Metrics: metrics})

	w := postJSON(router, "/v1/events", `{"message":"disk almost full","level":"warning"}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["forwarded"])
	assert.Contains(t, body["delivery_error"], "500")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsTotal.WithLabelValues("failed")))
}

func TestSubmitEventBodies(t *testing.T) {
	up := &upstream{status: http.StatusOK}
	router, _ := setupRouter(t, Options{Transport: newTransport(t, up), MaxBodyBytes: 4096})

	cborBody, err := report.CBORCodec{}.Marshal(map[string]any{
		"error": map[string]any{"type": "RangeError", "value": "index out of range"},
		"extra": map[string]any{"index": 12},
	})
	require.NoError(t, err)
	gzipped, err := report.CompressionGzip.Compress(cborBody)
	require.NoError(t, err)
	zstdJSON, err := report.CompressionZstd.Compress([]byte(`{"message":"hello"}`))
	require.NoError(t, err)

	tests := []struct {
		name        string
		body        []byte
		contentType string
		encoding    string
		wantStatus  int
	}{
		{name: "cbor gzip", body: gzipped, contentType: "application/cbor", encoding: "gzip", wantStatus: http.StatusAccepted},
		{name: "json zstd", body: zstdJSON, contentType: "application/json; charset=utf-8", encoding: "zstd", wantStatus: http.StatusAccepted},
		{name: "identity", body: []byte(`{"message":"hello"}`), contentType: "application/json", encoding: "identity", wantStatus: http.StatusAccepted},
		{name: "undeclared zstd", body: zstdJSON, contentType: "application/json", wantStatus: http.StatusAccepted},
		{name: "unsupported type", body: []byte("hello"), contentType: "text/plain", wantStatus: http.StatusUnsupportedMediaType},
		{name: "unsupported encoding", body: []byte(`{}`), contentType: "application/json", encoding: "br", wantStatus: http.StatusUnsupportedMediaType},
		{name: "empty event", body: []byte(`{}`), contentType: "application/json", wantStatus: http.StatusBadRequest},
		{name: "unknown level", body: []byte(`{"message":"x","level":"loud"}`), contentType: "application/json", wantStatus: http.StatusBadRequest},
		{name: "too large", body: []byte(`{"message":"` + strings.Repeat("x", 5000) + `"}`), contentType: "application/json", wantStatus: http.StatusRequestEntityTooLarge},
		{name: "corrupt gzip", body: []byte("not gzip"), contentType: "application/json", encoding: "gzip", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			if tt.encoding != "" {
				req.Header.Set("Content-Encoding", tt.encoding)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	sent, _ := up.request(t, 0)
	ev, err := report.Decode(sent, report.JSONCodec{}, report.CompressionNone)
	require.NoError(t, err)
	require.Len(t, ev.Exception, 1)
	assert.Equal(t, report.Exception{Type: "RangeError", Value: "index out of range"}, ev.Exception[0])
	assert.Equal(t, float64(12), ev.Extra["index"])
}

func TestSubmitEventWithoutTransport(t *testing.T) {
	router, _ := setupRouter(t, Options{})

	w := postJSON(router, "/v1/events", `{"message":"local only"}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["forwarded"])
	assert.Nil(t, body["delivery_error"])
	assert.Greater(t, body["size"], float64(0))
}

func TestBuildEventTruncatesMessage(t *testing.T) {
	h := NewHandlers(Options{MaxValueLength: 10})
	router := gin.New()
	h.Register(router)

	up := &upstream{status: http.StatusOK}
	h.transport = newTransport(t, up)

	w := postJSON(router, "/v1/events", `{"error":{"value":"`+strings.Repeat("e", 40)+`"}}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	sent, _ := up.request(t, 0)
	ev, err := report.Decode(sent, report.JSONCodec{}, report.CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("e", 10)+"...", ev.Message)
	assert.Equal(t, "Error", ev.Exception[0].Type)
}
