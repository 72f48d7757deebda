package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/report"
)

// ErrDisabled is returned by Send when no endpoint is configured.
var ErrDisabled = errors.New("transport disabled: no endpoint configured")

// Config configures delivery of encoded events.
type Config struct {
	Endpoint     string
	AuthToken    string
	UserAgent    string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is the sustained sends per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// BreakerFailures is the consecutive failure count that opens the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	// OnStateChange observes breaker transitions, after they are logged.
	OnStateChange func(from, to resilience.State)
}

// DefaultConfig returns delivery defaults without an endpoint.
func DefaultConfig() Config {
	return Config{
		UserAgent:       "AgentOS-Telemetry/1.0",
		Timeout:         30 * time.Second,
		RetryMax:        3,
		RetryWaitMin:    1 * time.Second,
		RetryWaitMax:    30 * time.Second,
		BreakerFailures: 10,
		BreakerTimeout:  30 * time.Second,
	}
}

// StatusError reports a non-2xx answer from the endpoint.
type StatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is the pause the endpoint asked for, zero if none.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the endpoint may accept the event later.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Response describes an accepted delivery.
type Response struct {
	EventID    string
	StatusCode int
	Duration   time.Duration
}

// Client delivers payloads with retries, rate limiting and a circuit breaker
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	endpoint string
	log      *zap.Logger
	mu       sync.RWMutex
}

// New creates a delivery client. Retries live in the retryablehttp round
// tripper, which honours Retry-After on 429 and 503.
func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = leveledLogger{log.Sugar()}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)
	if cfg.AuthToken != "" {
		restyClient.SetAuthToken(cfg.AuthToken)
	}

	breaker := resilience.New("transport", resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= max(cfg.BreakerFailures, 1)
		},
		IsSuccessful: func(err error) bool {
			// 4xx answers other than 429 reject the event, not the endpoint.
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(from, to)
			}
		},
	})

	c := &Client{
		resty:    restyClient,
		breaker:  breaker,
		endpoint: cfg.Endpoint,
		log:      log,
	}
	c.SetRateLimit(cfg.RateLimit, cfg.Burst)
	return c
}

// SetRateLimit configures rate limiting (sends per second)
func (c *Client) SetRateLimit(rps float64, burst int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	if burst <= 0 {
		burst = max(int(rps), 1)
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c.endpoint != ""
}

// Send delivers p to the configured endpoint.
func (c *Client) Send(ctx context.Context, p *report.Payload) (*Response, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()

	if c.breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	start := time.Now()
	resp, err := resilience.Do(c.breaker, func() (*resty.Response, error) {
		req := c.resty.R().
			SetContext(ctx).
			SetHeader("Content-Type", p.ContentType).
			SetHeader("X-Event-ID", p.EventID).
			SetBody(p.Body)
		if p.ContentEncoding != "" {
			req.SetHeader("Content-Encoding", p.ContentEncoding)
		}
		trace := map[string]string{}
		tracing.InjectTraceContext(ctx, trace)
		req.SetHeaders(trace)
		resp, err := req.Post(c.endpoint)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return resp, &StatusError{
				StatusCode: resp.StatusCode(),
				Body:       report.Truncate(resp.String(), 256),
				RetryAfter: retryAfter(resp.Header().Get("Retry-After"), time.Now()),
			}
		}
		return resp, nil
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Temporary() && se.RetryAfter > 0 {
			c.breaker.OpenFor(min(se.RetryAfter, maxRetryAfter))
		}
		c.log.Warn("Event delivery failed",
			zap.String("event_id", p.EventID),
			zap.Int("bytes", len(p.Body)),
			zap.Error(err))
		return nil, err
	}

	c.log.Debug("Event delivered",
		zap.String("event_id", p.EventID),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)))

	return &Response{
		EventID:    p.EventID,
		StatusCode: resp.StatusCode(),
		Duration:   time.Since(start),
	}, nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Breaker returns a snapshot of the circuit breaker
func (c *Client) Breaker() resilience.Snapshot {
	return c.breaker.Snapshot()
}

// maxRetryAfter caps the pause an endpoint can impose.
const maxRetryAfter = time.Hour

// retryAfter parses a Retry-After value given in seconds or as an HTTP date.
// The result is capped at maxRetryAfter.
func retryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		// ParseInt saturates on overflow, so a huge value still clamps.
		secs = min(max(secs, 0), int64(maxRetryAfter/time.Second))
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return min(at.Sub(now), maxRetryAfter)
	}
	return 0
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
