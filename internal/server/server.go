package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	handlers "github.com/GriffinCanCode/AgentOS/telemetry/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/report"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/telemetry/internal/transport"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	pool      *sandbox.Pool
	transport *transport.Client
	tracer    *tracing.Tracer
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Service:     "telemetry",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing telemetry server",
		zap.String("port", cfg.Server.Port),
		zap.String("codec", cfg.Report.Codec),
		zap.String("compression", cfg.Report.Compression),
	)

	metrics := monitoring.NewMetrics()

	encoder, err := report.NewEncoder(cfg.Report.Codec, cfg.Report.Compression)
	if err != nil {
		return nil, fmt.Errorf("invalid report config: %w", err)
	}

	// Sandbox pool (optional)
	var pool *sandbox.Pool
	if cfg.Sandbox.PoolSize > 0 {
		sbCfg := sandbox.DefaultConfig()
		sbCfg.Timeout = cfg.Sandbox.Timeout
		sbCfg.AcquireTimeout = cfg.Sandbox.AcquireTimeout
		sbCfg.Depth = cfg.Sandbox.Depth
		sbCfg.MaxProperties = cfg.Sandbox.MaxProperties
		pool, err = sandbox.NewPool(sbCfg, cfg.Sandbox.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
		}
		metrics.SetSandboxAvailable(pool.Stats().Available)
		logger.Info("Sandbox pool ready", zap.Int("size", cfg.Sandbox.PoolSize))
	}

	tCfg := transport.DefaultConfig()
	tCfg.Endpoint = cfg.Transport.Endpoint
	tCfg.AuthToken = cfg.Transport.AuthToken
	tCfg.Timeout = cfg.Transport.Timeout
	tCfg.RetryMax = cfg.Transport.RetryMax
	tCfg.RateLimit = cfg.Transport.RateLimit
	tCfg.BreakerFailures = cfg.Transport.BreakerFailures
	tCfg.OnStateChange = func(_, to resilience.State) {
		metrics.SetBreakerState("transport", int(to))
	}
	client := transport.New(tCfg, logger.Logger)
	metrics.SetBreakerState("transport", int(client.BreakerState()))
	if client.Enabled() {
		logger.Info("Forwarding events", zap.String("endpoint", cfg.Transport.Endpoint))
	} else {
		logger.Info("No transport endpoint configured, events stay local")
	}

	tracer := tracing.New("telemetry", logger.Logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	h := handlers.NewHandlers(handlers.Options{
		Normalizer: normalize.New(
			normalize.WithDepth(cfg.Normalize.Depth),
			normalize.WithMaxProperties(cfg.Normalize.MaxProperties),
			normalize.WithMaxSize(cfg.Normalize.MaxSize),
		),
		Pool:           pool,
		Encoder:        encoder,
		Transport:      client,
		Metrics:        metrics,
		Logger:         logger,
		Tracer:         tracer,
		MaxValueLength: cfg.Report.MaxValueLength,
	})
	h.Register(router)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		pool:      pool,
		transport: client,
		tracer:    tracer,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops. A server stopped
// by Shutdown returns nil.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// ends, then releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	err := s.http.Shutdown(ctx)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the sandbox pool and flushes the logger
func (s *Server) Close() error {
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("Failed to close sandbox pool", zap.Error(err))
			return fmt.Errorf("failed to close sandbox pool: %w", err)
		}
		s.logger.Info("Closed sandbox pool")
	}

	s.tracer.Close()
	_ = s.logger.Sync()

	return nil
}
