package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/AgentOS/telemetry/internal/normalize"
)

// Logger is the service logger. Arbitrary values must go through Value.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
	// Service is attached to every entry when set.
	Service string
}

// DefaultConfig returns production-ready logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		OutputPaths: []string{"stdout"},
		Service:     "telemetry",
	}
}

// DevelopmentConfig returns development logger configuration.
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.Development = true
	return cfg
}

// New creates a logger. Production writes JSON, development writes
// colored console lines with stack traces.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stdout"}
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig = encoderConfig(cfg.Development)
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig = encoderConfig(true)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = cfg.OutputPaths
	zapCfg.Sampling = nil
	zapCfg.DisableStacktrace = !cfg.Development
	if cfg.Service != "" {
		zapCfg.InitialFields = map[string]any{"service": cfg.Service}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// NewDefault creates a production logger, or a no-op one if that fails.
func NewDefault() *Logger {
	logger, err := New(DefaultConfig())
	if err != nil {
		return NewNop()
	}
	return logger
}

// NewDevelopment creates a development logger, or a no-op one if that fails.
func NewDevelopment() *Logger {
	logger, err := New(DevelopmentConfig())
	if err != nil {
		return NewNop()
	}
	return logger
}

// NewNop creates a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// ForRequest returns a child logger tagged with the request and trace
// IDs. Empty IDs are left out.
func (l *Logger) ForRequest(requestID, traceID string) *Logger {
	fields := make([]zap.Field, 0, 2)
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{Logger: l.With(fields...)}
}

// fieldNormalizer bounds values logged through Value.
var fieldNormalizer = normalize.New(
	normalize.WithDepth(3),
	normalize.WithMaxProperties(50),
	normalize.WithMaxSize(8*1024),
)

// Value returns a field holding a normalized copy of v. Use it instead of
// zap.Any for values that may be cyclic, deep or hostile.
func Value(key string, v any) zap.Field {
	return zap.Any(key, fieldNormalizer.NormalizeToSize(v))
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc.EncodeDuration = zapcore.StringDurationEncoder
		return enc
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.SecondsDurationEncoder
	return enc
}
