package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Normalize NormalizeConfig
	Sandbox   SandboxConfig
	Report    ReportConfig
	Transport TransportConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"8000"`
	Host        string   `envconfig:"HOST" default:"0.0.0.0"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// NormalizeConfig holds the budgets of the normalization endpoints.
type NormalizeConfig struct {
	Depth         int `envconfig:"NORMALIZE_DEPTH" default:"3"`
	MaxProperties int `envconfig:"NORMALIZE_MAX_PROPERTIES" default:"1000"`
	MaxSize       int `envconfig:"NORMALIZE_MAX_SIZE" default:"102400"`
}

// SandboxConfig holds JavaScript sandbox configuration.
type SandboxConfig struct {
	PoolSize       int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	Timeout        time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	AcquireTimeout time.Duration `envconfig:"SANDBOX_ACQUIRE_TIMEOUT" default:"5s"`
	Depth          int           `envconfig:"SANDBOX_DEPTH" default:"6"`
	MaxProperties  int           `envconfig:"SANDBOX_MAX_PROPERTIES" default:"100"`
}

// ReportConfig holds event encoding configuration.
type ReportConfig struct {
	Codec          string `envconfig:"REPORT_CODEC" default:"json"`
	Compression    string `envconfig:"REPORT_COMPRESSION" default:"none"`
	MaxValueLength int    `envconfig:"REPORT_MAX_VALUE_LENGTH" default:"250"`
}

// TransportConfig holds delivery configuration. An empty endpoint keeps
// events local.
type TransportConfig struct {
	Endpoint        string        `envconfig:"TRANSPORT_ENDPOINT"`
	AuthToken       string        `envconfig:"TRANSPORT_AUTH_TOKEN"`
	Timeout         time.Duration `envconfig:"TRANSPORT_TIMEOUT" default:"30s"`
	RetryMax        int           `envconfig:"TRANSPORT_RETRY_MAX" default:"3"`
	RateLimit       float64       `envconfig:"TRANSPORT_RATE_LIMIT" default:"0"`
	BreakerFailures uint32        `envconfig:"TRANSPORT_BREAKER_FAILURES" default:"10"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Normalize: NormalizeConfig{
			Depth:         3,
			MaxProperties: 1000,
			MaxSize:       100 * 1024,
		},
		Sandbox: SandboxConfig{
			PoolSize:       4,
			Timeout:        5 * time.Second,
			AcquireTimeout: 5 * time.Second,
			Depth:          6,
			MaxProperties:  100,
		},
		Report: ReportConfig{
			Codec:          "json",
			Compression:    "none",
			MaxValueLength: 250,
		},
		Transport: TransportConfig{
			Timeout:         30 * time.Second,
			RetryMax:        3,
			BreakerFailures: 10,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
