package sandbox

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed         = errors.New("sandbox runtime is closed")
	ErrTimeout        = errors.New("execution timeout exceeded")
	ErrPoolClosed     = errors.New("sandbox pool is closed")
	ErrAcquireTimeout = errors.New("sandbox acquisition timeout")
)

// Config defines sandbox configuration
type Config struct {
	MaxCallStackSize int           // Maximum JS call depth
	Timeout          time.Duration // Execution timeout, normalization included
	AcquireTimeout   time.Duration // Pool acquisition timeout
	EnableConsole    bool          // Allow console.log/warn/error/info
	EnableDOM        bool          // Expose document when a DOM is given
	Depth            int           // Normalization depth of results, 0 for default
	MaxProperties    int           // Entries kept per object or array, 0 for default
}

// Result holds execution result
type Result struct {
	Value      any           // Normalized completion value
	Exception  *Exception    // Uncaught throw, if any
	Console    []LogEntry    // Console output
	DOMChanges []DOMChange   // DOM modifications
	Duration   time.Duration // Execution time
	Error      error         // Execution error
}

// Exception describes a value thrown by the script.
type Exception struct {
	Type    string // Constructor name of a thrown Error, empty otherwise
	Message string
	Stack   string
	Value   any // Normalized thrown value
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error, info
	Message string    // Arguments joined by spaces
	Args    []any     // Normalized arguments
	Time    time.Time // Timestamp
}

// DOMChange represents a DOM modification
type DOMChange struct {
	Type     string // set_attribute
	Selector string // Selector the element was found by
	Property string // Property name
	Value    any    // New value
}

// Sandbox defines the JavaScript execution interface
type Sandbox interface {
	Execute(ctx context.Context, script string, dom *DOM) (*Result, error)
	Reset() error
	Close() error
}

var _ Sandbox = (*Runtime)(nil)

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxCallStackSize: 1024,
		Timeout:          5 * time.Second,
		AcquireTimeout:   5 * time.Second,
		EnableConsole:    true,
		EnableDOM:        true,
		Depth:            6,
		MaxProperties:    100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxCallStackSize <= 0 {
		c.MaxCallStackSize = d.MaxCallStackSize
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = d.AcquireTimeout
	}
	if c.Depth <= 0 {
		c.Depth = d.Depth
	}
	if c.MaxProperties <= 0 {
		c.MaxProperties = d.MaxProperties
	}
	return c
}
