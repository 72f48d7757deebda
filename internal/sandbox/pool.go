package sandbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Outcomes of a pooled run, as reported by Outcome and counted in PoolStats.
const (
	OutcomeOK        = "ok"
	OutcomeException = "exception"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

// Outcome classifies the return values of Execute.
func Outcome(result *Result, err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case err != nil:
		return OutcomeError
	case result != nil && result.Exception != nil:
		return OutcomeException
	}
	return OutcomeOK
}

// Pool hands out warm runtimes that share one normalization setup. Every
// runtime is reset between scripts, so no global state survives a run.
type Pool struct {
	config   Config
	runtimes chan *Runtime
	size     int

	mu     sync.RWMutex
	closed bool

	runs       atomic.Uint64
	exceptions atomic.Uint64
	timeouts   atomic.Uint64
	failures   atomic.Uint64
	replaced   atomic.Uint64
	busy       atomic.Int64 // nanoseconds spent executing
}

// PoolStats is a point-in-time view of a Pool, served by the health
// endpoint.
type PoolStats struct {
	Size      int  `json:"size"`
	Available int  `json:"available"`
	InUse     int  `json:"in_use"`
	Closed    bool `json:"closed"`

	Runs       uint64        `json:"runs"`
	Exceptions uint64        `json:"exceptions"`
	Timeouts   uint64        `json:"timeouts"`
	Failures   uint64        `json:"failures"`
	Replaced   uint64        `json:"replaced"`
	Busy       time.Duration `json:"busy_ns"`

	// Normalization budgets applied to results.
	Depth         int `json:"depth"`
	MaxProperties int `json:"max_properties"`
}

// NewPool starts size runtimes, four when size is not positive.
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}

	p := &Pool{
		config:   config.withDefaults(),
		runtimes: make(chan *Runtime, size),
		size:     size,
	}
	for range size {
		rt, err := New(p.config)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.runtimes <- rt
	}
	return p, nil
}

// Config returns the runtime configuration with defaults applied.
func (p *Pool) Config() Config {
	return p.config
}

// Acquire waits for an idle runtime until ctx ends or AcquireTimeout
// passes.
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	timer := time.NewTimer(p.config.AcquireTimeout)
	defer timer.Stop()

	select {
	case rt, ok := <-p.runtimes:
		if !ok {
			return nil, ErrPoolClosed
		}
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrAcquireTimeout
	}
}

// Release resets rt and puts it back. A runtime that cannot be reset is
// closed and a fresh one takes its place.
func (p *Pool) Release(rt *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return rt.Close()
	}

	if err := rt.Reset(); err != nil {
		rt.Close()
		p.replaced.Add(1)
		if fresh, newErr := New(p.config); newErr == nil {
			p.put(fresh)
		}
		return err
	}
	p.put(rt)
	return nil
}

func (p *Pool) put(rt *Runtime) {
	select {
	case p.runtimes <- rt:
	default:
		rt.Close()
	}
}

// Execute runs script on an idle runtime and records the outcome.
func (p *Pool) Execute(ctx context.Context, script string, dom *DOM) (*Result, error) {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(rt)

	result, err := rt.Execute(ctx, script, dom)
	p.record(result, err)
	return result, err
}

func (p *Pool) record(result *Result, err error) {
	p.runs.Add(1)
	if result != nil {
		p.busy.Add(int64(result.Duration))
	}
	switch Outcome(result, err) {
	case OutcomeException:
		p.exceptions.Add(1)
	case OutcomeTimeout:
		p.timeouts.Add(1)
	case OutcomeError:
		p.failures.Add(1)
	}
}

// Close stops handing out runtimes and closes the idle ones. Runtimes in
// use are closed when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.runtimes)
	for rt := range p.runtimes {
		rt.Close()
	}
	return nil
}

func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	available := len(p.runtimes)
	return PoolStats{
		Size:          p.size,
		Available:     available,
		InUse:         p.size - available,
		Closed:        p.closed,
		Runs:          p.runs.Load(),
		Exceptions:    p.exceptions.Load(),
		Timeouts:      p.timeouts.Load(),
		Failures:      p.failures.Load(),
		Replaced:      p.replaced.Load(),
		Busy:          time.Duration(p.busy.Load()),
		Depth:         p.config.Depth,
		MaxProperties: p.config.MaxProperties,
	}
}
