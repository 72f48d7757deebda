package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State of a breaker. The numeric values are exported as a gauge.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker. Zero values take the defaults listed
// on each field.
type Settings struct {
	// MaxRequests is both the trial budget of the half-open state and the
	// consecutive successes that close it again. Default 1.
	MaxRequests uint32
	// Interval clears the counts of a closed breaker periodically. Default 60s.
	Interval time.Duration
	// Timeout is how long the breaker stays open before a trial. Default 60s.
	Timeout time.Duration
	// ReadyToTrip decides, after a failure while closed, whether to open.
	// Default: more than 5 consecutive failures.
	ReadyToTrip func(counts Counts) bool
	// IsSuccessful classifies an outcome. Default err == nil.
	IsSuccessful func(err error) bool
	// OnStateChange runs with the lock held on every transition.
	OnStateChange func(name string, from State, to State)
	// Now is the clock. Default time.Now.
	Now func() time.Time
}

// Counts are the outcome statistics of the current generation.
type Counts struct {
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// Snapshot is a consistent view of a breaker for the metrics endpoint.
type Snapshot struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Counts Counts `json:"counts"`
	// RetryIn is how long an open breaker keeps rejecting requests.
	RetryIn time.Duration `json:"retry_in,omitempty"`
}

// Breaker guards calls to an endpoint that may be down or shedding load.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = 60 * time.Second
	}
	if settings.Timeout == 0 {
		settings.Timeout = 60 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool { return err == nil }
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		expiry:   settings.Now().Add(settings.Interval),
	}
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.currentState(b.settings.Now())
	return state
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()
	state, _ := b.currentState(now)
	snap := Snapshot{Name: b.name, State: state.String(), Counts: b.counts}
	if state == StateOpen {
		snap.RetryIn = b.expiry.Sub(now)
	}
	return snap
}

// OpenFor opens the breaker for at least d, as asked by an endpoint that
// answered with Retry-After. A longer open period already in force is kept.
func (b *Breaker) OpenFor(d time.Duration) {
	if d <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()
	until := now.Add(d)
	if b.state == StateOpen && b.expiry.After(until) {
		return
	}
	b.setState(StateOpen, now)
	b.expiry = until
}

// Execute runs req if the breaker accepts it and records the outcome.
// A panic in req counts as a failure and is re-raised.
func (b *Breaker) Execute(req func() error) error {
	generation, err := b.beforeRequest()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			b.afterRequest(generation, false)
			panic(e)
		}
	}()

	err = req()
	b.afterRequest(generation, b.settings.IsSuccessful(err))
	return err
}

// Do is Execute for requests with a result.
func Do[T any](b *Breaker, req func() (T, error)) (T, error) {
	var out T
	err := b.Execute(func() error {
		var err error
		out, err = req()
		return err
	})
	return out, err
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, generation := b.currentState(b.settings.Now())
	switch {
	case state == StateOpen:
		return generation, ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		return generation, ErrTooManyRequests
	}

	b.counts.Requests++
	return generation, nil
}

// afterRequest drops outcomes of an earlier generation so that a slow
// request cannot reopen a breaker that has moved on.
func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()
	state, generation := b.currentState(now)
	if generation != before {
		return
	}

	if success {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.setState(StateClosed, now)
		}
		return
	}

	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if b.settings.ReadyToTrip(b.counts) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

func (b *Breaker) currentState(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.reset(now)
		}
	case StateOpen:
		if !now.Before(b.expiry) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state, b.generation
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.reset(now)

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}

// reset starts a new generation with zero counts and the expiry of the
// current state. Half-open never expires on its own.
func (b *Breaker) reset(now time.Time) {
	b.generation++
	b.counts = Counts{}

	switch b.state {
	case StateClosed:
		b.expiry = now.Add(b.settings.Interval)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	default:
		b.expiry = time.Time{}
	}
}
