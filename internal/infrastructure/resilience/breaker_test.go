package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

func fail() error    { return errFailed }
func succeed() error { return nil }

type clock struct{ now time.Time }

func newClock() *clock { return &clock{now: time.Unix(1700000000, 0)} }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func tripAfter(n uint32) func(Counts) bool {
	return func(counts Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{Interval: time.Minute, Timeout: time.Minute},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      Settings{Interval: time.Minute, Timeout: time.Minute, ReadyToTrip: tripAfter(3)},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "a success resets the failure streak",
			settings:      Settings{Interval: time.Minute, Timeout: time.Minute, ReadyToTrip: tripAfter(2)},
			requests:      []bool{false, true, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("test", tt.settings)

			for _, success := range tt.requests {
				if success {
					_ = breaker.Execute(succeed)
				} else {
					_ = breaker.Execute(fail)
				}
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("test", Settings{Interval: time.Minute, Timeout: time.Minute})

	require.NoError(t, breaker.Execute(succeed))

	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)

	assert.ErrorIs(t, breaker.Execute(fail), errFailed)

	counts = breaker.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerOpenState(t *testing.T) {
	breaker := New("test", Settings{Interval: time.Minute, Timeout: time.Minute, ReadyToTrip: tripAfter(2)})

	for i := 0; i < 2; i++ {
		_ = breaker.Execute(fail)
	}
	assert.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenState(t *testing.T) {
	clk := newClock()
	breaker := New("test", Settings{
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: tripAfter(2),
		Now:         clk.Now,
	})

	for i := 0; i < 2; i++ {
		_ = breaker.Execute(fail)
	}
	assert.Equal(t, StateOpen, breaker.State())

	clk.Advance(30 * time.Second)
	assert.Equal(t, StateHalfOpen, breaker.State())

	for i := 0; i < 2; i++ {
		require.NoError(t, breaker.Execute(succeed))
	}
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenLimitsTrials(t *testing.T) {
	clk := newClock()
	breaker := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1), Now: clk.Now})

	_ = breaker.Execute(fail)
	clk.Advance(time.Second)

	err := breaker.Execute(func() error {
		assert.ErrorIs(t, breaker.Execute(succeed), ErrTooManyRequests)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := newClock()
	breaker := New("test", Settings{Interval: time.Minute, Timeout: 10 * time.Second, ReadyToTrip: tripAfter(1), Now: clk.Now})

	_ = breaker.Execute(fail)
	clk.Advance(10 * time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	_ = breaker.Execute(fail)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clk := newClock()
	breaker := New("test", Settings{Interval: time.Minute, ReadyToTrip: tripAfter(2), Now: clk.Now})

	_ = breaker.Execute(fail)
	clk.Advance(2 * time.Minute)
	_ = breaker.Execute(fail)

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(1), breaker.Counts().ConsecutiveFailures)
}

func TestBreakerOpenFor(t *testing.T) {
	clk := newClock()
	var transitions []string
	breaker := New("test", Settings{
		Timeout: time.Second,
		Now:     clk.Now,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	breaker.OpenFor(time.Minute)
	assert.Equal(t, StateOpen, breaker.State())
	assert.Equal(t, time.Minute, breaker.Snapshot().RetryIn)

	// A shorter request does not cut the pause short.
	breaker.OpenFor(time.Second)
	clk.Advance(30 * time.Second)
	assert.ErrorIs(t, breaker.Execute(succeed), ErrCircuitOpen)

	clk.Advance(30 * time.Second)
	require.NoError(t, breaker.Execute(succeed))
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)

	breaker.OpenFor(0)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerIsSuccessful(t *testing.T) {
	errClient := errors.New("bad request")
	breaker := New("test", Settings{
		Interval:     time.Minute,
		Timeout:      time.Minute,
		ReadyToTrip:  tripAfter(1),
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errClient) },
	})

	err := breaker.Execute(func() error { return errClient })

	assert.ErrorIs(t, err, errClient)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(1), breaker.Counts().TotalSuccesses)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("test", Settings{Interval: time.Minute, Timeout: time.Minute, ReadyToTrip: tripAfter(1)})

	assert.Panics(t, func() {
		_ = breaker.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}

func TestDo(t *testing.T) {
	breaker := New("test", Settings{})

	n, err := Do(breaker, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = Do(breaker, func() (string, error) { return "", errFailed })
	assert.ErrorIs(t, err, errFailed)
}

func TestBreakerSnapshot(t *testing.T) {
	breaker := New("upstream", Settings{})
	_ = breaker.Execute(fail)

	snap := breaker.Snapshot()

	assert.Equal(t, "upstream", snap.Name)
	assert.Equal(t, "closed", snap.State)
	assert.Equal(t, uint32(1), snap.Counts.TotalFailures)
}

func TestBreakerCallbacks(t *testing.T) {
	clk := newClock()
	var transitions []string

	breaker := New("test", Settings{
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: tripAfter(2),
		Now:         clk.Now,
		OnStateChange: func(name string, from State, to State) {
			assert.Equal(t, "test", name)
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	for i := 0; i < 2; i++ {
		_ = breaker.Execute(fail)
	}
	clk.Advance(10 * time.Second)

	assert.Equal(t, StateHalfOpen, breaker.State())
	assert.Equal(t, []string{"closed->open", "open->half-open"}, transitions)
}
