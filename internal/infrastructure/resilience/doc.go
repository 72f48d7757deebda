/*
Package resilience provides the circuit breaker that guards event delivery.

A breaker starts closed and lets every request through. Failures, as
classified by Settings.IsSuccessful, are counted; once ReadyToTrip agrees
the breaker opens and rejects requests with ErrCircuitOpen until Timeout
has passed. It then lets MaxRequests trial requests through (half-open)
and closes again when they all succeed. A failed trial reopens it.

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                        ^                    |
	                        +-----[failure]------+

An endpoint that sheds load can also open the breaker directly:

	if retryAfter > 0 {
		breaker.OpenFor(retryAfter)
	}

Results keep their type with Do:

	resp, err := resilience.Do(breaker, func() (*resty.Response, error) {
		return req.Post(endpoint)
	})
*/
package resilience
