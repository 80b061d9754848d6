// Package backoff provides flow.BackoffTimer implementations.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Exponential doubles its interval on every consecutive failure and
// resets to base on success, capped at max. The doubling and capping
// shape follows the reconnect backoff in the connection manager this
// module's flow-control core was adapted from: wait starts at base and
// doubles each attempt, never exceeding max.
type Exponential struct {
	mu sync.Mutex

	base   time.Duration
	max    time.Duration
	jitter float64

	attempts int
}

// NewExponential builds an Exponential backoff. jitter is a fraction
// (e.g. 0.1 for +/-10%) of extra random delay added on top of the
// doubled interval, to avoid a thundering herd of connections probing
// at the exact same instant; 0 disables it.
func NewExponential(base, max time.Duration, jitter float64) *Exponential {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if max <= 0 {
		max = base
	}
	return &Exponential{base: base, max: max, jitter: jitter}
}

// Success resets the failure streak, so the next Failure starts the
// doubling sequence over from base.
func (e *Exponential) Success() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts = 0
}

// Failure grows the failure streak by one.
func (e *Exponential) Failure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts++
}

// Interval returns base * 2^attempts, capped at max, plus jitter.
func (e *Exponential) Interval() time.Duration {
	e.mu.Lock()
	attempts := e.attempts
	e.mu.Unlock()

	d := e.max
	if attempts <= 30 {
		if scaled := e.base << attempts; scaled > 0 && scaled <= e.max {
			d = scaled
		}
	}
	if e.jitter > 0 {
		d += time.Duration(float64(d) * e.jitter * rand.Float64())
		if d > e.max {
			d = e.max
		}
	}
	return d
}
