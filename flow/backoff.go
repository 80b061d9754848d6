package flow

import "time"

// BackoffTimer tracks consecutive successes and failures reported by a
// ReaderRdy and hands back the interval to wait before the next probe.
// Implementations live under the backoff/ package; this interface exists
// so flow never has to import a concrete strategy.
type BackoffTimer interface {
	// Success resets (or reduces) the backoff interval.
	Success()
	// Failure grows the backoff interval.
	Failure()
	// Interval returns how long the reader should wait before trying a
	// single connection again.
	Interval() time.Duration
}
