package flow

import (
	"time"

	"github.com/msoleymani/rdymux/backoff"
	"github.com/msoleymani/rdymux/logging"
)

// NewReaderRdyWithDefaultBackoff builds a ReaderRdy backed by an
// exponential backoff capped at maxBackoffDuration, for callers that do
// not need to inject a custom BackoffTimer.
func NewReaderRdyWithDefaultBackoff(maxInFlight int64, maxBackoffDuration time.Duration, log logging.Logger) *ReaderRdy {
	bt := backoff.NewExponential(100*time.Millisecond, maxBackoffDuration, 0.1)
	return NewReaderRdy(Config{MaxInFlight: maxInFlight}, bt, log)
}
