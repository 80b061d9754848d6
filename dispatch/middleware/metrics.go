package middleware

import (
	"time"

	"github.com/msoleymani/rdymux/dispatch"
)

// MetricsCollector is the interface metrics backends must implement.
// This keeps the middleware decoupled from any specific metrics library.
type MetricsCollector interface {
	// MessageProcessed records that a message was processed. topic is
	// the channel/topic name, duration is processing time, and err is
	// nil on success.
	MessageProcessed(topic string, duration time.Duration, err error)
}

// Metrics returns middleware that reports processing metrics to the
// given collector.
func Metrics(collector MetricsCollector) dispatch.MiddlewareFunc {
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(c dispatch.Context) error {
			start := time.Now()
			err := next(c)
			collector.MessageProcessed(c.Topic(), time.Since(start), err)
			return err
		}
	}
}
