// Package middleware provides dispatch.MiddlewareFunc implementations
// shared across transports.
package middleware

import (
	"time"

	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/logging"
)

// Logging returns middleware that logs message processing duration and
// errors through log.
func Logging(log logging.Logger) dispatch.MiddlewareFunc {
	if log == nil {
		log = logging.NoOp()
	}
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(c dispatch.Context) error {
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			if err != nil {
				log.Errorf("topic=%s key=%s elapsed=%s err=%v", c.Topic(), string(c.Key()), elapsed, err)
			} else {
				log.Debugf("topic=%s key=%s elapsed=%s", c.Topic(), string(c.Key()), elapsed)
			}
			return err
		}
	}
}
