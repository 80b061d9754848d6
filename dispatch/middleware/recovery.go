package middleware

import (
	"fmt"
	"runtime"

	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/logging"
)

// Recovery returns middleware that recovers from panics in handlers,
// logs the stack trace through log, and returns the panic as an error.
func Recovery(log logging.Logger) dispatch.MiddlewareFunc {
	if log == nil {
		log = logging.NoOp()
	}
	return func(next dispatch.HandlerFunc) dispatch.HandlerFunc {
		return func(c dispatch.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					log.Errorf("panic recovered: %v\n%s", r, buf[:n])
					err = fmt.Errorf("rdymux/dispatch: panic recovered: %v", r)
				}
			}()
			return next(c)
		}
	}
}
