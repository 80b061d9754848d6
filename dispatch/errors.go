package dispatch

import "errors"

var (
	// ErrNoHandler is returned by Dispatch when no handler has been
	// registered yet.
	ErrNoHandler = errors.New("rdymux/dispatch: no handler registered")
	// ErrNoPublisher is returned by Context.Republish when the dispatcher
	// was built without a Publisher.
	ErrNoPublisher = errors.New("rdymux/dispatch: no publisher configured")
)
