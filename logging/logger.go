// Package logging defines the structured-logging contract used across
// this module, decoupling flow control and transports from any one
// logging library.
package logging

// Logger is a small, leveled, structured-logging contract. With returns
// a child logger carrying two extra fields, which is all the flow-control
// and transport code ever needs: which component is logging, and which
// connection it is logging about.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	With(component, connID string) Logger
}
