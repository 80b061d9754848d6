package flow

import "errors"

var (
	// ErrUnknownConnection is returned by operations that address a
	// connection ID the reader has no record of.
	ErrUnknownConnection = errors.New("rdymux/flow: unknown connection")
	// ErrNilConnection is returned when AddConnection is called with a
	// nil Connection.
	ErrNilConnection = errors.New("rdymux/flow: connection is nil")
)
