package logging

type noop struct{}

// NoOp returns a Logger that discards everything. Collaborators default
// to it when constructed with a nil Logger so call sites never need a
// nil check.
func NoOp() Logger { return noop{} }

func (noop) Debugf(string, ...any)        {}
func (noop) Infof(string, ...any)         {}
func (noop) Warnf(string, ...any)         {}
func (noop) Errorf(string, ...any)        {}
func (n noop) With(string, string) Logger { return n }
