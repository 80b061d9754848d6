// Package rdymux re-exports the types most library users touch, so
// `import "github.com/msoleymani/rdymux"` alone covers the common case,
// and provides New as a convenience constructor wiring a named transport
// straight into a reader.Reader and dispatch.Dispatcher pair.
package rdymux

import (
	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/flow"
	"github.com/msoleymani/rdymux/logging"
	"github.com/msoleymani/rdymux/reader"
	"github.com/msoleymani/rdymux/transport"
)

// Re-export the most commonly used types at the package level for
// ergonomic usage.
type (
	Message        = dispatch.Message
	Context        = dispatch.Context
	HandlerFunc    = dispatch.HandlerFunc
	MiddlewareFunc = dispatch.MiddlewareFunc
	Connection     = flow.Connection
	ConnStats      = flow.ConnStats
	ReaderStats    = flow.ReaderStats
)

// New creates the transport.Connection named by transportName and a
// reader.Reader wired to dispatch its messages through a fresh
// dispatch.Dispatcher for cfg.Topic. Callers register handlers and
// middleware on the returned Dispatcher, then call Reader.AddConnection.
func New(transportName string, cfg transport.Config, readerCfg reader.Config, log logging.Logger) (*reader.Reader, *dispatch.Dispatcher, transport.Connection, error) {
	conn, err := transport.Create(transportName, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	d := dispatch.New(cfg.Topic, nil)
	r := reader.New(readerCfg, d, log)
	return r, d, conn, nil
}
