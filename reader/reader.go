// Package reader wires a transport.Connection's wire-level event stream
// into flow.ReaderRdy for credit bookkeeping, and its delivered messages
// into a dispatch.Dispatcher for application handling — the glue the
// distilled spec leaves implicit between "the core" and "a wire
// transport."
package reader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/msoleymani/rdymux/backoff"
	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/flow"
	"github.com/msoleymani/rdymux/logging"
	"github.com/msoleymani/rdymux/transport"
)

// Config configures a Reader.
type Config struct {
	// Flow is passed through to flow.NewReaderRdy.
	Flow flow.Config
	// MaxBackoffDuration caps the default exponential backoff timer's
	// interval.
	MaxBackoffDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxBackoffDuration <= 0 {
		c.MaxBackoffDuration = 2 * time.Minute
	}
	return c
}

// Reader owns a flow.ReaderRdy and a dispatch.Dispatcher, and bridges
// every transport.Connection added to it between the two.
type Reader struct {
	flow       *flow.ReaderRdy
	dispatcher *dispatch.Dispatcher
	log        logging.Logger

	mu    sync.Mutex
	conns map[string]transport.Connection
}

// New creates a Reader dispatching delivered messages through d.
func New(cfg Config, d *dispatch.Dispatcher, log logging.Logger) *Reader {
	if log == nil {
		log = logging.NoOp()
	}
	cfg = cfg.withDefaults()
	bt := backoff.NewExponential(100*time.Millisecond, cfg.MaxBackoffDuration, 0.1)
	return &Reader{
		flow:       flow.NewReaderRdy(cfg.Flow, bt, log),
		dispatcher: d,
		log:        log,
		conns:      make(map[string]transport.Connection),
	}
}

// AddConnection registers conn with the flow-control core and starts
// dispatching its delivered messages until ctx is cancelled or conn
// closes its Messages channel. It returns an error if conn is nil.
func (r *Reader) AddConnection(ctx context.Context, conn transport.Connection) error {
	if err := r.flow.AddConnection(conn); err != nil {
		return fmt.Errorf("rdymux/reader: add connection: %w", err)
	}

	r.mu.Lock()
	r.conns[conn.ID()] = conn
	r.mu.Unlock()

	go r.consume(ctx, conn)
	return nil
}

// RemoveConnection unregisters a connection from the flow-control core.
// It does not close the connection; callers own that lifecycle. It
// returns an error if the reader has no record of id.
func (r *Reader) RemoveConnection(id string) error {
	err := r.flow.RemoveConnection(id)
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("rdymux/reader: remove connection: %w", err)
	}
	return nil
}

// Stats returns a point-in-time snapshot of reader and connection state.
func (r *Reader) Stats() flow.ReaderStats {
	return r.flow.Stats()
}

func (r *Reader) consume(ctx context.Context, conn transport.Connection) {
	log := r.log.With("reader", conn.ID())
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.Messages():
			if !ok {
				return
			}
			if err := r.dispatcher.Dispatch(ctx, msg); err != nil {
				log.Errorf("dispatch: %v", err)
			}
		}
	}
}
