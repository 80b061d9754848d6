package dispatch

import (
	"context"
	"sync"
)

// Dispatcher applies registered middleware around a single handler and
// bridges each delivered Message into a Context. A reader in this
// module already owns exactly one topic/channel (unlike a pub/sub
// router multiplexing many topic patterns over one broker), so there is
// exactly one handler to wrap, not a routing table.
type Dispatcher struct {
	mu          sync.RWMutex
	handler     HandlerFunc
	middlewares []MiddlewareFunc
	binder      Binder
	topic       string
	pub         Publisher
}

// New creates a Dispatcher for topic. pub may be nil if the reader has
// no need to republish messages elsewhere.
func New(topic string, pub Publisher) *Dispatcher {
	return &Dispatcher{topic: topic, pub: pub, binder: JSONBinder{}}
}

// SetBinder replaces the Binder used by Context.Bind.
func (d *Dispatcher) SetBinder(b Binder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binder = b
}

// Use registers middleware. Middleware runs in registration order: the
// first registered wraps outermost, so it runs first before the handler
// and last after it.
func (d *Dispatcher) Use(m MiddlewareFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, m)
}

// Handle registers the application handler.
func (d *Dispatcher) Handle(h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// Dispatch wraps the registered handler with every middleware and runs
// it against msg.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	d.mu.RLock()
	h := d.handler
	mws := make([]MiddlewareFunc, len(d.middlewares))
	copy(mws, d.middlewares)
	binder := d.binder
	topic := d.topic
	pub := d.pub
	d.mu.RUnlock()

	if h == nil {
		return ErrNoHandler
	}

	wrapped := applyMiddleware(h, mws)
	c := NewContext(ctx, msg, topic, pub, binder)
	return wrapped(c)
}

func applyMiddleware(h HandlerFunc, mws []MiddlewareFunc) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
