// Package nats implements transport.Connection over a nats.go/jetstream
// pull consumer.
//
// Pull batch size is JetStream's one direct RDY analogue: SetRdy(n) sets
// the batch size of the next Fetch call, and a dedicated goroutine loops
// Fetch(currentRdy), pushing each delivered message out and emitting one
// EventMessage per delivery, exactly reproducing the credit-gated
// delivery rate the core expects from a push-style Connection.
package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/flow"
	"github.com/msoleymani/rdymux/transport"
)

func init() {
	transport.Register("nats", func(cfg transport.Config) (transport.Connection, error) {
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("rdymux/nats: at least one broker URL is required")
		}
		opts := optsFromExtra(cfg.Extra)
		if cfg.MaxInFlight > 0 {
			opts = append(opts, WithMaxRdy(cfg.MaxInFlight))
		}
		return New(cfg.Brokers[0], cfg.Group, cfg.Topic, opts...)
	})
}

// Connection implements transport.Connection over a single JetStream pull
// consumer.
type Connection struct {
	id   string
	conn *nats.Conn
	cons jetstream.Consumer
	opts options

	events   chan flow.Event
	messages chan dispatch.Message

	mu     sync.Mutex
	rdy    int64
	cancel context.CancelFunc
}

// New connects to url, creates (or updates) a stream and durable pull
// consumer for subject, and starts the fetch loop. RDY starts at 0: no
// Fetch call occurs until ReaderRdy's first SetRdy.
func New(url, group, subject string, fns ...Option) (*Connection, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("rdymux/nats: connect to %q: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("rdymux/nats: init jetstream: %w", err)
	}

	ctx := context.Background()
	streamName := sanitizeStreamName(subject)
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		MaxMsgs:   opts.maxMsgs,
		MaxBytes:  opts.maxBytes,
		MaxAge:    opts.maxAge,
		Replicas:  opts.replicas,
		Retention: opts.retention,
		Storage:   opts.storage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("rdymux/nats: create stream %q: %w", streamName, err)
	}

	consumerName := group
	if consumerName == "" {
		consumerName = "rdymux-" + streamName
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:    consumerName,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    opts.ackWait,
		MaxDeliver: opts.maxDeliver,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("rdymux/nats: create consumer %q: %w", consumerName, err)
	}

	fetchCtx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:       uuid.NewString(),
		conn:     nc,
		cons:     cons,
		opts:     opts,
		events:   make(chan flow.Event, 32),
		messages: make(chan dispatch.Message, 32),
		cancel:   cancel,
	}

	go c.fetchLoop(fetchCtx)
	c.events <- flow.Event{Kind: flow.EventSubscribed}
	return c, nil
}

func (c *Connection) ID() string                        { return c.id }
func (c *Connection) MaxRdyCount() int64                { return c.opts.maxRdy }
func (c *Connection) Events() <-chan flow.Event          { return c.events }
func (c *Connection) Messages() <-chan dispatch.Message { return c.messages }

// SetRdy sets the batch size the next Fetch call requests.
func (c *Connection) SetRdy(n int64) {
	c.mu.Lock()
	c.rdy = n
	c.mu.Unlock()
}

func (c *Connection) currentRdy() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rdy
}

func (c *Connection) fetchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.events <- flow.Event{Kind: flow.EventClosed}
			close(c.events)
			close(c.messages)
			return
		default:
		}

		n := c.currentRdy()
		if n <= 0 {
			select {
			case <-ctx.Done():
				continue
			case <-time.After(50 * time.Millisecond):
				continue
			}
		}

		batch, err := c.cons.Fetch(int(n), jetstream.FetchMaxWait(c.opts.fetchWait))
		if err != nil {
			continue // transient (no messages within fetchWait); retry
		}

		for jsMsg := range batch.Messages() {
			msg := &message{
				msg: jsMsg,
				report: func(finished bool) {
					if finished {
						c.events <- flow.Event{Kind: flow.EventFinished}
					} else {
						c.events <- flow.Event{Kind: flow.EventRequeued}
					}
				},
			}
			c.messages <- msg
			c.events <- flow.Event{Kind: flow.EventMessage}
		}
	}
}

// Close stops the fetch loop and closes the NATS connection.
func (c *Connection) Close() error {
	c.cancel()
	c.conn.Close()
	return nil
}
