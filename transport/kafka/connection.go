// Package kafka implements transport.Connection over segmentio/kafka-go.
//
// Kafka has no per-connection credit primitive, so RDY is emulated with a
// resizable counting semaphore: SetRdy(n) resizes it, and the fetch loop
// only calls FetchMessage while holding a permit, acquired before the
// call and released on Finish or Requeue.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/flow"
	"github.com/msoleymani/rdymux/transport"
)

func init() {
	transport.Register("kafka", func(cfg transport.Config) (transport.Connection, error) {
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("rdymux/kafka: at least one broker address is required")
		}
		opts := optsFromExtra(cfg.Extra)
		if cfg.MaxInFlight > 0 {
			opts = append(opts, WithMaxRdy(cfg.MaxInFlight))
		}
		return New(cfg.Brokers, cfg.Group, cfg.Topic, opts...)
	})
}

// Connection implements transport.Connection over a single kafka.Reader.
type Connection struct {
	id     string
	reader *kafka.Reader
	opts   options
	sem    *semaphore

	events   chan flow.Event
	messages chan dispatch.Message

	cancel context.CancelFunc
}

// New creates a Connection consuming topic within group. RDY starts at 0
// (semaphore capacity 0): no fetch occurs until ReaderRdy's first SetRdy.
func New(brokers []string, group, topic string, fns ...Option) (*Connection, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	cfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: opts.minBytes,
		MaxBytes: opts.maxBytes,
		MaxWait:  opts.maxWait,
	}
	if opts.dialer != nil {
		cfg.Dialer = opts.dialer
	}
	if group == "" {
		cfg.StartOffset = opts.startOffset
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:       uuid.NewString(),
		reader:   kafka.NewReader(cfg),
		opts:     opts,
		sem:      newSemaphore(),
		events:   make(chan flow.Event, 32),
		messages: make(chan dispatch.Message, 32),
		cancel:   cancel,
	}

	go c.fetchLoop(ctx)
	c.events <- flow.Event{Kind: flow.EventSubscribed}
	return c, nil
}

func (c *Connection) ID() string                        { return c.id }
func (c *Connection) MaxRdyCount() int64                { return c.opts.maxRdy }
func (c *Connection) Events() <-chan flow.Event          { return c.events }
func (c *Connection) Messages() <-chan dispatch.Message { return c.messages }

// SetRdy resizes the fetch-permit semaphore.
func (c *Connection) SetRdy(n int64) {
	c.sem.resize(n)
}

func (c *Connection) fetchLoop(ctx context.Context) {
	for {
		if err := c.sem.acquire(ctx); err != nil {
			break
		}

		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			c.sem.release()
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			break
		}

		msg := &message{
			raw:    raw,
			reader: c.reader,
			ctx:    ctx,
			report: func(finished bool) {
				c.sem.release()
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
	c.events <- flow.Event{Kind: flow.EventClosed}
	close(c.events)
	close(c.messages)
}

// Close cancels the fetch loop and closes the underlying reader.
func (c *Connection) Close() error {
	c.cancel()
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("rdymux/kafka: close reader: %w", err)
	}
	return nil
}
