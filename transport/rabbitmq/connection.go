// Package rabbitmq implements transport.Connection over amqp091-go.
//
// RabbitMQ has no RDY frame of its own, so credit is emulated with two
// channel-level primitives: Channel.Qos sets the prefetch count (the
// number of unacknowledged deliveries the broker will hand out, exactly
// NSQ's RDY semantics), and Channel.Flow(false) pauses delivery entirely
// for the RDY=0 case that Qos cannot express (a Qos prefetch of 0 means
// "unlimited" in AMQP 0-9-1, the opposite of RDY 0).
package rabbitmq

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/flow"
	"github.com/msoleymani/rdymux/transport"
)

func init() {
	transport.Register("rabbitmq", func(cfg transport.Config) (transport.Connection, error) {
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("rdymux/rabbitmq: at least one broker URI is required")
		}
		opts := optsFromExtra(cfg.Extra)
		if cfg.MaxInFlight > 0 {
			opts = append(opts, WithMaxRdy(cfg.MaxInFlight))
		}
		return New(cfg.Brokers[0], cfg.Topic, opts...)
	})
}

// Connection implements transport.Connection over a single amqp091-go
// channel consuming one queue.
type Connection struct {
	id   string
	conn *amqp.Connection
	ch   *amqp.Channel
	opts options

	events   chan flow.Event
	messages chan dispatch.Message

	mu      sync.Mutex
	closed  bool
	paused  bool
	currRdy int64
}

// New dials uri, declares/binds the queue named topic, and starts
// consuming. The connection is delivered with RDY effectively 0 (paused)
// until ReaderRdy's first SetRdy call.
func New(uri, topic string, fns ...Option) (*Connection, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("rdymux/rabbitmq: dial %q: %w", uri, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rdymux/rabbitmq: open channel: %w", err)
	}

	q, err := ch.QueueDeclare(topic, opts.durable, opts.autoDelete, opts.exclusive, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rdymux/rabbitmq: declare queue %q: %w", topic, err)
	}

	if opts.exchange != "" {
		rk := topic
		if opts.routingKey != "" {
			rk = opts.routingKey
		}
		if err := ch.QueueBind(q.Name, rk, opts.exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("rdymux/rabbitmq: bind queue %q: %w", q.Name, err)
		}
	}

	if err := ch.Flow(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rdymux/rabbitmq: pause flow: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", false, opts.exclusive, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rdymux/rabbitmq: consume %q: %w", q.Name, err)
	}

	c := &Connection{
		id:       uuid.NewString(),
		conn:     conn,
		ch:       ch,
		opts:     opts,
		events:   make(chan flow.Event, 32),
		messages: make(chan dispatch.Message, 32),
		paused:   true,
	}

	go c.consumeLoop(deliveries)
	c.events <- flow.Event{Kind: flow.EventSubscribed}
	return c, nil
}

func (c *Connection) ID() string                { return c.id }
func (c *Connection) MaxRdyCount() int64        { return c.opts.maxRdy }
func (c *Connection) Events() <-chan flow.Event { return c.events }
func (c *Connection) Messages() <-chan dispatch.Message { return c.messages }

// SetRdy maps n onto Channel.Qos/Channel.Flow as described in the package
// doc comment.
func (c *Connection) SetRdy(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if n <= 0 {
		if !c.paused {
			if err := c.ch.Flow(false); err == nil {
				c.paused = true
			}
		}
		c.currRdy = 0
		return
	}

	if err := c.ch.Qos(int(n), 0, false); err != nil {
		return
	}
	if c.paused {
		if err := c.ch.Flow(true); err != nil {
			return
		}
		c.paused = false
	}
	c.currRdy = n
}

func (c *Connection) consumeLoop(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		d := d
		msg := &message{
			delivery: d,
			requeue:  c.opts.requeueOnFail,
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
	c.events <- flow.Event{Kind: flow.EventClosed}
	close(c.events)
	close(c.messages)
}

// Close tears down the channel and connection. The consume loop observes
// the broker-initiated delivery channel close and emits EventClosed.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	if err := c.ch.Close(); err != nil {
		errs = append(errs, fmt.Errorf("rdymux/rabbitmq: close channel: %w", err))
	}
	if err := c.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("rdymux/rabbitmq: close connection: %w", err))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
