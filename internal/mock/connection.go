package mock

import (
	"context"
	"sync"

	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/flow"
)

// Connection is a test double for flow.Connection: a channel tests push
// events onto, and a log of every SetRdy call.
type Connection struct {
	id     string
	maxRdy int64
	events chan flow.Event

	mu     sync.Mutex
	rdyLog []int64
}

func NewConnection(id string, maxRdy int64) *Connection {
	return &Connection{id: id, maxRdy: maxRdy, events: make(chan flow.Event, 32)}
}

func (c *Connection) ID() string                  { return c.id }
func (c *Connection) MaxRdyCount() int64          { return c.maxRdy }
func (c *Connection) Events() <-chan flow.Event   { return c.events }

func (c *Connection) SetRdy(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rdyLog = append(c.rdyLog, n)
}

// LastRdy returns the most recently transmitted RDY value, or -1 if
// none has been sent yet.
func (c *Connection) LastRdy() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rdyLog) == 0 {
		return -1
	}
	return c.rdyLog[len(c.rdyLog)-1]
}

// Send pushes a wire-level event onto the connection's event stream.
func (c *Connection) Send(kind flow.EventKind) {
	c.events <- flow.Event{Kind: kind}
}

// Close closes the event stream, which a ReaderRdy watching it treats
// as an implicit flow.EventClosed.
func (c *Connection) Close() {
	close(c.events)
}

// Publisher is a test double for dispatch.Publisher.
type Publisher struct {
	mu        sync.Mutex
	published []PublishedMessage
	PublishErr error
}

// PublishedMessage records a message sent through Publish.
type PublishedMessage struct {
	Topic   string
	Message dispatch.Message
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, topic string, msg dispatch.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.published = append(p.published, PublishedMessage{Topic: topic, Message: msg})
	return nil
}

// Published returns all messages sent via Publish.
func (p *Publisher) Published() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedMessage, len(p.published))
	copy(out, p.published)
	return out
}
