package wsrdy

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/flow"
)

// Connection implements transport.Connection over a raw websocket.Conn
// speaking the line protocol documented in protocol.go.
type Connection struct {
	id   string
	conn *websocket.Conn
	opts options

	writeMu sync.Mutex

	events   chan flow.Event
	messages chan dispatch.Message
	done     chan struct{}

	mu         sync.RWMutex
	maxRdy     int64
	lastSeen   time.Time
	closed     bool
}

// Dial opens a websocket to url, subscribes to topic, and blocks for the
// server's handshake response (an OK frame carrying the connection's
// MaxRdyCount) before starting the read and heartbeat loops.
func Dial(url, topic string, fns ...Option) (*Connection, error) {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.handshakeTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("rdymux/wsrdy: dial %q: %w", url, err)
	}

	c := &Connection{
		id:       topic + "-" + url,
		conn:     conn,
		opts:     opts,
		events:   make(chan flow.Event, opts.bufferSize),
		messages: make(chan dispatch.Message, opts.bufferSize),
		done:     make(chan struct{}),
		lastSeen: time.Now(),
	}

	if err := c.send(subLine(topic)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rdymux/wsrdy: subscribe %q: %w", topic, err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rdymux/wsrdy: read handshake: %w", err)
	}
	f := parseFrame(string(data))
	if f.kind != frameOK {
		conn.Close()
		return nil, fmt.Errorf("rdymux/wsrdy: unexpected handshake frame %q", string(data))
	}
	c.maxRdy = f.n

	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	go c.readLoop()
	go c.heartbeatLoop()

	c.events <- flow.Event{Kind: flow.EventSubscribed}
	return c, nil
}

func (c *Connection) ID() string                        { return c.id }
func (c *Connection) MaxRdyCount() int64                { return c.maxRdy }
func (c *Connection) Events() <-chan flow.Event          { return c.events }
func (c *Connection) Messages() <-chan dispatch.Message { return c.messages }

// SetRdy writes an "RDY n" control line.
func (c *Connection) SetRdy(n int64) {
	_ = c.send(rdyLine(n))
}

func (c *Connection) send(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Connection) lastSeenAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

func (c *Connection) reportFinished() {
	select {
	case c.events <- flow.Event{Kind: flow.EventFinished}:
	case <-c.done:
	}
}

func (c *Connection) reportRequeued() {
	select {
	case c.events <- flow.Event{Kind: flow.EventRequeued}:
	case <-c.done:
	}
}

func (c *Connection) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.closeOnce()
			return
		}
		c.touch()

		f := parseFrame(string(data))
		switch f.kind {
		case frameHeartbeat:
			// touch() above already recorded liveness.
		case frameMsg:
			msg := &message{id: f.id, body: f.body, conn: c}
			select {
			case c.messages <- msg:
			case <-c.done:
				return
			}
			select {
			case c.events <- flow.Event{Kind: flow.EventMessage}:
			case <-c.done:
				return
			}
		}
	}
}

func (c *Connection) heartbeatLoop() {
	ticker := time.NewTicker(c.opts.heartbeatTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if time.Since(c.lastSeenAt()) > c.opts.heartbeatTimeout {
				c.closeOnce()
				return
			}
		}
	}
}

func (c *Connection) closeOnce() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.events <- flow.Event{Kind: flow.EventClosed}
	close(c.events)
	close(c.messages)
}

// Close gracefully closes the underlying websocket connection.
func (c *Connection) Close() error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil
	}

	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.closeOnce()
	if err != nil {
		return fmt.Errorf("rdymux/wsrdy: close: %w", err)
	}
	return nil
}
