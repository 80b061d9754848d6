package flow

import (
	"time"

	"github.com/msoleymani/rdymux/logging"
)

// connState is the per-connection credit state. It is owned exclusively
// by the ReaderRdy actor that created it; nothing outside this package
// touches it concurrently, so it needs no lock of its own.
type connState int

const (
	connInit connState = iota
	connBackoff
	connOne
	connMax
)

func (s connState) String() string {
	switch s {
	case connInit:
		return "INIT"
	case connBackoff:
		return "BACKOFF"
	case connOne:
		return "ONE"
	case connMax:
		return "MAX"
	default:
		return "UNKNOWN"
	}
}

// ConnectionRdy tracks how much credit a single connection is owed and
// currently holds. It is created for every connection a ReaderRdy is
// told about, but only takes part in balance() once the connection has
// been admitted (its SUBSCRIBED event has been observed).
type ConnectionRdy struct {
	conn Connection
	log  logging.Logger

	maxConnRdy  int64
	inFlight    int64
	lastRdySent int64
	state       connState

	idleTimer *time.Timer
}

func newConnectionRdy(conn Connection, log logging.Logger) *ConnectionRdy {
	if log == nil {
		log = logging.NoOp()
	}
	return &ConnectionRdy{
		conn:  conn,
		log:   log.With("connection_rdy", conn.ID()),
		state: connInit,
	}
}

// bump is the "you may hold more credit" stimulus. INIT and BACKOFF only
// advance when a cap has actually been assigned; ONE always promotes to
// MAX; MAX just re-affirms its current cap (a harmless resend).
func (c *ConnectionRdy) bump() {
	switch c.state {
	case connInit:
		if c.maxConnRdy > 0 {
			c.enterMax()
		}
	case connBackoff:
		if c.maxConnRdy > 0 {
			c.enterOne()
		}
	case connOne:
		c.enterMax()
	case connMax:
		c.setRdy(c.maxConnRdy)
	}
}

// backoff is the "give your credit back" stimulus. It only has an effect
// from ONE or MAX; a connection that never held credit has nothing to
// give back.
func (c *ConnectionRdy) backoff() {
	switch c.state {
	case connOne, connMax:
		c.enterBackoff()
	}
}

// setConnectionRdyMax updates the ceiling a future MAX entry will send,
// clamped to what the connection itself advertises. If the connection is
// already in MAX, the new cap takes effect immediately.
func (c *ConnectionRdy) setConnectionRdyMax(m int64) {
	if m < 0 {
		m = 0
	}
	if cap := c.conn.MaxRdyCount(); m > cap {
		m = cap
	}
	c.maxConnRdy = m
	if c.state == connMax {
		c.setRdy(c.maxConnRdy)
	}
}

func (c *ConnectionRdy) enterBackoff() {
	c.state = connBackoff
	c.cancelIdle()
	c.setRdy(0)
}

func (c *ConnectionRdy) enterOne() {
	c.state = connOne
	c.setRdy(1)
}

func (c *ConnectionRdy) enterMax() {
	c.state = connMax
	c.setRdy(c.maxConnRdy)
}

// setRdy transmits n to the wire only when it falls within
// [0, maxConnRdy]; out-of-range requests are suppressed at the wire level
// but still recorded, so lastRdySent can momentarily disagree with
// maxConnRdy between a cap reduction and the next balance pass.
func (c *ConnectionRdy) setRdy(n int64) {
	c.lastRdySent = n
	if n < 0 || n > c.maxConnRdy {
		c.log.Debugf("suppressing out-of-range RDY %d (cap %d)", n, c.maxConnRdy)
		return
	}
	c.conn.SetRdy(n)
}

// onMessage records delivery of a message: the idle timer (if any) is
// cancelled since the connection just proved it is not idle, and the
// in-flight count grows by one unit of consumed credit.
func (c *ConnectionRdy) onMessage() {
	c.cancelIdle()
	c.inFlight++
}

// onFinishOrRequeue records completion of a previously delivered message,
// successful or not; both release the same unit of in-flight credit.
func (c *ConnectionRdy) onFinishOrRequeue() {
	if c.inFlight > 0 {
		c.inFlight--
	}
}

// isStarved reports whether this connection has used every unit of
// credit it was given and cannot accept more work until something
// finishes or is requeued.
func (c *ConnectionRdy) isStarved() bool {
	return c.maxConnRdy > 0 && c.inFlight >= c.maxConnRdy
}

// backoffOnIdle arms a one-shot timer that invokes fire after d if the
// connection is not touched again first (onMessage or cancelIdle cancel
// it). fire is expected to deliver the resulting stimulus back through
// the owning ReaderRdy's serialization point, not run flow-control logic
// directly.
func (c *ConnectionRdy) backoffOnIdle(d time.Duration, fire func()) {
	c.cancelIdle()
	c.idleTimer = time.AfterFunc(d, fire)
}

func (c *ConnectionRdy) cancelIdle() {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

// Stats returns a snapshot suitable for logging or metrics export.
func (c *ConnectionRdy) Stats() ConnStats {
	return ConnStats{
		ID:          c.conn.ID(),
		State:       c.state.String(),
		InFlight:    c.inFlight,
		MaxRDY:      c.maxConnRdy,
		LastRdySent: c.lastRdySent,
	}
}
