package flow

import (
	"sync"
	"time"

	"github.com/msoleymani/rdymux/logging"
)

// readerState is the reader-level credit state. All mutations happen
// under ReaderRdy.mu, which is the single serialization point standing
// in for the "one actor, one mailbox" execution model: every public
// method, every timer callback and every per-connection event handler
// takes the same lock before touching reader or connection state, so no
// two transitions ever run concurrently.
type readerState int

const (
	readerZero readerState = iota
	readerTryOne
	readerMax
	readerBackoff
)

func (s readerState) String() string {
	switch s {
	case readerZero:
		return "ZERO"
	case readerTryOne:
		return "TRY_ONE"
	case readerMax:
		return "MAX"
	case readerBackoff:
		return "BACKOFF"
	default:
		return "UNKNOWN"
	}
}

// Config holds the tunables a ReaderRdy is constructed with.
type Config struct {
	// MaxInFlight is the total credit the reader may extend across all
	// of its connections at once.
	MaxInFlight int64
	// LowRdyIdleTimeout bounds how long a connection may hold unused
	// credit in the low-RDY regime before it is reclaimed for another
	// connection. Defaults to one second.
	LowRdyIdleTimeout time.Duration
	// LowRdyRebalanceInterval is the period of the safety-net rebalance
	// that runs while the reader is in the low-RDY regime, covering the
	// case where no connection event arrives to trigger one naturally.
	// Defaults to 1.5 seconds.
	LowRdyRebalanceInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.LowRdyIdleTimeout <= 0 {
		c.LowRdyIdleTimeout = time.Second
	}
	if c.LowRdyRebalanceInterval <= 0 {
		c.LowRdyRebalanceInterval = 1500 * time.Millisecond
	}
	return c
}

// ReaderRdy coordinates credit across every connection subscribed to one
// logical reader (a topic/channel pair, in NSQ terms). It owns the
// ConnectionRdy for each connection and is the only thing that ever
// mutates one.
type ReaderRdy struct {
	mu sync.Mutex

	maxInFlight       int64
	idleTimeout       time.Duration
	rebalanceInterval time.Duration

	btimer BackoffTimer
	log    logging.Logger

	state   readerState
	conns   map[string]*ConnectionRdy
	pending map[string]*ConnectionRdy
	order   *RoundRobin

	backoffHandle  *time.Timer
	rebalanceTimer *time.Timer
}

// NewReaderRdy constructs a ReaderRdy with an explicit backoff strategy,
// for production wiring or for tests that need to control backoff
// behavior directly.
func NewReaderRdy(cfg Config, btimer BackoffTimer, log logging.Logger) *ReaderRdy {
	if log == nil {
		log = logging.NoOp()
	}
	cfg = cfg.withDefaults()
	return &ReaderRdy{
		maxInFlight:       cfg.MaxInFlight,
		idleTimeout:       cfg.LowRdyIdleTimeout,
		rebalanceInterval: cfg.LowRdyRebalanceInterval,
		btimer:            btimer,
		log:               log.With("reader_rdy", ""),
		state:             readerZero,
		conns:             make(map[string]*ConnectionRdy),
		pending:           make(map[string]*ConnectionRdy),
		order:             NewRoundRobin(),
	}
}

// AddConnection registers conn with the reader. The connection does not
// take part in credit balancing until it reports EventSubscribed; until
// then its events are still tracked so in-flight bookkeeping stays
// correct even for a connection the wire hasn't fully admitted yet.
// AddConnection returns ErrNilConnection if conn is nil.
func (r *ReaderRdy) AddConnection(conn Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	id := conn.ID()

	r.mu.Lock()
	cr := newConnectionRdy(conn, r.log)
	r.pending[id] = cr
	r.mu.Unlock()

	go r.watch(id, conn)
	return nil
}

// RemoveConnection forgets conn, whether or not it was ever admitted.
// RemoveConnection returns ErrUnknownConnection if the reader has no
// record of id.
func (r *ReaderRdy) RemoveConnection(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.removeConnection(id) {
		return ErrUnknownConnection
	}
	return nil
}

// IsStarved reports whether any admitted connection has exhausted its
// credit.
func (r *ReaderRdy) IsStarved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cr := range r.conns {
		if cr.isStarved() {
			return true
		}
	}
	return false
}

// InFlight returns the sum of in-flight messages across every connection.
func (r *ReaderRdy) InFlight() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlightLocked()
}

// Stats returns a snapshot of the reader and every admitted connection.
// Connections still waiting for EventSubscribed are not included.
func (r *ReaderRdy) Stats() ReaderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := ReaderStats{
		State:       r.state.String(),
		MaxInFlight: r.maxInFlight,
		InFlight:    r.inFlightLocked(),
		ConnCount:   len(r.conns),
	}
	for _, cr := range r.conns {
		out.Connections = append(out.Connections, cr.Stats())
	}
	return out
}

// watch bridges a connection's event channel into the reader's single
// serialization point. One goroutine per connection, same shape as a
// typical read-loop; the only shared state it touches is guarded by
// r.mu.
func (r *ReaderRdy) watch(id string, conn Connection) {
	for ev := range conn.Events() {
		r.mu.Lock()
		r.handleEvent(id, ev.Kind)
		r.mu.Unlock()
	}
	r.mu.Lock()
	r.handleEvent(id, EventClosed)
	r.mu.Unlock()
}

func (r *ReaderRdy) handleEvent(id string, kind EventKind) {
	switch kind {
	case EventSubscribed:
		r.handleSubscribed(id)
	case EventMessage:
		if cr := r.activeOrPending(id); cr != nil {
			cr.onMessage()
		}
	case EventFinished:
		if _, ok := r.conns[id]; ok {
			r.handleFinished(id)
		} else if cr, ok := r.pending[id]; ok {
			cr.onFinishOrRequeue()
		}
	case EventRequeued:
		if _, ok := r.conns[id]; ok {
			r.handleRequeued(id)
		} else if cr, ok := r.pending[id]; ok {
			cr.onFinishOrRequeue()
		}
	case EventBackoff:
		if _, ok := r.conns[id]; ok {
			r.raiseBackoff()
		}
	case EventClosed:
		r.removeConnection(id)
	}
}

func (r *ReaderRdy) activeOrPending(id string) *ConnectionRdy {
	if cr, ok := r.conns[id]; ok {
		return cr
	}
	if cr, ok := r.pending[id]; ok {
		return cr
	}
	return nil
}

func (r *ReaderRdy) handleSubscribed(id string) {
	cr, ok := r.pending[id]
	if !ok {
		return
	}
	delete(r.pending, id)
	r.admitConnection(cr)
}

// admitConnection enters a freshly subscribed connection into the active
// set and reacts according to the trigger table in §4.2: the first
// connection into an empty reader forces a transition straight to MAX;
// later admissions just recompute caps and, outside the low-RDY regime,
// hand the newcomer its share immediately.
func (r *ReaderRdy) admitConnection(cr *ConnectionRdy) {
	id := cr.conn.ID()
	r.conns[id] = cr
	r.order.Add(id)

	switch r.state {
	case readerZero:
		r.state = readerMax
		r.balance()
		for _, c := range r.conns {
			c.bump()
		}
	case readerTryOne, readerMax:
		r.balance()
		if !r.lowRdy() {
			cr.bump()
		}
	case readerBackoff:
		r.balance()
		cr.backoff()
	}
}

// removeConnection does the actual bookkeeping and reports whether id
// was known to the reader (pending or admitted).
func (r *ReaderRdy) removeConnection(id string) bool {
	if cr, ok := r.pending[id]; ok {
		cr.cancelIdle()
		delete(r.pending, id)
		return true
	}
	cr, ok := r.conns[id]
	if !ok {
		return false
	}
	cr.cancelIdle()
	delete(r.conns, id)
	r.order.Remove(id)

	if len(r.conns) == 0 {
		r.state = readerZero
		r.cancelBackoffTimer()
		r.cancelRebalanceTimer()
		return true
	}
	r.balance()
	return true
}

// handleFinished implements the FINISHED branch of §4.2: report success
// to the backoff timer, then either bump the connection back to its cap
// (normal regime) or hand its credit on to the next waiting connection
// (low-RDY regime), and finally let a successful delivery count toward
// recovering from a global backoff.
func (r *ReaderRdy) handleFinished(id string) {
	cr, ok := r.conns[id]
	if !ok {
		return
	}
	cr.onFinishOrRequeue()
	r.btimer.Success()

	if r.lowRdy() {
		cr.backoff()
		r.order.Add(id)
		r.balance()
	} else {
		cr.bump()
	}
	r.raiseSuccess()
}

// handleRequeued implements the REQUEUED branch: a requeue only bumps the
// connection back up if the reader is not already globally backed off,
// since a fresh BACKOFF entry has already pulled every connection's
// credit to zero and a requeue-triggered bump would fight that.
func (r *ReaderRdy) handleRequeued(id string) {
	cr, ok := r.conns[id]
	if !ok {
		return
	}
	cr.onFinishOrRequeue()
	if r.state != readerBackoff {
		cr.bump()
	}
}

// raiseBackoff implements the reader-level "backoff" column: ZERO has no
// connections to back off and stays put, everything else (re-)enters
// BACKOFF and runs its entry action.
func (r *ReaderRdy) raiseBackoff() {
	if r.state == readerZero {
		return
	}
	r.enterBackoff()
}

func (r *ReaderRdy) enterBackoff() {
	r.state = readerBackoff
	r.btimer.Failure()
	for _, cr := range r.conns {
		cr.backoff()
	}
	r.cancelRebalanceTimer()
	r.armBackoffTimer(r.btimer.Interval())
}

// raiseSuccess implements the reader-level "success" column: only
// TRY_ONE reacts, promoting to MAX and bumping every connection back up
// to its balanced cap.
func (r *ReaderRdy) raiseSuccess() {
	if r.state != readerTryOne {
		return
	}
	r.state = readerMax
	r.balance()
	for _, cr := range r.conns {
		cr.bump()
	}
}

func (r *ReaderRdy) armBackoffTimer(d time.Duration) {
	if r.backoffHandle != nil {
		r.backoffHandle.Stop()
	}
	r.backoffHandle = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.handleBackoffExpiry()
	})
}

func (r *ReaderRdy) cancelBackoffTimer() {
	if r.backoffHandle != nil {
		r.backoffHandle.Stop()
		r.backoffHandle = nil
	}
}

// handleBackoffExpiry implements the reader-level "try" column: only
// BACKOFF reacts, advancing to TRY_ONE and bumping exactly one
// connection via the round robin.
func (r *ReaderRdy) handleBackoffExpiry() {
	if r.state != readerBackoff {
		return
	}
	r.state = readerTryOne
	for _, id := range r.order.Next(1) {
		if cr, ok := r.conns[id]; ok {
			cr.bump()
		}
	}
}

func (r *ReaderRdy) armRebalanceTimer() {
	r.cancelRebalanceTimer()
	r.rebalanceTimer = time.AfterFunc(r.rebalanceInterval, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.lowRdy() {
			return
		}
		r.balance()
	})
}

func (r *ReaderRdy) cancelRebalanceTimer() {
	if r.rebalanceTimer != nil {
		r.rebalanceTimer.Stop()
		r.rebalanceTimer = nil
	}
}

func (r *ReaderRdy) armIdleTimer(cr *ConnectionRdy) {
	if cr.idleTimer != nil {
		return
	}
	id := cr.conn.ID()
	cr.backoffOnIdle(r.idleTimeout, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.handleIdleTimeout(id)
	})
}

// handleIdleTimeout reclaims a connection's unused low-RDY credit and
// hands the next waiting connection a turn, the same way a FINISHED
// event would.
func (r *ReaderRdy) handleIdleTimeout(id string) {
	cr, ok := r.conns[id]
	if !ok {
		return
	}
	cr.backoff()
	r.order.Add(id)
	r.balance()
}

// lowRdy reports whether the reader currently has more connections than
// it has credit to give each of them a cap of at least one.
func (r *ReaderRdy) lowRdy() bool {
	n := int64(len(r.conns))
	if n == 0 {
		return false
	}
	max := r.maxInFlight
	if r.state == readerTryOne {
		max = 1
	}
	return max/n == 0
}

// balance recomputes per-connection caps. In the normal regime every
// connection gets an even share of maxInFlight (the first
// maxInFlight%N connections get one extra unit); caps take effect on
// the connection's next MAX entry, immediately if it is already there.
// In the low-RDY regime every connection's cap drops to 1 and only as
// many connections as there is budget for hold nonzero credit at once,
// selected by rotating the round robin.
func (r *ReaderRdy) balance() {
	n := int64(len(r.conns))
	if n == 0 {
		return
	}
	max := r.maxInFlight
	if r.state == readerTryOne {
		max = 1
	}
	perConn := max / n
	if perConn >= 1 {
		r.cancelRebalanceTimer()
		r.balanceNormal(perConn, n)
		return
	}
	r.balanceLowRdy(max)
}

func (r *ReaderRdy) balanceNormal(perConn, n int64) {
	remainder := r.maxInFlight % n
	ids := r.order.All()
	for i, id := range ids {
		cr, ok := r.conns[id]
		if !ok {
			continue
		}
		cap := perConn
		if int64(i) < remainder {
			cap++
		}
		cr.setConnectionRdyMax(cap)
	}
}

func (r *ReaderRdy) balanceLowRdy(max int64) {
	r.syncRoundRobin()
	for _, cr := range r.conns {
		cr.setConnectionRdyMax(1)
	}

	// While globally backed off, every connection's cap is tracked but
	// credit stays at zero: only the BACKOFF-timer-driven TRY_ONE
	// transition (handleBackoffExpiry) may hand credit back out.
	if r.state == readerBackoff {
		r.cancelRebalanceTimer()
		return
	}

	avail := max - r.creditedCount()
	if avail > 0 {
		for _, id := range r.order.Next(int(avail)) {
			cr, ok := r.conns[id]
			if !ok {
				continue
			}
			cr.bump()
			r.order.Remove(id)
		}
	}

	for _, cr := range r.conns {
		if cr.state != connOne && cr.state != connMax {
			continue
		}
		if cr.inFlight > 0 {
			continue
		}
		r.armIdleTimer(cr)
	}
	r.armRebalanceTimer()
}

// syncRoundRobin makes sure the rotation holds exactly the connections
// that are not currently holding credit, regardless of how each got (or
// lost) its credit since the rotation was last consulted.
func (r *ReaderRdy) syncRoundRobin() {
	for id, cr := range r.conns {
		if cr.state == connOne || cr.state == connMax {
			r.order.Remove(id)
		} else {
			r.order.Add(id)
		}
	}
}

func (r *ReaderRdy) creditedCount() int64 {
	var n int64
	for _, cr := range r.conns {
		if cr.state == connOne || cr.state == connMax {
			n++
		}
	}
	return n
}

func (r *ReaderRdy) inFlightLocked() int64 {
	var sum int64
	for _, cr := range r.conns {
		sum += cr.inFlight
	}
	return sum
}
