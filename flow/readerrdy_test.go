package flow

import (
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-package test double for Connection: a channel the
// test pushes wire events onto, and a log of every SetRdy call so
// assertions can read back exactly what was transmitted.
type fakeConn struct {
	id     string
	maxRdy int64
	events chan Event

	mu     sync.Mutex
	rdyLog []int64
}

func newFakeConn(id string, maxRdy int64) *fakeConn {
	return &fakeConn{id: id, maxRdy: maxRdy, events: make(chan Event, 32)}
}

func (f *fakeConn) ID() string             { return f.id }
func (f *fakeConn) MaxRdyCount() int64     { return f.maxRdy }
func (f *fakeConn) Events() <-chan Event   { return f.events }

func (f *fakeConn) SetRdy(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rdyLog = append(f.rdyLog, n)
}

func (f *fakeConn) lastRdy() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rdyLog) == 0 {
		return -1
	}
	return f.rdyLog[len(f.rdyLog)-1]
}

func (f *fakeConn) send(kind EventKind) { f.events <- Event{Kind: kind} }

// fakeBackoff is a controllable BackoffTimer double: it always reports
// a fixed interval so tests can assert on timing without racing a real
// exponential curve.
type fakeBackoff struct {
	mu        sync.Mutex
	interval  time.Duration
	successes int
	failures  int
}

func newFakeBackoff(interval time.Duration) *fakeBackoff {
	return &fakeBackoff{interval: interval}
}

func (b *fakeBackoff) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successes++
}

func (b *fakeBackoff) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
}

func (b *fakeBackoff) Interval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

func settle() { time.Sleep(20 * time.Millisecond) }

func newTestReader(maxInFlight int64, backoffInterval time.Duration) (*ReaderRdy, *fakeBackoff) {
	bt := newFakeBackoff(backoffInterval)
	r := NewReaderRdy(Config{
		MaxInFlight:             maxInFlight,
		LowRdyIdleTimeout:       40 * time.Millisecond,
		LowRdyRebalanceInterval: 60 * time.Millisecond,
	}, bt, nil)
	return r, bt
}

// S1: a single connection, admitted, given a full share, consumes one
// message and gets its cap back after finishing it.
func TestSingleConnectionFullShare(t *testing.T) {
	r, _ := newTestReader(5, time.Second)
	conn := newFakeConn("c1", 100)
	r.AddConnection(conn)
	conn.send(EventSubscribed)
	settle()

	if got := conn.lastRdy(); got != 5 {
		t.Fatalf("after SUBSCRIBED: lastRdySent = %d, want 5", got)
	}

	conn.send(EventMessage)
	settle()
	if got := r.InFlight(); got != 1 {
		t.Fatalf("after MESSAGE: InFlight = %d, want 1", got)
	}

	conn.send(EventFinished)
	settle()
	if got := r.InFlight(); got != 0 {
		t.Fatalf("after FINISHED: InFlight = %d, want 0", got)
	}
	if got := conn.lastRdy(); got != 5 {
		t.Fatalf("after FINISHED: lastRdySent = %d, want 5", got)
	}
}

// S2: three connections sharing maxInFlight=10 should split 10 into
// 4/3/3 in admission order.
func TestThreeConnectionsEvenSplit(t *testing.T) {
	r, _ := newTestReader(10, time.Second)
	c1 := newFakeConn("c1", 100)
	c2 := newFakeConn("c2", 100)
	c3 := newFakeConn("c3", 100)

	r.AddConnection(c1)
	c1.send(EventSubscribed)
	settle()
	r.AddConnection(c2)
	c2.send(EventSubscribed)
	settle()
	r.AddConnection(c3)
	c3.send(EventSubscribed)
	settle()

	want := map[*fakeConn]int64{c1: 4, c2: 3, c3: 3}
	for c, w := range want {
		if got := c.lastRdy(); got != w {
			t.Fatalf("connection %s: lastRdySent = %d, want %d", c.id, got, w)
		}
	}
}

// S3: a global BACKOFF forces every connection's credit to zero; once
// the backoff interval elapses the reader tries exactly one connection
// with RDY 1, and a subsequent FINISHED restores full credit.
func TestGlobalBackoffAndRecovery(t *testing.T) {
	r, bt := newTestReader(5, 30*time.Millisecond)
	conn := newFakeConn("c1", 100)
	r.AddConnection(conn)
	conn.send(EventSubscribed)
	settle()
	if got := conn.lastRdy(); got != 5 {
		t.Fatalf("initial lastRdySent = %d, want 5", got)
	}

	conn.send(EventBackoff)
	settle()
	if got := conn.lastRdy(); got != 0 {
		t.Fatalf("after BACKOFF: lastRdySent = %d, want 0", got)
	}
	if bt.failures == 0 {
		t.Fatalf("expected backoff timer to record a failure")
	}

	time.Sleep(60 * time.Millisecond) // let the backoff timer expire into TRY_ONE
	if got := conn.lastRdy(); got != 1 {
		t.Fatalf("after backoff expiry: lastRdySent = %d, want 1", got)
	}

	conn.send(EventFinished)
	settle()
	if got := conn.lastRdy(); got != 5 {
		t.Fatalf("after recovery FINISHED: lastRdySent = %d, want 5", got)
	}
	if bt.successes == 0 {
		t.Fatalf("expected backoff timer to record a success")
	}
}

// S4: maxInFlight=1 with three connections enters the low-RDY regime;
// only one connection holds credit at a time, and finishing hands the
// token to the next one in rotation.
func TestLowRdyRegimeRotatesCredit(t *testing.T) {
	r, _ := newTestReader(1, time.Second)
	// One-second idle timer: the first checks below run ~40ms after c1's
	// timer is armed, which the 40ms test default would already have
	// reclaimed and handed on to c2.
	r.idleTimeout = time.Second
	c1 := newFakeConn("c1", 100)
	c2 := newFakeConn("c2", 100)
	c3 := newFakeConn("c3", 100)

	r.AddConnection(c1)
	c1.send(EventSubscribed)
	settle()
	r.AddConnection(c2)
	c2.send(EventSubscribed)
	settle()
	r.AddConnection(c3)
	c3.send(EventSubscribed)
	settle()

	credited := 0
	for _, c := range []*fakeConn{c1, c2, c3} {
		if c.lastRdy() == 1 {
			credited++
		}
	}
	if credited != 1 {
		t.Fatalf("expected exactly one credited connection, got %d", credited)
	}
	if c1.lastRdy() != 1 {
		t.Fatalf("expected c1 to hold the first credit, lastRdySent = %d", c1.lastRdy())
	}

	c1.send(EventMessage)
	settle()
	c1.send(EventFinished)
	settle()

	if got := c1.lastRdy(); got != 0 {
		t.Fatalf("after c1 finishes: c1 lastRdySent = %d, want 0", got)
	}
	if got := c2.lastRdy(); got != 1 {
		t.Fatalf("after c1 finishes: c2 lastRdySent = %d, want 1", got)
	}
}

// S4 variant: the idle timer, not a FINISHED event, reclaims unused
// low-RDY credit.
func TestLowRdyIdleTimeoutRotatesCredit(t *testing.T) {
	r, _ := newTestReader(1, time.Second)
	c1 := newFakeConn("c1", 100)
	c2 := newFakeConn("c2", 100)

	r.AddConnection(c1)
	c1.send(EventSubscribed)
	settle()
	r.AddConnection(c2)
	c2.send(EventSubscribed)
	settle()

	if got := c1.lastRdy(); got != 1 {
		t.Fatalf("expected c1 credited first, lastRdySent = %d", got)
	}

	// With the settle above, ~60ms since c1's idle timer was armed: past
	// its 40ms expiry, but before the 40ms timer c2 is armed with when it
	// takes the credit runs out and hands it back to c1.
	time.Sleep(40 * time.Millisecond)

	if got := c1.lastRdy(); got != 0 {
		t.Fatalf("after idle timeout: c1 lastRdySent = %d, want 0", got)
	}
	if got := c2.lastRdy(); got != 1 {
		t.Fatalf("after idle timeout: c2 lastRdySent = %d, want 1", got)
	}
}

// S5: a REQUEUED event outside of a global backoff bumps the connection
// back to its cap; the reader stays in MAX.
func TestRequeueBumpsWithoutGlobalBackoff(t *testing.T) {
	r, _ := newTestReader(10, time.Second)
	c1 := newFakeConn("c1", 100)
	c2 := newFakeConn("c2", 100)
	r.AddConnection(c1)
	c1.send(EventSubscribed)
	settle()
	r.AddConnection(c2)
	c2.send(EventSubscribed)
	settle()

	c1.send(EventMessage)
	settle()
	c1.send(EventRequeued)
	settle()

	if got := c1.lastRdy(); got != 5 {
		t.Fatalf("after REQUEUED: c1 lastRdySent = %d, want 5", got)
	}
	if r.state != readerMax {
		t.Fatalf("reader state = %v, want MAX", r.state)
	}
}

// S6: removing the only connection returns the reader to ZERO, and it
// reports not starved.
func TestRemovingLastConnectionReturnsToZero(t *testing.T) {
	r, _ := newTestReader(5, time.Second)
	conn := newFakeConn("c1", 100)
	r.AddConnection(conn)
	conn.send(EventSubscribed)
	settle()

	conn.send(EventClosed)
	settle()

	if r.state != readerZero {
		t.Fatalf("reader state = %v, want ZERO", r.state)
	}
	if r.IsStarved() {
		t.Fatalf("expected reader with no connections to report not starved")
	}
	if got := r.InFlight(); got != 0 {
		t.Fatalf("InFlight = %d, want 0", got)
	}
}

// Invariant: a connection that has used every unit of its cap reports
// starved, and stops once it finishes a message.
func TestIsStarvedReflectsInFlightAgainstCap(t *testing.T) {
	r, _ := newTestReader(2, time.Second)
	conn := newFakeConn("c1", 100)
	r.AddConnection(conn)
	conn.send(EventSubscribed)
	settle()

	conn.send(EventMessage)
	conn.send(EventMessage)
	settle()

	if !r.IsStarved() {
		t.Fatalf("expected reader to report starved once in-flight reaches cap")
	}

	conn.send(EventFinished)
	settle()

	if r.IsStarved() {
		t.Fatalf("expected reader to report not starved after a message finishes")
	}
}

// Invariant: a cap above the connection's advertised MaxRdyCount is
// clamped to it, so the connection is sent its ceiling rather than its
// share of maxInFlight.
func TestSetConnectionRdyMaxClampsToConnectionCeiling(t *testing.T) {
	r, _ := newTestReader(10, time.Second)
	conn := newFakeConn("c1", 3) // broker will only ever honor up to 3
	r.AddConnection(conn)
	conn.send(EventSubscribed)
	settle()

	if got := conn.lastRdy(); got != 3 {
		t.Fatalf("lastRdySent = %d, want 3 (clamped to connection ceiling)", got)
	}
}

// Invariant (spec.md §8 property #2): every connection's lastRdySent is
// 0 while the reader is in BACKOFF. A second connection admitted while
// the reader is backed off must not resurrect the backed-off
// connection's credit, even though admission forces a low-RDY balance
// pass across both connections.
func TestAdmissionDuringBackoffDoesNotResumeCredit(t *testing.T) {
	r, _ := newTestReader(1, time.Hour) // long interval: never auto-recovers mid-test
	c1 := newFakeConn("c1", 100)
	r.AddConnection(c1)
	c1.send(EventSubscribed)
	settle()
	if got := c1.lastRdy(); got != 1 {
		t.Fatalf("c1 initial lastRdySent = %d, want 1", got)
	}

	c1.send(EventBackoff)
	settle()
	if got := c1.lastRdy(); got != 0 {
		t.Fatalf("c1 after BACKOFF: lastRdySent = %d, want 0", got)
	}

	c2 := newFakeConn("c2", 100)
	r.AddConnection(c2)
	c2.send(EventSubscribed)
	settle()

	if got := c1.lastRdy(); got != 0 {
		t.Fatalf("c1 lastRdySent after c2 admitted mid-backoff = %d, want 0", got)
	}
	if got := c2.lastRdy(); got > 0 {
		t.Fatalf("c2 lastRdySent while reader still BACKOFF = %d, want <= 0 (never sent)", got)
	}
}
