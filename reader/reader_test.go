package reader_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/msoleymani/rdymux/dispatch"
	"github.com/msoleymani/rdymux/flow"
	"github.com/msoleymani/rdymux/internal/mock"
	"github.com/msoleymani/rdymux/reader"
)

// fakeTransportConn implements transport.Connection for reader tests: a
// flow.Connection with an attached stream of deliverable messages.
type fakeTransportConn struct {
	*mock.Connection
	messages chan dispatch.Message
}

func newFakeTransportConn(id string, maxRdy int64) *fakeTransportConn {
	return &fakeTransportConn{
		Connection: mock.NewConnection(id, maxRdy),
		messages:   make(chan dispatch.Message, 8),
	}
}

func (c *fakeTransportConn) Messages() <-chan dispatch.Message { return c.messages }
func (c *fakeTransportConn) Close() error {
	close(c.messages)
	c.Connection.Close()
	return nil
}

func (c *fakeTransportConn) deliver(msg *mock.Message) {
	c.messages <- msg
	c.Send(flow.EventMessage)
}

func settle() { time.Sleep(20 * time.Millisecond) }

func TestReaderDispatchesDeliveredMessages(t *testing.T) {
	d := dispatch.New("t", nil)

	var mu sync.Mutex
	var got []string
	d.Handle(func(c dispatch.Context) error {
		mu.Lock()
		got = append(got, string(c.Key()))
		mu.Unlock()
		return c.Finish()
	})

	r := reader.New(reader.Config{Flow: flow.Config{MaxInFlight: 5}}, d, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeTransportConn("c1", 5)
	r.AddConnection(ctx, conn)
	settle()
	conn.Send(flow.EventSubscribed)
	settle()

	conn.deliver(&mock.Message{K: []byte("k1"), V: []byte("v1")})
	settle()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "k1" {
		t.Fatalf("got = %v, want [k1]", got)
	}
}

func TestReaderRemoveConnectionStopsFlowTracking(t *testing.T) {
	d := dispatch.New("t", nil)
	d.Handle(func(c dispatch.Context) error { return c.Finish() })

	r := reader.New(reader.Config{Flow: flow.Config{MaxInFlight: 5}}, d, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeTransportConn("c1", 5)
	r.AddConnection(ctx, conn)
	settle()
	conn.Send(flow.EventSubscribed)
	settle()

	stats := r.Stats()
	if stats.ConnCount != 1 {
		t.Fatalf("ConnCount = %d, want 1", stats.ConnCount)
	}

	r.RemoveConnection("c1")
	settle()

	stats = r.Stats()
	if stats.ConnCount != 0 {
		t.Fatalf("ConnCount after remove = %d, want 0", stats.ConnCount)
	}
}
