package wsrdy

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msoleymani/rdymux/flow"
)

// serveLoopback accepts one websocket connection, performs the SUB/OK
// handshake advertising maxRdy, then for every RDY frame it receives
// pushes back that many MSG frames.
func serveLoopback(t *testing.T, maxRdy int64) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	handler := func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil || !strings.HasPrefix(string(data), "SUB ") {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("OK %d", maxRdy))); err != nil {
			return
		}

		seq := 0
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.HasPrefix(string(data), "RDY ") {
				var n int64
				fmt.Sscanf(string(data), "RDY %d", &n)
				for i := int64(0); i < n; i++ {
					seq++
					id := fmt.Sprintf("m%d", seq)
					body := fmt.Sprintf("payload-%d", seq)
					conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("MSG %s %s", id, body)))
				}
			}
		}
	}

	return httptest.NewServer(http.HandlerFunc(handler))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestWsrdyHandshakeLearnsMaxRdy(t *testing.T) {
	srv := serveLoopback(t, 7)
	defer srv.Close()

	conn, err := Dial(wsURL(srv.URL), "orders", WithHeartbeatTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if conn.MaxRdyCount() != 7 {
		t.Errorf("MaxRdyCount() = %d, want 7", conn.MaxRdyCount())
	}

	select {
	case ev := <-conn.Events():
		if ev.Kind != flow.EventSubscribed {
			t.Errorf("first event = %v, want EventSubscribed", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EventSubscribed")
	}
}

func TestWsrdySetRdyDeliversMessages(t *testing.T) {
	srv := serveLoopback(t, 10)
	defer srv.Close()

	conn, err := Dial(wsURL(srv.URL), "orders", WithHeartbeatTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	<-conn.Events() // drain EventSubscribed

	conn.SetRdy(3)

	for i := 0; i < 3; i++ {
		select {
		case msg := <-conn.Messages():
			if len(msg.Value()) == 0 {
				t.Error("expected non-empty message body")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
		select {
		case ev := <-conn.Events():
			if ev.Kind != flow.EventMessage {
				t.Errorf("event = %v, want EventMessage", ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for EventMessage")
		}
	}
}

func TestWsrdyFinishEmitsEventFinished(t *testing.T) {
	srv := serveLoopback(t, 10)
	defer srv.Close()

	conn, err := Dial(wsURL(srv.URL), "orders", WithHeartbeatTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	<-conn.Events()
	conn.SetRdy(1)

	msg := <-conn.Messages()
	<-conn.Events()

	if err := msg.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}

	select {
	case ev := <-conn.Events():
		if ev.Kind != flow.EventFinished {
			t.Errorf("event = %v, want EventFinished", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EventFinished")
	}
}
