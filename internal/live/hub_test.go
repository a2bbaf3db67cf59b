package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"workhub/internal/model"
)

func TestPublish_NoDashboardIsNoOp(t *testing.T) {
	h := NewHub()
	h.Publish(model.LiveEvent{ID: "1", Event: "whatsapp-message"})
	if h.Connected() {
		t.Error("hub should report no connection")
	}
}

// dialHub connects a client and returns once the server side has attached
// the connection to the hub.
func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	attached := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Attach(conn)
		attached <- struct{}{}
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	select {
	case <-attached:
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard never attached")
	}
	return client, func() {
		client.Close()
		srv.Close()
	}
}

func TestPublish_DeliversToDashboard(t *testing.T) {
	h := NewHub()
	client, done := dialHub(t, h)
	defer done()

	h.Publish(model.LiveEvent{ID: "e1", Event: "whatsapp-message", Data: map[string]string{"from": "628123"}})

	var got model.LiveEvent
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.ID != "e1" || got.Event != "whatsapp-message" {
		t.Errorf("event = %+v", got)
	}
}

func TestAttach_ReplacesPrevious(t *testing.T) {
	h := NewHub()
	first, doneFirst := dialHub(t, h)
	defer doneFirst()
	second, doneSecond := dialHub(t, h)
	defer doneSecond()

	h.Publish(model.LiveEvent{ID: "e2", Event: "messenger-event"})

	var got model.LiveEvent
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := second.ReadJSON(&got); err != nil {
		t.Fatalf("second connection ReadJSON: %v", err)
	}
	if got.ID != "e2" {
		t.Errorf("event = %+v", got)
	}

	// The first connection was closed by the replacement.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Error("first connection should be closed")
	}
}

func TestDetach_OnlyClearsCurrent(t *testing.T) {
	h := NewHub()
	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conns <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	for i := 0; i < 2; i++ {
		client, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer client.Close()
	}
	stale, current := <-conns, <-conns

	h.Attach(stale)
	h.Attach(current)

	// A late read-pump exit on the replaced connection must not detach the
	// active dashboard.
	h.Detach(stale)
	if !h.Connected() {
		t.Error("active dashboard was detached by a stale connection")
	}
	h.Detach(current)
	if h.Connected() {
		t.Error("current dashboard should be detached")
	}
}
