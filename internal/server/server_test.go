package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestStream(t *testing.T) (*Server, string) {
	t.Helper()
	s := New(&Config{Listen: ":0"})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) StateUpdate {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var u StateUpdate
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("read update: %v", err)
	}
	return u
}

func TestPublishBroadcasts(t *testing.T) {
	s, url := newTestStream(t)
	conn := dial(t, url)

	s.Publish(StateUpdate{
		Device:     "1.13",
		Name:       "Living Room",
		Power:      true,
		TargetTemp: 23,
		Mode:       "cool",
		Fan:        "auto",
		At:         time.Now(),
	})

	u := readUpdate(t, conn)
	if u.Device != "1.13" || !u.Power || u.TargetTemp != 23 {
		t.Errorf("update = %+v", u)
	}
}

func TestStreamFramesAreText(t *testing.T) {
	s, url := newTestStream(t)
	conn := dial(t, url)

	s.Publish(StateUpdate{Device: "1.13", Power: true, TargetTemp: 23})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Errorf("message type = %d, want %d", msgType, websocket.TextMessage)
	}
	if !strings.Contains(string(payload), `"device":"1.13"`) {
		t.Errorf("payload = %s", payload)
	}
}

func TestSnapshotOnConnect(t *testing.T) {
	s, url := newTestStream(t)

	// States published before anyone subscribes.
	s.Publish(StateUpdate{Device: "1.13", Power: true, TargetTemp: 23, Mode: "cool", Fan: "auto"})
	s.Publish(StateUpdate{Device: "1.14", Power: false, TargetTemp: 24, Mode: "cool", Fan: "auto"})
	// Newer state for the same unit replaces the snapshot entry.
	s.Publish(StateUpdate{Device: "1.13", Power: true, TargetTemp: 21, Mode: "cool", Fan: "auto"})

	conn := dial(t, url)

	seen := map[string]StateUpdate{}
	for i := 0; i < 2; i++ {
		u := readUpdate(t, conn)
		seen[u.Device] = u
	}

	if u, ok := seen["1.13"]; !ok || u.TargetTemp != 21 {
		t.Errorf("snapshot for 1.13 = %+v, want latest setpoint 21", u)
	}
	if u, ok := seen["1.14"]; !ok || u.Power {
		t.Errorf("snapshot for 1.14 = %+v, want power off", u)
	}
}

func TestSubscriberAccounting(t *testing.T) {
	s, url := newTestStream(t)

	c1 := dial(t, url)
	dial(t, url)

	waitFor(t, func() bool { return s.SubscriberCount() == 2 })

	c1.Close()
	waitFor(t, func() bool { return s.SubscriberCount() == 1 })
}

func TestHealthz(t *testing.T) {
	s := New(&Config{Listen: ":0"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}
