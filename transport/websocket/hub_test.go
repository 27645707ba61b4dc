package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/citycurrent/game/engine"
	"github.com/wricardo/citycurrent/game/tiles"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount(sessionID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients in %s, got %d", n, sessionID, hub.ClientCount(sessionID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return message
}

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub.sessions == nil || hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Fatal("Hub not fully initialized")
	}
	if cap(hub.broadcast) != broadcastBuffer {
		t.Errorf("Expected buffered broadcast queue, got cap %d", cap(hub.broadcast))
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	a := &Client{hub: hub, sessionID: "s1", send: make(chan []byte, 1)}
	b := &Client{hub: hub, sessionID: "s1", send: make(chan []byte, 1)}

	hub.registerClient(a)
	hub.registerClient(b)
	if hub.ClientCount("s1") != 2 {
		t.Errorf("Expected 2 clients, got %d", hub.ClientCount("s1"))
	}

	hub.unregisterClient(a)
	if _, ok := <-a.send; ok {
		t.Error("Expected send channel closed on unregister")
	}
	hub.unregisterClient(a)

	hub.unregisterClient(b)
	if _, exists := hub.sessions["s1"]; exists {
		t.Error("Expected empty session to be cleaned up")
	}
}

func TestHubSlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "s1", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{Type: MessageStateUpdate, SessionID: "s1"})

	if hub.ClientCount("s1") != 0 {
		t.Error("Expected client with a full queue to be unregistered")
	}
}

func TestHubNotifyNeverBlocks(t *testing.T) {
	hub := NewHub() // Run not started; nothing drains the queue
	hub.registerClient(&Client{hub: hub, sessionID: "s1", send: make(chan []byte, 1)})

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+50; i++ {
			hub.Notify("s1", engine.Event{Type: engine.EventTick, Index: -1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	if len(hub.broadcast) != broadcastBuffer {
		t.Errorf("Expected queue to be full, got %d", len(hub.broadcast))
	}
}

func TestHubNotifySkipsUnwatchedSessions(t *testing.T) {
	hub := NewHub()
	hub.Notify("nobody", engine.Event{Type: engine.EventTick, Index: -1})
	if len(hub.broadcast) != 0 {
		t.Error("Expected no message queued for a session without clients")
	}
}

func TestWebSocketUpgrade(t *testing.T) {
	hub, server := startHub(t)

	conn := dial(t, server, "ws-test")
	waitForClients(t, hub, "ws-test", 1)

	conn.Close()
	waitForClients(t, hub, "ws-test", 0)
}

func TestWebSocketReceivesEngineEvents(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server, "city")
	other := dial(t, server, "elsewhere")
	waitForClients(t, hub, "city", 1)
	waitForClients(t, hub, "elsewhere", 1)

	eng := engine.NewWithDefaults()
	eng.Subscribe(func(ev engine.Event) { hub.Notify("city", ev) })

	eng.PlaceTile(41, tiles.Factory)
	eng.Tick()

	placed := readMessage(t, conn)
	if placed.Type != MessageStateUpdate || placed.SessionID != "city" || placed.Event != engine.EventTilePlaced {
		t.Errorf("Unexpected message %+v", placed)
	}
	if placed.Index == nil || *placed.Index != 41 || placed.Tile != string(tiles.Factory) {
		t.Errorf("Expected index 41 Factory, got %v %s", placed.Index, placed.Tile)
	}
	if placed.State == nil || placed.State.Grid[41].Tile != tiles.Factory {
		t.Error("Expected snapshot with the placed tile")
	}

	ticked := readMessage(t, conn)
	if ticked.Event != engine.EventTick || ticked.Index != nil {
		t.Errorf("Expected tick without index, got %+v", ticked)
	}
	if ticked.State.Demand != 25 {
		t.Errorf("Expected demand 25 after tick, got %v", ticked.State.Demand)
	}

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("Expected no message for a different session")
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub, server := startHub(t)
	conn := dial(t, server, "gone")
	waitForClients(t, hub, "gone", 1)

	hub.BroadcastEvent("gone", "session_deleted", map[string]string{"id": "gone"})

	message := readMessage(t, conn)
	if message.Type != "session_deleted" {
		t.Errorf("Expected session_deleted, got %s", message.Type)
	}
}

func TestHubRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	client := &Client{hub: hub, sessionID: "s1", send: make(chan []byte, 1)}

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	hub.register <- client

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected client queue closed on shutdown")
	}
}
