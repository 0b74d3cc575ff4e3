package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quillhq/chatrelay/internal/store"
)

// newTestRelay starts a fully wired relay (store, hub, routes) on an
// httptest server and points the active configuration at it. The rate limit
// is raised so tests can send bursts of frames without throttling.
func newTestRelay(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	hub := NewHub(st, logger)
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(2 * time.Second) })

	ts := httptest.NewServer(SetupRoutes(hub, st, logger))
	t.Cleanup(ts.Close)

	cfg := NewConfig()
	cfg.AllowedOrigins = append([]string{ts.URL}, cfg.AllowedOrigins...)
	cfg.PublicBaseURL = ts.URL
	cfg.RateLimit.Burst = 100
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(nil) })

	return ts, st
}

// dialRelay opens a WebSocket connection to the relay's /ws endpoint with an
// allowed Origin header.
func dialRelay(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"

	header := http.Header{}
	header.Set("Origin", ts.URL)

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		_ = resp.Body.Close()
	})
	return conn
}

// emitEvent writes a named-event envelope to the connection.
func emitEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		t.Fatalf("Failed to send %s event: %v", event, err)
	}
}

// expectEvent reads the next frame and asserts its event name, returning the
// raw payload.
func expectEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var envelope Envelope
	if err := conn.ReadJSON(&envelope); err != nil {
		t.Fatalf("Failed to read %s event: %v", event, err)
	}
	if envelope.Event != event {
		t.Fatalf("Expected event %q, got %q", event, envelope.Event)
	}
	return envelope.Data
}

// expectNoEvent asserts that nothing arrives on the connection within the
// timeout.
func expectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no event, but received one")
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of events: %v", err)
}

// joinRoom performs a join handshake and waits for the acknowledgment.
func joinRoom(t *testing.T, conn *websocket.Conn, room string, username *string) {
	t.Helper()
	emitEvent(t, conn, EventJoinRoom, map[string]any{"room": room, "username": username})
	expectEvent(t, conn, EventJoinRoomSuccess)
}
