// Package testhelpers provides WebSocket utilities shared by the relay's tests.
package testhelpers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds every blocking read done through these helpers.
const DefaultTimeout = 2 * time.Second

// Event is a decoded server frame. Type is lifted out for convenience and Raw
// keeps every field.
type Event struct {
	Type string
	Raw  map[string]any
}

// WebSocketURL converts an httptest server URL into a ws:// URL for path.
func WebSocketURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}

// ConnectWebSocket dials url with the given Origin header (none when empty).
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// MustConnect dials url and fails the test on error. The connection is closed
// when the test ends.
func MustConnect(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := ConnectWebSocket(url, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendJSON writes v as a single JSON text frame.
func SendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// ReadEvent reads the next frame, failing the test if none arrives in time.
func ReadEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(DefaultTimeout)))
	var raw map[string]any
	require.NoError(t, conn.ReadJSON(&raw))
	typ, _ := raw["type"].(string)
	return Event{Type: typ, Raw: raw}
}

// ReadUntil reads frames until one of the given type arrives and returns it.
// Frames of other types are discarded.
func ReadUntil(t *testing.T, conn *websocket.Conn, typ string) Event {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		ev := ReadEvent(t, conn)
		if ev.Type == typ {
			return ev
		}
	}
	require.FailNow(t, "timed out waiting for event", typ)
	return Event{}
}

// ExpectNoEvent asserts that no frame arrives within wait. A read timeout
// leaves a gorilla connection unusable, so call it last on a connection.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	var raw map[string]any
	err := conn.ReadJSON(&raw)
	require.Error(t, err, "unexpected frame: %v", raw)
}

// CloseWebSocket sends a normal close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// ActiveUsers returns the activeUsers field of ev.
func ActiveUsers(t *testing.T, ev Event) []any {
	t.Helper()
	users, ok := ev.Raw["activeUsers"].([]any)
	require.True(t, ok, "event %s has no activeUsers", ev.Type)
	return users
}
