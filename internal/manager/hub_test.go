package manager

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/oddeven-league/tournament-system/internal/logging"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	logger, err := logging.New("hub-test", os.DevNull)
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return NewHub(logger, nil)
}

func TestHubBroadcastsToConnectedClient(t *testing.T) {
	hub := testHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		return n == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast("round_announced", map[string]string{"round_id": "r1"})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg, &decoded))
	require.Equal(t, "round_announced", decoded["event"])
}

func TestHubBroadcastOnNilHubIsNoop(t *testing.T) {
	var hub *Hub
	require.NotPanics(t, func() {
		hub.Broadcast("whatever", nil)
	})
}

func TestHubRemovesClientOnDisconnect(t *testing.T) {
	hub := testHub(t)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		return n == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		return n == 0
	}, time.Second, 10*time.Millisecond)
}
