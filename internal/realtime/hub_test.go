package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/harborcare/notify/pkg/logger"
)

func dialHub(t *testing.T, hub *Hub, userID string, streams []string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, streams, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var message Message
	require.NoError(t, conn.ReadJSON(&message))
	return message
}

func TestBroadcastToUser(t *testing.T) {
	require.NoError(t, logger.Init("error"))
	hub := NewHub()

	conn := dialHub(t, hub, "nurse-1", []string{StreamNotifications})
	other := dialHub(t, hub, "nurse-2", []string{StreamNotifications})

	// give the server goroutines a moment to register
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscriptions[StreamNotifications]) == 2
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastToUser(StreamNotifications, "nurse-1", Message{
		Event: "notification.created",
		Data:  map[string]any{"id": "n-1"},
	})

	message := readMessage(t, conn)
	require.Equal(t, StreamNotifications, message.Stream)
	require.Equal(t, "notification.created", message.Event)

	// nurse-2 sees nothing
	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var drained Message
	require.Error(t, other.ReadJSON(&drained))
}

func TestPublishFansOutToStream(t *testing.T) {
	require.NoError(t, logger.Init("error"))
	hub := NewHub()

	first := dialHub(t, hub, "nurse-1", []string{StreamAlarms})
	second := dialHub(t, hub, "nurse-2", []string{StreamAlarms})

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscriptions[StreamAlarms]) == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), StreamAlarms, "notification.alarm", map[string]any{"id": "a-1"}))

	for _, conn := range []*websocket.Conn{first, second} {
		message := readMessage(t, conn)
		require.Equal(t, StreamAlarms, message.Stream)
		require.Equal(t, "notification.alarm", message.Event)
	}
}

func TestSubscribeControlMessage(t *testing.T) {
	require.NoError(t, logger.Init("error"))
	hub := NewHub()

	conn := dialHub(t, hub, "nurse-1", []string{StreamNotifications})

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":  "subscribe",
		"streams": []string{StreamTasks},
	}))

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscriptions[StreamTasks]["nurse-1"]) == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastStream(StreamTasks, Message{Event: "notification.task_created"})

	message := readMessage(t, conn)
	require.Equal(t, StreamTasks, message.Stream)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":  "unsubscribe",
		"streams": []string{StreamTasks},
	}))

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscriptions[StreamTasks]) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestPingControlMessage(t *testing.T) {
	require.NoError(t, logger.Init("error"))
	hub := NewHub()

	conn := dialHub(t, hub, "nurse-1", []string{StreamNotifications})

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))

	message := readMessage(t, conn)
	require.Equal(t, "pong", message.Event)
}
