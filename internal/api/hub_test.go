package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savegress/amldesk/internal/dashboard"
	"github.com/savegress/amldesk/pkg/models"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub([]string{"*"}, nil)
	go hub.Run()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channel string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeSubscribe, "channel": channel}))
	msg := readMessage(t, conn)
	require.Equal(t, TypeSubscribed, msg.Type)
	require.Equal(t, channel, msg.Channel)
}

func TestHub_PublishDashboard(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	subscribe(t, conn, ChannelDashboard)

	hub.PublishDashboard(&dashboard.Snapshot{Metrics: dashboard.Metrics{Total: 7, High: 2}})

	msg := readMessage(t, conn)
	assert.Equal(t, TypeDashboard, msg.Type)

	var snap dashboard.Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.Equal(t, 7, snap.Total)
	assert.Equal(t, 2, snap.High)
}

func TestHub_LateSubscriberGetsLastSnapshot(t *testing.T) {
	hub, url := startHub(t)
	hub.PublishDashboard(&dashboard.Snapshot{Metrics: dashboard.Metrics{Total: 3}})

	conn := dial(t, url)
	subscribe(t, conn, ChannelDashboard)

	msg := readMessage(t, conn)
	assert.Equal(t, TypeDashboard, msg.Type)
}

func TestHub_CaseUpdatesOnlyReachSubscribers(t *testing.T) {
	hub, url := startHub(t)

	cases := dial(t, url)
	subscribe(t, cases, ChannelCases)
	dash := dial(t, url)
	subscribe(t, dash, ChannelDashboard)

	hub.PublishCase(&models.Client{
		ID:       "C1",
		Status:   models.CaseStatusBlock,
		Comments: []models.Comment{{Text: "Blocage"}},
	}, "ana@example.com")

	msg := readMessage(t, cases)
	require.Equal(t, TypeCaseUpdate, msg.Type)
	var update CaseUpdate
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	assert.Equal(t, CaseUpdate{ClientID: "C1", Status: models.CaseStatusBlock, Comments: 1, Author: "ana@example.com"}, update)

	// the dashboard subscriber only sees its own traffic
	require.NoError(t, dash.WriteJSON(map[string]string{"type": TypePing}))
	assert.Equal(t, TypePong, readMessage(t, dash).Type)
}

func TestHub_RejectsUnknownInput(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeSubscribe, "channel": "blocks"}))
	msg := readMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "unknown channel", msg.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, TypeError, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "shout"}))
	assert.Equal(t, "unknown message type", readMessage(t, conn).Error)
}

func TestHub_Stats(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	subscribe(t, conn, ChannelCases)

	stats := hub.Stats()
	assert.Equal(t, 1, stats["total_clients"])
	assert.Equal(t, map[string]int{ChannelCases: 1}, stats["channel_clients"])
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://desk.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req), "no origin header")

	req.Header.Set("Origin", "https://desk.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
	assert.True(t, originChecker([]string{"*"})(req))
}
