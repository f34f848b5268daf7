package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/savegress/amldesk/internal/dashboard"
	"github.com/savegress/amldesk/pkg/models"
)

// MessageType constants for WebSocket messages
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSubscribed  = "subscribed"
	TypeDashboard   = "dashboard"
	TypeCaseUpdate  = "case_update"
	TypeError       = "error"
	TypePing        = "ping"
	TypePong        = "pong"
)

// Channels clients can subscribe to
const (
	ChannelDashboard = "dashboard"
	ChannelCases     = "cases"
)

var validChannels = map[string]bool{
	ChannelDashboard: true,
	ChannelCases:     true,
}

// Message represents a WebSocket message
type Message struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Error     string          `json:"error,omitempty"`
}

// CaseUpdate is pushed on the cases channel after each recorded action
type CaseUpdate struct {
	ClientID string            `json:"clientId"`
	Status   models.CaseStatus `json:"status"`
	Comments int               `json:"comments"`
	Author   string            `json:"author"`
}

type wsClient struct {
	id            string
	conn          *websocket.Conn
	hub           *Hub
	send          chan []byte
	subscriptions map[string]bool
	mu            sync.RWMutex
}

type broadcastMessage struct {
	channel string
	data    []byte
}

// Hub fans dashboard snapshots and case updates out to WebSocket clients
type Hub struct {
	clients    map[*wsClient]bool
	channels   map[string]map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan broadcastMessage
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	mu       sync.RWMutex
	lastDash []byte

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new Hub instance. allowedOrigins of nil or "*" accepts
// every origin.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients:    make(map[*wsClient]bool),
		channels:   make(map[string]map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan broadcastMessage, 256),
		logger:     logger.Named("hub"),
		stopCh:     make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.stopCh:
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.broadcastToChannel(msg)
		}
	}
}

// Stop closes every connection and ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.mu.Lock()
		defer h.mu.Unlock()
		for client := range h.clients {
			close(client.send)
			client.conn.Close()
			delete(h.clients, client)
		}
		h.channels = make(map[string]map[*wsClient]bool)
	})
}

func (h *Hub) removeClient(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	client.mu.RLock()
	defer client.mu.RUnlock()
	for channel := range client.subscriptions {
		if clients, ok := h.channels[channel]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.channels, channel)
			}
		}
	}
}

func (h *Hub) broadcastToChannel(msg broadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.channels[msg.channel] {
		select {
		case client.send <- msg.data:
		default:
			h.logger.Debug("client buffer full, dropping message",
				zap.String("client", client.id), zap.String("channel", msg.channel))
		}
	}
}

func (h *Hub) subscribe(client *wsClient, channel string) {
	h.mu.Lock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*wsClient]bool)
	}
	h.channels[channel][client] = true
	last := h.lastDash
	h.mu.Unlock()

	client.mu.Lock()
	client.subscriptions[channel] = true
	client.mu.Unlock()

	client.reply(&Message{Type: TypeSubscribed, Channel: channel})
	if channel == ChannelDashboard && last != nil {
		client.enqueue(last)
	}
}

func (h *Hub) unsubscribe(client *wsClient, channel string) {
	h.mu.Lock()
	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
	h.mu.Unlock()

	client.mu.Lock()
	delete(client.subscriptions, channel)
	client.mu.Unlock()
}

func (h *Hub) publish(channel, msgType string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal broadcast payload", zap.String("type", msgType), zap.Error(err))
		return nil
	}
	frame, err := json.Marshal(&Message{
		Type:      msgType,
		Channel:   channel,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("marshal broadcast message", zap.String("type", msgType), zap.Error(err))
		return nil
	}

	select {
	case h.broadcast <- broadcastMessage{channel: channel, data: frame}:
	case <-h.stopCh:
	default:
		h.logger.Warn("broadcast queue full, dropping message", zap.String("type", msgType))
	}
	return frame
}

// PublishDashboard pushes a snapshot to dashboard subscribers and keeps it
// for clients that subscribe later.
func (h *Hub) PublishDashboard(s *dashboard.Snapshot) {
	if s == nil {
		return
	}
	if frame := h.publish(ChannelDashboard, TypeDashboard, s); frame != nil {
		h.mu.Lock()
		h.lastDash = frame
		h.mu.Unlock()
	}
}

// PublishCase pushes a case update after an analyst action
func (h *Hub) PublishCase(c *models.Client, author string) {
	if c == nil {
		return
	}
	h.publish(ChannelCases, TypeCaseUpdate, CaseUpdate{
		ClientID: c.ID,
		Status:   c.Status,
		Comments: len(c.Comments),
		Author:   author,
	})
}

// Stats returns hub statistics
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	channelStats := make(map[string]int)
	for channel, clients := range h.channels {
		channelStats[channel] = len(clients)
	}
	return map[string]interface{}{
		"total_clients":   len(h.clients),
		"channel_clients": channelStats,
	}
}

// ServeWS upgrades the request and runs the client pumps until the
// connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		id:            uuid.NewString(),
		conn:          conn,
		hub:           h,
		send:          make(chan []byte, 64),
		subscriptions: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.stopCh:
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go client.writePump(ctx)
	client.readPump(cancel)
}

func (c *wsClient) enqueue(frame []byte) {
	defer func() {
		// send may already be closed by Stop
		_ = recover()
	}()
	select {
	case c.send <- frame:
	default:
	}
}

func (c *wsClient) reply(msg *Message) {
	msg.Timestamp = time.Now().UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *wsClient) readPump(cancel context.CancelFunc) {
	defer func() {
		cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopCh:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var msg struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(&Message{Type: TypeError, Error: "invalid message format"})
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		if !validChannels[msg.Channel] {
			c.reply(&Message{Type: TypeError, Error: "unknown channel"})
			return
		}
		c.hub.subscribe(c, msg.Channel)
	case TypeUnsubscribe:
		c.hub.unsubscribe(c, msg.Channel)
	case TypePing:
		c.reply(&Message{Type: TypePong})
	default:
		c.reply(&Message{Type: TypeError, Error: "unknown message type"})
	}
}
