// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package websocket

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
	"github.com/tomtom215/insightstream/internal/validation"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// clientIDCounter orders clients for deterministic broadcast iteration.
var clientIDCounter atomic.Uint64

// Client is one authenticated connection. It sits between the socket and
// the hub: the hub routes events to Send, readPump handles client frames,
// writePump is the only writer on the socket.
type Client struct {
	id           uint64
	connectionID string
	userID       string
	isAdmin      bool
	connectedAt  time.Time

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
	closeCode int
	closeText string

	mu            sync.Mutex
	subscriptions map[models.RealtimeEventType]struct{}
	lastPing      time.Time
	limiter       *rateLimiter
	eventsSent    int64
	bytesSent     int64
	rateLimited   int64
}

func newClient(hub *Hub, conn *websocket.Conn, identity models.Identity) *Client {
	now := hub.now()
	return &Client{
		id:            clientIDCounter.Add(1),
		connectionID:  uuid.New().String(),
		userID:        identity.UserID,
		isAdmin:       identity.IsAdmin,
		connectedAt:   now,
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, hub.cfg.SendBuffer),
		done:          make(chan struct{}),
		subscriptions: make(map[models.RealtimeEventType]struct{}),
		lastPing:      now,
		limiter:       newRateLimiter(hub.cfg.MaxEventsPerSecond, hub.cfg.RateWindow, hub.now),
	}
}

// ID returns the client's ordering key.
func (c *Client) ID() uint64 {
	return c.id
}

// ConnectionID returns the connection's UUID.
func (c *Client) ConnectionID() string {
	return c.connectionID
}

// UserID returns the authenticated user.
func (c *Client) UserID() string {
	return c.userID
}

// IsAdmin reports whether the connection carries the admin role.
func (c *Client) IsAdmin() bool {
	return c.isAdmin
}

// LastPing returns the last liveness signal from the client.
func (c *Client) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

func (c *Client) touch() {
	now := c.hub.now()
	c.mu.Lock()
	c.lastPing = now
	c.mu.Unlock()
}

// Subscriptions returns the subscribed event types in canonical order.
func (c *Client) Subscriptions() []models.RealtimeEventType {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.RealtimeEventType, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		out = append(out, t)
	}
	order := make(map[models.RealtimeEventType]int)
	for i, t := range models.RealtimeEventTypes() {
		order[t] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// Subscribe adds known event types; unknown strings are skipped.
func (c *Client) Subscribe(eventTypes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range eventTypes {
		if t, ok := models.ParseRealtimeEventType(s); ok {
			c.subscriptions[t] = struct{}{}
		}
	}
}

// Unsubscribe removes event types; unknown strings are skipped.
func (c *Client) Unsubscribe(eventTypes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range eventTypes {
		if t, ok := models.ParseRealtimeEventType(s); ok {
			delete(c.subscriptions, t)
		}
	}
}

// wants applies the routing rule: admin-only events need an admin, non-admins
// only see their own or unowned events, and an empty subscription set means
// every type.
func (c *Client) wants(ev *models.RealtimeEvent) bool {
	if ev.AdminOnly && !c.isAdmin {
		return false
	}
	if !c.isAdmin && ev.UserID != "" && ev.UserID != c.userID {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscriptions) == 0 {
		return true
	}
	_, ok := c.subscriptions[ev.EventType]
	return ok
}

// Send encodes frame and queues it for the writer. Every frame except
// connection_established is subject to the rate limiter. A full send buffer
// closes the connection; the read loop then deregisters it.
func (c *Client) Send(messageType string, frame interface{}) bool {
	if messageType != MessageTypeConnectionEstablished {
		c.mu.Lock()
		allowed := c.limiter.allow()
		if !allowed {
			c.rateLimited++
		}
		c.mu.Unlock()
		if !allowed {
			metrics.WSRateLimited.Inc()
			logging.Warn().
				Str("connection_id", c.connectionID).
				Str("user_id", c.userID).
				Str("message_type", messageType).
				Msg("rate limit exceeded, dropping message")
			return false
		}
	}

	data, err := json.Marshal(frame)
	if err != nil {
		metrics.RecordWSError("encode")
		logging.Error().Err(err).Str("message_type", messageType).Msg("failed to encode websocket frame")
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
	default:
		c.hub.recordError("send_buffer_full")
		metrics.WSEvictions.WithLabelValues("slow_consumer").Inc()
		logging.Warn().Str("connection_id", c.connectionID).Msg("send buffer full, closing websocket client")
		c.Close(websocket.CloseTryAgainLater, closeReasonSlowClient)
		return false
	}

	c.recordSent(messageType, len(data))
	return true
}

func (c *Client) recordSent(messageType string, bytes int) {
	c.mu.Lock()
	c.eventsSent++
	c.bytesSent += int64(bytes)
	c.mu.Unlock()
	c.hub.recordSent(bytes)
	metrics.RecordWSMessage(messageType, bytes)
}

// Close asks the writer to send a close frame with code and shut the socket.
// Only the first call takes effect.
func (c *Client) Close(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		close(c.done)
	})
}

// readPump handles client frames until the socket fails. Cleanup always
// deregisters the client, whatever the exit path.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.Close(websocket.CloseNormalClosure, "")
		_ = c.conn.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.recordError("read")
				logging.Warn().Err(err).Str("connection_id", c.connectionID).Msg("unexpected websocket close error")
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		metrics.RecordWSError("invalid_frame")
		logging.Warn().Str("connection_id", c.connectionID).Msg("invalid JSON frame from client")
		return
	}
	if err := validation.ValidateStruct(&frame); err != nil {
		metrics.RecordWSError("invalid_frame")
		logging.Warn().
			Str("connection_id", c.connectionID).
			Str("frame_type", frame.Type).
			Err(err).
			Msg("ignoring client frame")
		return
	}
	frame.normalize()
	metrics.WSMessagesReceived.WithLabelValues(frame.Type).Inc()

	switch frame.Type {
	case MessageTypeSubscribe:
		c.Subscribe(frame.EventTypes)
		c.Send(MessageTypeSubscriptionConfirmed, SubscriptionConfirmedFrame{
			Type:          MessageTypeSubscriptionConfirmed,
			Subscriptions: c.Subscriptions(),
		})
	case MessageTypeUnsubscribe:
		c.Unsubscribe(frame.EventTypes)
	case MessageTypePing:
		c.touch()
		c.Send(MessageTypePong, PongFrame{
			Type:      MessageTypePong,
			Timestamp: c.hub.now().UTC().Format(time.RFC3339Nano),
		})
	case MessageTypeGetHistory:
		c.hub.replayHistory(c, time.Duration(frame.historyWindow()*float64(time.Hour)))
	}
}

// writePump is the only goroutine that writes to the socket.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.recordError("write")
				logging.Warn().Err(err).Str("connection_id", c.connectionID).Msg("failed to write websocket message")
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.done:
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeText)
			if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
				logging.Debug().Err(err).Str("connection_id", c.connectionID).Msg("failed to write close frame")
			}
			return
		}
	}
}

// ClientStats is a snapshot of one connection's counters.
type ClientStats struct {
	ConnectionID  string                     `json:"connection_id"`
	UserID        string                     `json:"user_id"`
	IsAdmin       bool                       `json:"is_admin"`
	ConnectedAt   time.Time                  `json:"connected_at"`
	LastPing      time.Time                  `json:"last_ping"`
	Subscriptions []models.RealtimeEventType `json:"subscriptions"`
	EventsSent    int64                      `json:"events_sent"`
	BytesSent     int64                      `json:"bytes_sent"`
	RateLimited   int64                      `json:"rate_limited"`
}

// Stats returns the connection's counters.
func (c *Client) Stats() ClientStats {
	subs := c.Subscriptions()
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientStats{
		ConnectionID:  c.connectionID,
		UserID:        c.userID,
		IsAdmin:       c.isAdmin,
		ConnectedAt:   c.connectedAt,
		LastPing:      c.lastPing,
		Subscriptions: subs,
		EventsSent:    c.eventsSent,
		BytesSent:     c.bytesSent,
		RateLimited:   c.rateLimited,
	}
}
