// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/insightstream/internal/cache"
	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

var (
	// ErrConnectionLimit is returned when a user already holds the maximum
	// number of live connections.
	ErrConnectionLimit = errors.New("connection limit exceeded")

	// ErrHubUnavailable is returned when the hub loop is not accepting work.
	ErrHubUnavailable = errors.New("websocket hub not running")

	// ErrMissingToken is returned for a handshake without credentials.
	ErrMissingToken = errors.New("missing auth token")
)

// TokenValidator resolves a handshake token to an identity.
type TokenValidator interface {
	ValidateToken(token string) (models.Identity, error)
}

// Config holds delivery-side tuning knobs.
type Config struct {
	MaxConnectionsPerUser int
	MaxEventsPerSecond    int
	RateWindow            time.Duration
	SendBuffer            int

	BroadcastBuffer int
	BatchSize       int
	BatchTimeout    time.Duration

	HistoryCapacity   int
	HistoryRetain     int
	HistoryChunkSize  int
	HistoryChunkDelay time.Duration

	ReapInterval    time.Duration
	StaleAfter      time.Duration
	HealthInterval  time.Duration
	MetricsInterval time.Duration
	ErrorWindow     time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnectionsPerUser: 5,
		MaxEventsPerSecond:    50,
		RateWindow:            time.Second,
		SendBuffer:            256,
		BroadcastBuffer:       1000,
		BatchSize:             10,
		BatchTimeout:          time.Second,
		HistoryCapacity:       1000,
		HistoryRetain:         800,
		HistoryChunkSize:      50,
		HistoryChunkDelay:     100 * time.Millisecond,
		ReapInterval:          30 * time.Second,
		StaleAfter:            60 * time.Second,
		HealthInterval:        30 * time.Second,
		MetricsInterval:       10 * time.Second,
		ErrorWindow:           5 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setDur := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	setInt(&c.MaxConnectionsPerUser, d.MaxConnectionsPerUser)
	setInt(&c.MaxEventsPerSecond, d.MaxEventsPerSecond)
	setDur(&c.RateWindow, d.RateWindow)
	setInt(&c.SendBuffer, d.SendBuffer)
	setInt(&c.BroadcastBuffer, d.BroadcastBuffer)
	setInt(&c.BatchSize, d.BatchSize)
	setDur(&c.BatchTimeout, d.BatchTimeout)
	setInt(&c.HistoryCapacity, d.HistoryCapacity)
	setInt(&c.HistoryRetain, d.HistoryRetain)
	setInt(&c.HistoryChunkSize, d.HistoryChunkSize)
	setDur(&c.HistoryChunkDelay, d.HistoryChunkDelay)
	setDur(&c.ReapInterval, d.ReapInterval)
	setDur(&c.StaleAfter, d.StaleAfter)
	setDur(&c.HealthInterval, d.HealthInterval)
	setDur(&c.MetricsInterval, d.MetricsInterval)
	setDur(&c.ErrorWindow, d.ErrorWindow)
	return c
}

type registration struct {
	client *Client
	reply  chan error
}

type reapRequest struct {
	reply chan int
}

// Hub owns every live connection. The clients map and per-user counts are
// mutated only by the hub goroutine (RunWithContext); other goroutines take
// snapshots under the read lock.
type Hub struct {
	cfg  Config
	auth TokenValidator
	now  func() time.Time

	clients   map[*Client]bool
	userConns map[string]int
	mu        sync.RWMutex

	register   chan registration
	unregister chan *Client
	reap       chan reapRequest
	batches    chan []*models.RealtimeEvent
	events     chan *models.RealtimeEvent

	history *History
	errors  *cache.SlidingWindowCounter

	running          atomic.Bool
	startedAt        time.Time
	eventsSent       atomic.Int64
	bytesSent        atomic.Int64
	totalConnections atomic.Int64

	healthMu sync.RWMutex
	health   HealthSnapshot
}

// NewHub creates a hub. Zero config fields take their defaults.
func NewHub(auth TokenValidator, cfg Config) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:        cfg,
		auth:       auth,
		now:        time.Now,
		clients:    make(map[*Client]bool),
		userConns:  make(map[string]int),
		register:   make(chan registration),
		unregister: make(chan *Client),
		reap:       make(chan reapRequest),
		batches:    make(chan []*models.RealtimeEvent, 16),
		events:     make(chan *models.RealtimeEvent, cfg.BroadcastBuffer),
		history:    NewHistory(cfg.HistoryCapacity, cfg.HistoryRetain),
		errors:     cache.NewSlidingWindowCounter(cfg.ErrorWindow, 30),
	}
	h.startedAt = h.now()
	h.health = HealthSnapshot{Status: HealthStatusStarting, ConnectionQuality: QualityGood}
	return h
}

// SetClock replaces the time source. Call before any connection is served.
func (h *Hub) SetClock(now func() time.Time) {
	h.now = now
	h.startedAt = now()
	h.errors.SetClock(now)
}

// Config returns the effective configuration.
func (h *Hub) Config() Config {
	return h.cfg
}

// History returns the replay buffer.
func (h *Hub) History() *History {
	return h.history
}

// RunWithContext runs the hub loop until ctx is canceled, then closes every
// client and returns ctx.Err().
//
// Lifecycle work (register, unregister, reap) is drained before batches so
// the connection set is settled before any delivery.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case reg := <-h.register:
			h.addClient(reg)
			continue
		case c := <-h.unregister:
			h.removeClient(c)
			continue
		case req := <-h.reap:
			req.reply <- h.reapStale()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case reg := <-h.register:
			h.addClient(reg)
		case c := <-h.unregister:
			h.removeClient(c)
		case req := <-h.reap:
			req.reply <- h.reapStale()
		case batch := <-h.batches:
			h.deliverBatch(batch)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	count := h.GetClientCount()
	h.closeAllClients()
	h.setStatus(HealthStatusStopped)

	logging.Info().
		Str("component", logging.ComponentHub).
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func (h *Hub) addClient(reg registration) {
	c := reg.client
	if h.userConns[c.userID] >= h.cfg.MaxConnectionsPerUser {
		reg.reply <- ErrConnectionLimit
		return
	}

	h.mu.Lock()
	h.clients[c] = true
	h.userConns[c.userID]++
	total := len(h.clients)
	h.mu.Unlock()

	h.totalConnections.Add(1)
	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("connection_id", c.connectionID).
		Str("user_id", c.userID).
		Bool("is_admin", c.isAdmin).
		Int("total_clients", total).
		Msg("websocket client connected")
	reg.reply <- nil
}

// removeClient drops c from the connection set. It reports false when c was
// already gone, so per-user counts are decremented exactly once.
func (h *Hub) removeClient(c *Client) bool {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, c)
	if h.userConns[c.userID]--; h.userConns[c.userID] <= 0 {
		delete(h.userConns, c.userID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("connection_id", c.connectionID).
		Str("user_id", c.userID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
	return true
}

// sortedClients snapshots the connection set in connection order.
func (h *Hub) sortedClients() []*Client {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// deliverBatch routes one broadcast batch to every connection. A connection
// with one relevant event gets an event frame, with several an event_batch.
func (h *Hub) deliverBatch(batch []*models.RealtimeEvent) {
	if len(batch) == 0 {
		return
	}
	metrics.RecordBroadcastBatch(len(batch))

	for _, c := range h.sortedClients() {
		relevant := make([]*models.RealtimeEvent, 0, len(batch))
		for _, ev := range batch {
			if c.wants(ev) {
				relevant = append(relevant, ev)
			}
		}
		switch len(relevant) {
		case 0:
		case 1:
			c.Send(MessageTypeEvent, EventFrame{Type: MessageTypeEvent, Event: relevant[0]})
		default:
			c.Send(MessageTypeEventBatch, EventBatchFrame{Type: MessageTypeEventBatch, Events: relevant})
		}
	}
}

// reapStale evicts connections whose last ping is older than StaleAfter.
func (h *Hub) reapStale() int {
	cutoff := h.now().Add(-h.cfg.StaleAfter)
	evicted := 0
	for _, c := range h.sortedClients() {
		if !c.LastPing().Before(cutoff) {
			continue
		}
		if h.removeClient(c) {
			c.Close(websocket.CloseNormalClosure, closeReasonStale)
			metrics.WSEvictions.WithLabelValues("stale").Inc()
			logging.Info().
				Str("connection_id", c.connectionID).
				Str("user_id", c.userID).
				Time("last_ping", c.LastPing()).
				Msg("evicted stale websocket connection")
			evicted++
		}
	}
	return evicted
}

func (h *Hub) closeAllClients() {
	clients := h.sortedClients()

	h.mu.Lock()
	h.clients = make(map[*Client]bool)
	h.userConns = make(map[string]int)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close(websocket.CloseGoingAway, closeReasonShutdown)
	}
	metrics.WSConnections.Set(0)
}

// Broadcast queues ev for batched delivery and records it in the history.
// It never blocks; when the queue is full the event is dropped and false is
// returned.
func (h *Hub) Broadcast(ev *models.RealtimeEvent) bool {
	if ev == nil {
		return false
	}
	select {
	case h.events <- ev:
		h.history.Append(ev)
		return true
	default:
		metrics.BroadcastDropped.Inc()
		logging.Warn().
			Str("event_type", string(ev.EventType)).
			Str("event_id", ev.EventID).
			Msg("broadcast queue full, dropping event")
		return false
	}
}

// Reap asks the hub loop to evict stale connections and returns how many
// were removed.
func (h *Hub) Reap(ctx context.Context) (int, error) {
	req := reapRequest{reply: make(chan int, 1)}
	select {
	case h.reap <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-req.reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ServeConn authenticates an upgraded connection and runs it until it
// closes. Refused handshakes are closed with 4001 or 4002.
func (h *Hub) ServeConn(conn *websocket.Conn, token string) {
	identity, err := h.authenticate(token)
	if err != nil {
		logging.Warn().Err(err).Str("token", logging.SanitizeToken(token)).Msg("websocket authentication failed")
		h.reject(conn, CloseUnauthenticated, closeReasonAuth, "unauthenticated")
		return
	}

	c := newClient(h, conn, identity)

	// The welcome frame is queued before registration so it precedes any
	// broadcast on this connection.
	welcome, err := json.Marshal(h.welcomeFrame(c))
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode welcome frame")
		h.reject(conn, websocket.CloseInternalServerErr, closeReasonUnavailable, "internal")
		return
	}
	c.send <- welcome

	if err := h.registerClient(c); err != nil {
		if errors.Is(err, ErrConnectionLimit) {
			logging.Warn().Str("user_id", c.userID).Int("limit", h.cfg.MaxConnectionsPerUser).Msg("websocket connection limit exceeded")
			h.reject(conn, CloseConnectionLimit, closeReasonLimit, "connection_limit")
			return
		}
		logging.Warn().Err(err).Msg("websocket hub unavailable")
		h.reject(conn, websocket.CloseTryAgainLater, closeReasonUnavailable, "unavailable")
		return
	}
	c.recordSent(MessageTypeConnectionEstablished, len(welcome))

	go c.writePump()
	c.readPump()
}

func (h *Hub) authenticate(token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrMissingToken
	}
	if h.auth == nil {
		return models.Identity{}, errors.New("no token validator configured")
	}
	return h.auth.ValidateToken(token)
}

func (h *Hub) reject(conn *websocket.Conn, code int, reason, metricReason string) {
	metrics.WSConnectionsRejected.WithLabelValues(metricReason).Inc()
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		logging.Debug().Err(err).Msg("failed to write close frame")
	}
	_ = conn.Close()
}

func (h *Hub) registerClient(c *Client) error {
	reg := registration{client: c, reply: make(chan error, 1)}
	timer := time.NewTimer(writeWait)
	defer timer.Stop()

	select {
	case h.register <- reg:
	case <-timer.C:
		return ErrHubUnavailable
	}
	return <-reg.reply
}

func (h *Hub) unregisterClient(c *Client) {
	if !h.running.Load() {
		return
	}
	timer := time.NewTimer(writeWait)
	defer timer.Stop()

	select {
	case h.unregister <- c:
	case <-timer.C:
		logging.Warn().Str("connection_id", c.connectionID).Msg("timed out unregistering websocket client")
	}
}

func (h *Hub) welcomeFrame(c *Client) ConnectionEstablishedFrame {
	return ConnectionEstablishedFrame{
		Type:         MessageTypeConnectionEstablished,
		ConnectionID: c.connectionID,
		Capabilities: Capabilities{
			EventTypes:       models.RealtimeEventTypes(),
			MaxRate:          h.cfg.MaxEventsPerSecond,
			BatchSupport:     true,
			FilteringSupport: true,
		},
		Health: h.HealthSnapshot(),
	}
}

// replayHistory streams matching history to c in chunks. It runs on the
// requesting connection's read goroutine.
func (h *Hub) replayHistory(c *Client, window time.Duration) int {
	events := h.history.Since(h.now().Add(-window), c.wants)
	total := len(events)
	size := h.cfg.HistoryChunkSize
	chunks := (total + size - 1) / size

	for i := 0; i < total; i += size {
		end := min(i+size, total)
		c.Send(MessageTypeHistoryChunk, HistoryChunkFrame{
			Type:   MessageTypeHistoryChunk,
			Events: events[i:end],
			ChunkInfo: ChunkInfo{
				ChunkNumber: i/size + 1,
				TotalChunks: chunks,
				TotalEvents: total,
			},
		})
		if end == total {
			break
		}
		select {
		case <-time.After(h.cfg.HistoryChunkDelay):
		case <-c.done:
			return total
		}
	}
	return total
}

// recordError counts a connection-level error toward connection quality.
func (h *Hub) recordError(kind string) {
	h.errors.IncrementOne()
	metrics.RecordWSError(kind)
}

func (h *Hub) recordSent(bytes int) {
	h.eventsSent.Add(1)
	h.bytesSent.Add(int64(bytes))
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AdminCount returns the number of connected admin clients.
func (h *Hub) AdminCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.isAdmin {
			n++
		}
	}
	return n
}

// ServerStats summarizes the delivery side for the status endpoint.
type ServerStats struct {
	ActiveConnections int            `json:"active_connections"`
	UniqueUsers       int            `json:"unique_users"`
	AdminConnections  int            `json:"admin_connections"`
	TotalConnections  int64          `json:"total_connections"`
	EventsSent        int64          `json:"events_sent"`
	BytesSent         int64          `json:"bytes_sent"`
	HistorySize       int            `json:"history_size"`
	QueueSize         int            `json:"queue_size"`
	UptimeSeconds     float64        `json:"uptime_seconds"`
	Health            HealthSnapshot `json:"server_health"`
}

// Stats returns a point-in-time snapshot of hub counters.
func (h *Hub) Stats() ServerStats {
	h.mu.RLock()
	active := len(h.clients)
	users := len(h.userConns)
	admins := 0
	for c := range h.clients {
		if c.isAdmin {
			admins++
		}
	}
	h.mu.RUnlock()

	return ServerStats{
		ActiveConnections: active,
		UniqueUsers:       users,
		AdminConnections:  admins,
		TotalConnections:  h.totalConnections.Load(),
		EventsSent:        h.eventsSent.Load(),
		BytesSent:         h.bytesSent.Load(),
		HistorySize:       h.history.Len(),
		QueueSize:         len(h.events),
		UptimeSeconds:     h.now().Sub(h.startedAt).Seconds(),
		Health:            h.HealthSnapshot(),
	}
}
