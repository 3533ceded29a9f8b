package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/basketbot/internal/domain"
	"github.com/alanyoungcy/basketbot/internal/strategy"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds an incoming frame; tick frames carry a full
	// trading-state snapshot.
	maxMessageSize = 1 << 20

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// defaultChannels are the bus channels the hub relays. New clients are
// subscribed to all of them.
var defaultChannels = []string{strategy.TickChannel("*")}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TickRunner runs one trading-state snapshot for a session.
type TickRunner interface {
	HandleTick(ctx context.Context, session string, state domain.TradingState) (domain.TickResult, error)
}

// inbound is any JSON frame a client sends.
type inbound struct {
	Action    string               `json:"action"` // "subscribe", "unsubscribe" or "tick"
	Channels  []string             `json:"channels"`
	Session   string               `json:"session"`
	RequestID string               `json:"request_id"`
	State     *domain.TradingState `json:"state"`
}

// envelope is every frame the hub sends.
type envelope struct {
	Type      string `json:"type"`
	Channel   string `json:"channel,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Session   string `json:"session,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	subs   map[string]bool
	closed bool
}

// Config captures metadata reported to clients when they connect.
type Config struct {
	Profile   string
	StartedAt time.Time
}

// Hub fans bus messages out to websocket clients and accepts ticks over the
// same connections.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}

	bus    domain.SignalBus
	runner TickRunner

	mu        sync.RWMutex
	logger    *slog.Logger
	profile   string
	startedAt time.Time
}

type broadcastMsg struct {
	channel string
	data    []byte
}

// NewHub creates a Hub. bus may be nil, in which case nothing is relayed and
// the hub only serves tick requests.
func NewHub(bus domain.SignalBus, runner TickRunner, logger *slog.Logger, cfg Config) *Hub {
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		runner:     runner,
		logger:     logger.With(slog.String("component", "ws_hub")),
		profile:    cfg.Profile,
		startedAt:  startedAt,
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		for _, ch := range defaultChannels {
			go h.subscribeToChannel(ctx, ch)
		}
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.isSubscribed(msg.channel) && !c.enqueue(msg.data) {
					h.logger.Warn("dropping message for slow client", slog.String("channel", msg.channel))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// subscribeToChannel relays one bus subscription into the broadcast loop.
// Each message is routed by the session it names, so a client subscribed to
// a single session's channel receives only that session's ticks.
func (h *Hub) subscribeToChannel(ctx context.Context, pattern string) {
	msgCh, err := h.bus.Subscribe(ctx, pattern)
	if err != nil {
		h.logger.Error("subscribe failed",
			slog.String("channel", pattern),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("subscribed to channel", slog.String("channel", pattern))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("channel subscription closed", slog.String("channel", pattern))
				return
			}
			channel := routeChannel(pattern, data)
			frame, err := json.Marshal(envelope{Type: "tick", Channel: channel, Payload: json.RawMessage(data)})
			if err != nil {
				continue
			}
			select {
			case h.broadcast <- broadcastMsg{channel: channel, data: frame}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// routeChannel returns the concrete tick channel for a published record,
// falling back to the subscription pattern when the payload names no session.
func routeChannel(pattern string, data []byte) string {
	var probe struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Session == "" {
		return pattern
	}
	return strategy.TickChannel(probe.Session)
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}
	for _, ch := range defaultChannels {
		c.subs[ch] = true
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.sendStatus()

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close error", slog.String("error", err.Error()))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(envelope{Type: "error", Error: fmt.Errorf("%w: %v", domain.ErrInvalidSnapshot, err).Error()})
			continue
		}
		switch msg.Action {
		case "subscribe", "unsubscribe":
			c.handleSubscription(msg)
		case "tick":
			c.handleTick(msg)
		default:
			c.reply(envelope{Type: "error", RequestID: msg.RequestID, Error: "unknown action " + msg.Action})
		}
	}
}

func (c *client) handleSubscription(msg inbound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range msg.Channels {
		if msg.Action == "subscribe" {
			c.subs[ch] = true
		} else {
			delete(c.subs, ch)
		}
	}
}

// handleTick runs the tick inline, so a connection processes its ticks in
// the order it sent them.
func (c *client) handleTick(msg inbound) {
	if msg.State == nil {
		c.reply(envelope{Type: "error", RequestID: msg.RequestID, Error: "tick requires a state"})
		return
	}
	if c.hub.runner == nil {
		c.reply(envelope{Type: "error", RequestID: msg.RequestID, Error: "ticks are not accepted on this hub"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	res, err := c.hub.runner.HandleTick(ctx, msg.Session, *msg.State)
	if err != nil {
		text := "failed to process tick"
		if errors.Is(err, domain.ErrSessionBusy) {
			text = "session is processing another tick"
		} else {
			c.hub.logger.Error("tick failed",
				slog.String("session", msg.Session),
				slog.String("error", err.Error()),
			)
		}
		c.reply(envelope{Type: "error", RequestID: msg.RequestID, Session: msg.Session, Error: text})
		return
	}
	c.reply(envelope{Type: "tick_result", RequestID: msg.RequestID, Session: msg.Session, Payload: res})
}

// sendStatus greets a new connection so clients can mark it healthy before
// any tick flows.
func (c *client) sendStatus() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	c.reply(envelope{
		Type: "hub_status",
		Payload: map[string]any{
			"profile":        c.hub.profile,
			"channels":       defaultChannels,
			"uptime_seconds": uptime,
		},
	})
}

func (c *client) reply(e envelope) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// enqueue queues data for the write pump. It reports false when the client
// is gone or its buffer is full.
func (c *client) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// isSubscribed reports whether channel matches one of the client's
// subscriptions; a trailing "*" matches any suffix.
func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
