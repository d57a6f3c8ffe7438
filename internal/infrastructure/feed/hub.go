package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/internal/infrastructure/distributed"
	"locallive/internal/infrastructure/middleware"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	FrameBacklog = "backlog"
	FrameEvent   = "event"
	FrameEnded   = "ended"
	FrameError   = "error"

	ActionMessage = "message"
	ActionLike    = "like"
	ActionGift    = "gift"
)

// Frame is sent from the server to feed subscribers.
type Frame struct {
	Type   string             `json:"type"`
	Event  *domain.ChatEvent  `json:"event,omitempty"`
	Events []domain.ChatEvent `json:"events,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Action is sent by a signed-in viewer to interact with the stream.
type Action struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Amount float64 `json:"amount,omitempty"`
}

// Actions is the slice of the feed service the hub drives.
type Actions interface {
	SendMessage(ctx context.Context, channel string, actor domain.Actor, text string) (domain.ChatEvent, error)
	SendLike(ctx context.Context, channel string, actor domain.Actor) (domain.ChatEvent, error)
	SendGift(ctx context.Context, channel string, actor domain.Actor, amount float64) (domain.ChatEvent, error)
	Events(ctx context.Context, channel string) ([]domain.ChatEvent, error)
}

// Bus relays hub traffic to other instances.
type Bus interface {
	PublishChat(ctx context.Context, event domain.ChatEvent) error
	PublishStreamStarted(ctx context.Context, stream *domain.LiveStream) error
	PublishStreamEnded(ctx context.Context, channel string, streamID domain.StreamID) error
}

type Metrics interface {
	WebSocketConnected()
	WebSocketDisconnected()
	FeedMessageDropped()
}

type nopMetrics struct{}

func (nopMetrics) WebSocketConnected()    {}
func (nopMetrics) WebSocketDisconnected() {}
func (nopMetrics) FeedMessageDropped()    {}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

var (
	_ ports.FeedPublisher  = (*Hub)(nil)
	_ ports.StreamNotifier = (*Hub)(nil)
)

// Hub keeps the websocket subscribers of every channel's chat feed on this
// instance and pushes appended events to them.
type Hub struct {
	actions Actions
	bus     Bus
	limiter *middleware.WebSocketLimiter
	metrics Metrics
	logger  *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}

	sendBuffer   int
	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
}

type HubOption func(*Hub)

func WithBus(b Bus) HubOption {
	return func(h *Hub) { h.bus = b }
}

func WithLimiter(l *middleware.WebSocketLimiter) HubOption {
	return func(h *Hub) { h.limiter = l }
}

func WithMetrics(m Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithKeepAlive sets the ping period and how long a silent client survives.
func WithKeepAlive(ping, pong time.Duration) HubOption {
	return func(h *Hub) {
		if ping > 0 {
			h.pingInterval = ping
		}
		if pong > 0 {
			h.pongTimeout = pong
		}
	}
}

func NewHub(actions Actions, logger *zap.SugaredLogger, opts ...HubOption) *Hub {
	h := &Hub{
		actions:      actions,
		metrics:      nopMetrics{},
		logger:       logger,
		clients:      make(map[string]map[*client]struct{}),
		sendBuffer:   64,
		pingInterval: 30 * time.Second,
		pongTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// PublishEvent delivers an appended event to local subscribers and relays it
// to other instances.
func (h *Hub) PublishEvent(ctx context.Context, event domain.ChatEvent) error {
	h.broadcast(event.Channel, Frame{Type: FrameEvent, Event: &event})
	if h.bus == nil {
		return nil
	}
	if err := h.bus.PublishChat(ctx, event); err != nil {
		return fmt.Errorf("failed to relay chat event: %w", err)
	}
	return nil
}

func (h *Hub) StreamStarted(ctx context.Context, stream *domain.LiveStream) error {
	if h.bus == nil {
		return nil
	}
	return h.bus.PublishStreamStarted(ctx, stream)
}

// StreamEnded tells local subscribers the broadcast is over, disconnects
// them and relays the end to other instances.
func (h *Hub) StreamEnded(ctx context.Context, stream *domain.LiveStream) error {
	h.closeChannel(stream.Channel)
	if h.bus == nil {
		return nil
	}
	return h.bus.PublishStreamEnded(ctx, stream.Channel, stream.ID)
}

// HandleBusEvent applies an event relayed from another instance.
func (h *Hub) HandleBusEvent(e *distributed.Event) error {
	switch e.Type {
	case distributed.EventChatAppended:
		event, err := e.ChatEvent()
		if err != nil {
			return err
		}
		h.broadcast(e.Channel, Frame{Type: FrameEvent, Event: &event})
	case distributed.EventStreamEnded:
		h.closeChannel(e.Channel)
	}
	return nil
}

// ClientCount reports subscribers on channel, or on all channels when empty.
func (h *Hub) ClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if channel != "" {
		return len(h.clients[channel])
	}
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Serve upgrades the request and streams channel's feed. A nil actor
// subscribes read-only.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, channel string, actor *domain.Actor) {
	release, ok := h.limiter.Acquire()
	if !ok {
		http.Error(w, "too many feed connections", http.StatusServiceUnavailable)
		return
	}
	defer release()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "channel", channel, "error", err)
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		channel: channel,
		actor:   actor,
		send:    make(chan Frame, h.sendBuffer),
		done:    make(chan struct{}),
	}

	h.register(c)
	defer h.unregister(c)

	backlog, err := h.actions.Events(r.Context(), channel)
	if err != nil {
		h.logger.Warnw("failed to load feed backlog", "channel", channel, "error", err)
	}
	if !c.prime(backlog) {
		h.dropSlow(c, FrameBacklog)
	}

	go c.writePump()
	c.readPump(r.Context())
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.channel]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.channel] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.WebSocketConnected()
	h.logger.Debugw("feed subscriber connected",
		"channel", c.channel,
		"read_only", c.actor == nil,
	)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	set := h.clients[c.channel]
	_, ok := set[c]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.channel)
		}
	}
	h.mu.Unlock()

	c.stop()
	if ok {
		h.metrics.WebSocketDisconnected()
		h.logger.Debugw("feed subscriber disconnected", "channel", c.channel)
	}
}

func (h *Hub) subscribers(channel string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients[channel]))
	for c := range h.clients[channel] {
		out = append(out, c)
	}
	return out
}

// broadcast hands f to every subscriber of channel. A subscriber whose queue
// is full is disconnected so it never sees a gap in the log.
func (h *Hub) broadcast(channel string, f Frame) {
	for _, c := range h.subscribers(channel) {
		if !c.deliver(f) {
			h.dropSlow(c, f.Type)
		}
	}
}

func (h *Hub) dropSlow(c *client, frame string) {
	c.stop()
	h.metrics.FeedMessageDropped()
	h.logger.Debugw("feed subscriber too slow, disconnecting",
		"channel", c.channel,
		"frame", frame,
	)
}

func (h *Hub) closeChannel(channel string) {
	subs := h.subscribers(channel)
	for _, c := range subs {
		c.deliver(Frame{Type: FrameEnded})
		c.stop()
	}
	if len(subs) > 0 {
		h.logger.Infow("closed feed subscribers for ended stream",
			"channel", channel,
			"subscribers", len(subs),
		)
	}
}

func (h *Hub) apply(ctx context.Context, c *client, a Action) error {
	if c.actor == nil {
		return domain.ErrUnauthenticated
	}
	var err error
	switch a.Type {
	case ActionMessage:
		_, err = h.actions.SendMessage(ctx, c.channel, *c.actor, a.Text)
	case ActionLike:
		_, err = h.actions.SendLike(ctx, c.channel, *c.actor)
	case ActionGift:
		_, err = h.actions.SendGift(ctx, c.channel, *c.actor, a.Amount)
	default:
		err = fmt.Errorf("unknown action type %q", a.Type)
	}
	return err
}

type client struct {
	hub     *Hub
	conn    *websocket.Conn
	channel string
	actor   *domain.Actor
	send    chan Frame

	// Live frames wait in pending until the backlog is queued.
	mu      sync.Mutex
	primed  bool
	lastSeq int64
	pending []Frame

	stopOnce sync.Once
	done     chan struct{}
}

// prime queues the backlog followed by the live frames that arrived while it
// was loading, minus those the backlog already holds.
func (c *client) prime(backlog []domain.ChatEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(backlog); n > 0 {
		c.lastSeq = backlog[n-1].Seq
	}
	pending := c.pending
	c.pending = nil
	c.primed = true

	if !c.push(Frame{Type: FrameBacklog, Events: backlog}) {
		return false
	}
	for _, f := range pending {
		if c.seen(f) {
			continue
		}
		if !c.push(f) {
			return false
		}
	}
	return true
}

// deliver queues a live frame. It reports false when the subscriber cannot
// keep up.
func (c *client) deliver(f Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.primed {
		if len(c.pending) >= cap(c.send) {
			return false
		}
		c.pending = append(c.pending, f)
		return true
	}
	if c.seen(f) {
		return true
	}
	return c.enqueue(f)
}

func (c *client) seen(f Frame) bool {
	return f.Event != nil && f.Event.Seq > 0 && f.Event.Seq <= c.lastSeq
}

func (c *client) enqueue(f Frame) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	return c.push(f)
}

func (c *client) push(f Frame) bool {
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *client) readPump(ctx context.Context) {
	h := c.hub
	if limit := h.limiter.MaxMessageSize(); limit > 0 {
		c.conn.SetReadLimit(limit)
	}
	limiter := h.limiter.MessageLimiter()

	c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debugw("feed read failed", "channel", c.channel, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))

		if !limiter.Allow() {
			c.enqueue(Frame{Type: FrameError, Error: "rate limit exceeded"})
			continue
		}
		var a Action
		if err := json.Unmarshal(data, &a); err != nil {
			c.enqueue(Frame{Type: FrameError, Error: "invalid action"})
			continue
		}
		if err := h.apply(ctx, c, a); err != nil {
			c.enqueue(Frame{Type: FrameError, Error: err.Error()})
		}
	}
}

// writePump owns all writes to the connection and closes it on exit, which
// unblocks readPump.
func (c *client) writePump() {
	h := c.hub
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.drain()
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes frames queued before stop, such as the final ended frame.
func (c *client) drain() {
	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(f Frame) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
	return c.conn.WriteJSON(f)
}
