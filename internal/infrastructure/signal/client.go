package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const defaultExchangeTimeout = 15 * time.Second

// Client is the Signaler used by production video sessions. It keeps one
// websocket per joined channel; closing it releases the SFU peer.
type Client struct {
	endpoint string
	dialer   *websocket.Dialer

	mu    sync.Mutex
	conns map[peerKey]*websocket.Conn

	logger *zap.SugaredLogger
}

var _ ports.Signaler = (*Client)(nil)

// NewClient accepts the signal server base URL (http, https, ws or wss).
func NewClient(baseURL string, logger *zap.SugaredLogger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid signal url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported signal url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/signal"

	return &Client{
		endpoint: u.String(),
		dialer:   websocket.DefaultDialer,
		conns:    make(map[peerKey]*websocket.Conn),
		logger:   logger,
	}, nil
}

func (c *Client) Exchange(ctx context.Context, channel, uid string, role domain.Role, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	q := url.Values{}
	q.Set("channel", channel)
	q.Set("uid", uid)
	q.Set("role", string(role))

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to dial signal server: %w", err)
	}

	answer, err := c.exchange(ctx, conn, offer)
	if err != nil {
		conn.Close()
		return webrtc.SessionDescription{}, err
	}

	key := peerKey{channel: channel, uid: uid}
	c.mu.Lock()
	if old, ok := c.conns[key]; ok {
		old.Close()
	}
	c.conns[key] = conn
	c.mu.Unlock()

	go c.keepAlive(key, conn)
	return answer, nil
}

func (c *Client) exchange(ctx context.Context, conn *websocket.Conn, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultExchangeTimeout)
	}
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)
	defer func() {
		conn.SetWriteDeadline(time.Time{})
		conn.SetReadDeadline(time.Time{})
	}()

	payload, err := json.Marshal(offer)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := conn.WriteJSON(Message{Type: TypeOffer, Payload: payload}); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("failed to send offer: %w", err)
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return webrtc.SessionDescription{}, fmt.Errorf("failed to read answer: %w", err)
		}
		switch msg.Type {
		case TypeAnswer:
			var answer webrtc.SessionDescription
			if err := json.Unmarshal(msg.Payload, &answer); err != nil {
				return webrtc.SessionDescription{}, fmt.Errorf("invalid answer payload: %w", err)
			}
			return answer, nil
		case TypeError:
			var e ErrorPayload
			json.Unmarshal(msg.Payload, &e)
			if strings.Contains(e.Message, domain.ErrChannelNotLive.Error()) {
				return webrtc.SessionDescription{}, domain.ErrChannelNotLive
			}
			return webrtc.SessionDescription{}, errors.New(e.Message)
		}
	}
}

// keepAlive reads until the socket closes so control frames are answered.
func (c *Client) keepAlive(key peerKey, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	c.mu.Lock()
	if c.conns[key] == conn {
		delete(c.conns, key)
	}
	c.mu.Unlock()
}

func (c *Client) Leave(ctx context.Context, channel, uid string) error {
	key := peerKey{channel: channel, uid: uid}
	c.mu.Lock()
	conn, ok := c.conns[key]
	delete(c.conns, key)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(Message{Type: TypeLeave}); err != nil {
		return fmt.Errorf("failed to send leave: %w", err)
	}
	return nil
}
