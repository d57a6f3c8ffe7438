package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"locallive/internal/core/domain"
	apperrors "locallive/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Answerer negotiates media sessions; the SFU implements it.
type Answerer interface {
	Answer(ctx context.Context, channel, uid string, role domain.Role, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	Remove(channel, uid string)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type peerKey struct {
	channel string
	uid     string
}

// Server speaks the signaling protocol over websockets and plain HTTP.
type Server struct {
	answerer Answerer

	connections map[peerKey]*websocket.Conn
	mu          sync.RWMutex

	pingInterval  time.Duration
	pongTimeout   time.Duration
	writeTimeout  time.Duration
	answerTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewServer(answerer Answerer, logger *zap.SugaredLogger) *Server {
	return &Server{
		answerer:      answerer,
		connections:   make(map[peerKey]*websocket.Conn),
		pingInterval:  30 * time.Second,
		pongTimeout:   60 * time.Second,
		writeTimeout:  10 * time.Second,
		answerTimeout: 15 * time.Second,
		logger:        logger,
	}
}

func (s *Server) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

func (s *Server) SetPongTimeout(timeout time.Duration) {
	s.pongTimeout = timeout
}

// HandleWebSocket serves /signal?channel=&uid=&role=. Closing the socket
// removes the peer from the SFU.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := peerKey{channel: q.Get("channel"), uid: q.Get("uid")}
	role := domain.Role(q.Get("role"))
	if err := validateJoin(key.channel, key.uid, role); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	existing, isReconnect := s.connections[key]
	if isReconnect {
		existing.Close()
		s.logger.Infow("closing old connection for reconnecting peer", "channel", key.channel, "uid", key.uid)
	}
	s.connections[key] = conn
	s.mu.Unlock()

	s.logger.Infow("peer connected to signaling",
		"channel", key.channel,
		"uid", key.uid,
		"role", role,
		"reconnect", isReconnect,
	)

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messages := make(chan Message, 10)
	readErr := make(chan error, 1)
	go func() {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			messages <- msg
		}
	}()

	left := false
loop:
	for {
		select {
		case msg := <-messages:
			if msg.Type == TypeLeave {
				left = true
				break loop
			}
			if err := s.handleMessage(r.Context(), conn, key, role, msg); err != nil {
				s.logger.Infow("error handling signaling message",
					"channel", key.channel,
					"uid", key.uid,
					"type", msg.Type,
					"error", err,
				)
				s.sendError(conn, err.Error())
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "channel", key.channel, "uid", key.uid, "error", err)
				break loop
			}

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading signaling message", "channel", key.channel, "uid", key.uid, "error", err)
			}
			break loop
		}
	}

	s.mu.Lock()
	current := s.connections[key] == conn
	if current {
		delete(s.connections, key)
	}
	s.mu.Unlock()

	// a replaced connection leaves the peer to its successor
	if current {
		s.answerer.Remove(key.channel, key.uid)
	}
	s.logger.Infow("peer disconnected from signaling",
		"channel", key.channel,
		"uid", key.uid,
		"left", left,
	)
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, key peerKey, role domain.Role, msg Message) error {
	switch msg.Type {
	case TypeOffer:
		var offer webrtc.SessionDescription
		if err := json.Unmarshal(msg.Payload, &offer); err != nil {
			return fmt.Errorf("invalid offer payload: %w", err)
		}
		answer, err := s.answer(ctx, key.channel, key.uid, role, offer)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(answer)
		if err != nil {
			return err
		}
		return s.write(conn, Message{Type: TypeAnswer, Channel: key.channel, UID: key.uid, Payload: payload})
	case TypePing:
		return s.write(conn, Message{Type: TypePong})
	case "":
		return fmt.Errorf("message type is required")
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (s *Server) answer(ctx context.Context, channel, uid string, role domain.Role, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if offer.Type != webrtc.SDPTypeOffer {
		return webrtc.SessionDescription{}, fmt.Errorf("expected an offer, got %s", offer.Type)
	}
	if err := validateSDP(offer.SDP); err != nil {
		return webrtc.SessionDescription{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.answerTimeout)
	defer cancel()

	start := time.Now()
	answer, err := s.answerer.Answer(ctx, channel, uid, role, offer)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	s.logger.Infow("answered offer",
		"channel", channel,
		"uid", uid,
		"role", role,
		"sdp_length", len(offer.SDP),
		"took", time.Since(start),
	)
	return answer, nil
}

func (s *Server) write(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteJSON(msg)
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	payload, _ := json.Marshal(ErrorPayload{Message: message})
	s.write(conn, Message{Type: TypeError, Payload: payload})
}

type offerRequest struct {
	UID   string      `json:"uid" binding:"required"`
	Role  domain.Role `json:"role" binding:"required"`
	Offer webrtc.SessionDescription `json:"offer"`
}

// HandleOffer serves POST /api/v1/rtc/:channel/offer for browser clients.
func (s *Server) HandleOffer(c *gin.Context) {
	channel := c.Param("channel")
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid offer request").WithCause(err))
		return
	}
	if err := validateJoin(channel, req.UID, req.Role); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	answer, err := s.answer(c.Request.Context(), channel, req.UID, req.Role, req.Offer)
	if err != nil {
		if errors.Is(err, domain.ErrChannelNotLive) {
			c.Error(apperrors.NewConflictError(err.Error()).WithContext("channel", channel))
			return
		}
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// HandleLeave serves DELETE /api/v1/rtc/:channel/peers/:uid.
func (s *Server) HandleLeave(c *gin.Context) {
	s.answerer.Remove(c.Param("channel"), c.Param("uid"))
	c.Status(http.StatusNoContent)
}

func (s *Server) HealthCheck(c *gin.Context) {
	s.mu.RLock()
	connectionCount := len(s.connections)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": connectionCount,
	})
}

func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}
