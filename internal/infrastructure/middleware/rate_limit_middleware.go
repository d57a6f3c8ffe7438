package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"locallive/pkg/config"
	apperrors "locallive/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateLimiterStore stores per-key (for example, per IP) rate limiters.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  make(map[string]*rate.Limiter),
		rate:      r,
		burstSize: burst,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(s.rate, s.burstSize)
		s.limiters[key] = limiter
	}
	return limiter
}

// clientIP uses the first X-Forwarded-For hop when present, otherwise the
// remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewHTTPRateLimitMiddleware returns Gin middleware that applies simple IP-based rate limiting.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rps := cfg.RateLimiting.HTTP.RequestsPerSecond
	burst := cfg.RateLimiting.HTTP.Burst

	store := newRateLimiterStore(rate.Limit(rps), burst)

	var globalSem chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error":   string(apperrors.ErrCodeServiceUnavailable),
					"message": "too many concurrent requests",
				})
				return
			}
		}

		limiter := store.getLimiter(clientIP(c.Request))
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       string(apperrors.ErrCodeRateLimit),
				"message":     "rate limit exceeded",
				"retry_after": time.Second.Seconds(),
			})
			return
		}
		c.Next()
	}
}

// WebSocketLimiter caps concurrent feed connections and hands each one its
// own message limiter.
type WebSocketLimiter struct {
	enabled        bool
	rate           rate.Limit
	burst          int
	sem            chan struct{}
	maxMessageSize int64
}

func NewWebSocketLimiter(cfg *config.Config) *WebSocketLimiter {
	ws := cfg.RateLimiting.WebSocket
	l := &WebSocketLimiter{
		enabled:        cfg.RateLimiting.Enabled,
		rate:           rate.Limit(ws.MessagesPerSecond),
		burst:          ws.Burst,
		maxMessageSize: ws.MaxMessageSizeBytes,
	}
	if l.enabled && ws.MaxConcurrent > 0 {
		l.sem = make(chan struct{}, ws.MaxConcurrent)
	}
	return l
}

// Acquire reserves a connection slot. The returned release func must be
// called when the connection closes.
func (l *WebSocketLimiter) Acquire() (release func(), ok bool) {
	if l == nil || l.sem == nil {
		return func() {}, true
	}
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, true
	default:
		return nil, false
	}
}

// MessageLimiter returns a limiter for one connection; unlimited when rate
// limiting is disabled.
func (l *WebSocketLimiter) MessageLimiter() *rate.Limiter {
	if l == nil || !l.enabled {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(l.rate, l.burst)
}

// MaxMessageSize is the read limit for inbound frames, 0 for none.
func (l *WebSocketLimiter) MaxMessageSize() int64 {
	if l == nil || !l.enabled {
		return 0
	}
	return l.maxMessageSize
}
