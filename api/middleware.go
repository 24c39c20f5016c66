package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/identity"
)

const requestIDKey = "request_id"

// requestID propagates the caller's request id or assigns a new one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"elapsed", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		}
		if id, ok := identity.FromContext(c.Request.Context()); ok {
			attrs = append(attrs, "subject_id", id.SubjectID)
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn("request failed", attrs...)
			return
		}
		s.logger.Debug("request", attrs...)
	}
}

// authMiddleware verifies the bearer token and stores the caller's
// identity in the request context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.verifier == nil {
			s.abort(c, fmt.Errorf("%w: verifier not configured", entitle.ErrAuthentication))
			return
		}

		token, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			s.abort(c, fmt.Errorf("%w: missing or malformed authorization header", entitle.ErrAuthentication))
			return
		}

		id, err := s.verifier.Verify(c.Request.Context(), token, c.GetHeader(ExtensionIDHeader))
		if err != nil {
			if !errors.Is(err, entitle.ErrAuthentication) {
				err = fmt.Errorf("%w: %w", entitle.ErrAuthentication, err)
			}
			s.logger.Debug("authentication rejected",
				"path", c.Request.URL.Path,
				"request_id", c.GetString(requestIDKey),
				"error", err,
			)
			s.abort(c, err)
			return
		}

		c.Request = c.Request.WithContext(identity.NewContext(c.Request.Context(), id))
		c.Next()
	}
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// rateLimitMiddleware rejects clients that exceed their token bucket with
// 429 and a Retry-After header.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reservation := s.limiter.get(c.ClientIP()).Reserve()
		if d := reservation.Delay(); d > 0 {
			reservation.Cancel()
			c.Header("Retry-After", strconv.Itoa(max(1, int(math.Ceil(d.Seconds())))))
			s.abort(c, fmt.Errorf("%w: client request rate", entitle.ErrRateLimited))
			return
		}
		c.Next()
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one token bucket per client address.
type limiterStore struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	r        rate.Limit
	b        int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newLimiterStore(perSecond float64, burst int) *limiterStore {
	s := &limiterStore{
		limiters: make(map[string]*clientLimiter),
		r:        rate.Limit(perSecond),
		b:        max(1, burst),
		stopCh:   make(chan struct{}),
	}
	go s.cleanup()
	return s
}

func (s *limiterStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for key, l := range s.limiters {
				if time.Since(l.lastSeen) > 10*time.Minute {
					delete(s.limiters, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(s.r, s.b)}
		s.limiters[key] = l
	}
	l.lastSeen = time.Now()
	return l.limiter
}

func (s *limiterStore) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
