// Package api exposes the entitlement engine over HTTP for the browser
// extension: plan and subscription reads, upgrades, settings, history and
// the streaming simplify endpoint.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/generate"
	"github.com/xraph/entitle/identity"
)

// ExtensionIDHeader carries the calling browser extension's id.
const ExtensionIDHeader = "X-Extension-Id"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// RemainingHeader reports the requests left in the cycle after an action.
const RemainingHeader = "X-Requests-Remaining"

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	engine   *entitle.Engine
	verifier identity.Verifier
	provider generate.Provider
	logger   *slog.Logger

	allowedOrigins []string
	rateLimit      float64
	rateBurst      int
	metrics        http.Handler

	limiter *limiterStore
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAllowedOrigins sets the CORS origins. "*" allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithRateLimit sets the per-client request rate (requests per second) and
// burst. A non-positive rate disables the limiter.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = perSecond
		s.rateBurst = burst
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New creates a Server. verifier authenticates callers and provider
// produces the simplified text.
func New(engine *entitle.Engine, verifier identity.Verifier, provider generate.Provider, opts ...Option) *Server {
	s := &Server{
		engine:         engine,
		verifier:       verifier,
		provider:       provider,
		logger:         slog.Default(),
		allowedOrigins: []string{"*"},
		rateLimit:      5,
		rateBurst:      10,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rateLimit > 0 {
		s.limiter = newLimiterStore(s.rateLimit, s.rateBurst)
	}
	return s
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestID(), s.accessLog())
	router.Use(cors.New(s.corsConfig()))

	router.GET("/health", s.health)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	public := router.Group("/")
	if s.limiter != nil {
		public.Use(s.rateLimitMiddleware())
	}
	public.GET("/plans", s.listPlans)

	protected := public.Group("/")
	protected.Use(s.authMiddleware())
	protected.GET("/me", s.me)
	protected.POST("/upgrade", s.upgrade)
	protected.GET("/settings", s.getSettings)
	protected.POST("/settings", s.updateSettings)
	protected.GET("/history", s.listHistory)
	protected.POST("/simplify", s.simplify)

	return router
}

// Close releases the limiter's background cleanup.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.stop()
	}
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", ExtensionIDHeader, RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, RemainingHeader},
		MaxAge:        12 * time.Hour,

		AllowBrowserExtensions: true,
	}
	for _, o := range s.allowedOrigins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = s.allowedOrigins
	return cfg
}
