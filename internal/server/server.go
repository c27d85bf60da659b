// Package server exposes the token exchange and cache administration over a
// local HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Authorizer runs a token exchange. *broker.Exchange satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, targetURL, resource, requestorID, softwareStatement string) (string, error)
}

// CacheResetter forgets a requestor's cached tokens once no exchange for it is
// running. *tokencache.Cache satisfies it.
type CacheResetter interface {
	Reset(ctx context.Context, requestorID string) error
}

// Pinger reports whether the cache backend is reachable.
type Pinger interface {
	Ping() error
}

type Server struct {
	router     chi.Router
	exchange   Authorizer
	cache      CacheResetter
	pinger     Pinger
	gatherer   prometheus.Gatherer
	corsOrigin string
	limiter    *rateLimiter
}

func NewServer(x Authorizer, c CacheResetter, opts ...Option) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		exchange: x,
		cache:    c,
		limiter:  newRateLimiter(30, time.Minute),
	}
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.routes()
	return srv
}

type Option func(*Server)

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// WithPinger makes /api/health report the backend's reachability.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithGatherer serves g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithAuthorizeLimit caps POST /api/authorize per client address.
func WithAuthorizeLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.limiter.stop()
		s.limiter = newRateLimiter(limit, window)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work. Call it during shutdown.
func (s *Server) Close() {
	s.limiter.stop()
}
