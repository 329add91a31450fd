// Package server implements the HTTP binding, middleware, and background workers around the match registry.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/matchlist/internal/config"
	"github.com/woozymasta/matchlist/internal/geoip"
	"github.com/woozymasta/matchlist/internal/models"
	"github.com/woozymasta/matchlist/internal/ratelimit"
	"github.com/woozymasta/matchlist/internal/registry"
	"github.com/woozymasta/matchlist/internal/storage"
	"golang.org/x/time/rate"
)

const (
	journalWorkers   = 2
	journalQueueSize = 1000
)

// New creates a new Server with its registry and rate limiter.
// store and geo may be nil, which disables the event journal and country tagging.
func New(store *storage.Repository, geo *geoip.Provider, cfg *config.Config) *Server {
	return newServer(store, geo, cfg, time.Now)
}

func newServer(store *storage.Repository, geo *geoip.Provider, cfg *config.Config, now func() time.Time) *Server {
	s := &Server{
		storage:       store,
		authToken:     cfg.Server.AuthToken,
		corsOrigin:    cfg.Server.CORSOrigin,
		maxBody:       cfg.Server.MaxBodySize,
		evictAfter:    cfg.Registry.EvictAfter,
		sweepInterval: cfg.Registry.SweepInterval,
		identity:      ProxyAwareIdentity(cfg.Server.TrustProxy),
		deniedLog:     rate.Sometimes{Interval: 10 * time.Second},

		queue:    make(chan models.Event, journalQueueSize),
		shutdown: make(chan struct{}),
	}

	opts := registry.Options{Now: now, Sink: s}
	if geo != nil {
		opts.Locator = geo
	}
	s.registry = registry.New(opts)

	s.limiter = ratelimit.New(ratelimit.Options{
		Now:    now,
		Limit:  cfg.RateLimit.Count,
		Window: cfg.RateLimit.Window,
	})

	s.metrics = newMetrics(s.registry, s.limiter)

	return s
}

// Registry returns the match registry served by s.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// SetIdentity replaces the caller identity extractor used for rate limiting.
func (s *Server) SetIdentity(fn IdentityFunc) {
	s.identity = fn
}

// StartWorkers starts the journal writers and the periodic sweep of
// stale matches and idle rate limit windows.
func (s *Server) StartWorkers() {
	if s.storage != nil {
		for i := 0; i < journalWorkers; i++ {
			s.wg.Add(1)
			go s.journalWorker()
		}
	}

	s.janitorWG.Add(1)
	go s.janitor()
}

// StopWorkers stops the janitor, then closes the journal queue and waits until it is drained.
func (s *Server) StopWorkers() {
	s.stopOnce.Do(func() {
		close(s.shutdown)
		s.janitorWG.Wait()
		close(s.queue)
		s.wg.Wait()
	})
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /matches", s.handleList)
	mux.HandleFunc("POST /unregister", s.handleUnregister)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	if s.authToken != "" {
		mux.Handle("GET /api/events", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleEvents)))
	}

	mux.HandleFunc("/", s.handleNotFound)
	s.mux = mux

	var h http.Handler = mux
	h = s.RateLimitMiddleware(h)
	h = s.CORSMiddleware(h)

	return s.LoggingMiddleware(h)
}

// janitor periodically sweeps idle rate limit windows and, when enabled, stale matches.
func (s *Server) janitor() {
	defer s.janitorWG.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	keys := s.limiter.Sweep()
	evicted := s.registry.Sweep(s.evictAfter)

	if keys > 0 || evicted > 0 {
		log.Debug().
			Int("rate_limit_keys", keys).
			Int("matches", evicted).
			Msg("Sweep finished")
	}
}
