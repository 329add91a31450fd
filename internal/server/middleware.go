package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// GetRealIP attempts to determine the client's real IP address, trusting
// headers like CF-Connecting-IP or X-Forwarded-For if configured to do so.
func GetRealIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
			return strings.TrimSpace(cf)
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

// ProxyAwareIdentity returns an IdentityFunc backed by GetRealIP.
func ProxyAwareIdentity(trustProxy bool) IdentityFunc {
	return func(r *http.Request) string {
		return GetRealIP(r, trustProxy)
	}
}

// RateLimitMiddleware admits each request through the sliding window limiter keyed
// by caller identity and exact path. It rejects with "429 Too Many Requests" when over the limit.
func (s *Server) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := s.identity(r)
		d := s.limiter.Check(identity, r.URL.Path)
		if !d.Allowed {
			s.metrics.rateLimited.WithLabelValues(s.routeOf(r)).Inc()

			log.Debug().
				Str("ip", identity).
				Str("path", r.URL.Path).
				Int("count", d.Count).
				Msg("Rate limited")

			s.deniedLog.Do(func() {
				log.Warn().
					Str("ip", identity).
					Str("path", r.URL.Path).
					Msg("Clients are being rate limited")
			})

			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			respondError(w, http.StatusTooManyRequests, "slow down", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// routeOf returns the mux pattern serving r, or routeUnmatched for the catch-all.
// The limiter runs before the mux, so r.Pattern is not set yet.
func (s *Server) routeOf(r *http.Request) string {
	if s.mux == nil {
		return routeUnmatched
	}

	_, pattern := s.mux.Handler(r)
	if pattern == "" || pattern == "/" {
		return routeUnmatched
	}

	return pattern
}

// CORSMiddleware adds cross-origin headers and answers preflight requests.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	if s.corsOrigin == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "600")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs the details of each HTTP request and records request metrics.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		// ServeMux stores the matched pattern on the request it was given.
		route := r.Pattern
		if route == "" || route == "/" {
			route = routeUnmatched
		}
		elapsed := time.Since(start)

		s.metrics.requestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		s.metrics.requestsSeconds.WithLabelValues(route).Observe(elapsed.Seconds())

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("ip", s.identity(r)).
			Int("status", sw.status).
			Dur("duration", elapsed).
			Msg("Request handled")
	})
}

// AdminAuthMiddleware protects endpoints by requiring a valid Bearer token in the Authorization header.
func AdminAuthMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			respondError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusWriter remembers the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
