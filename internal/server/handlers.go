package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/matchlist/internal/models"
	"github.com/woozymasta/matchlist/internal/registry"
	"github.com/woozymasta/matchlist/internal/vars"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 1000
)

// handleRegister creates a new match from the host announcement.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	m, err := s.registry.Create(registry.Registration{
		HostName:     req.HostName,
		ProxyAddress: req.ProxyAddress,
		Map:          req.Map,
		ProxyPort:    string(req.ProxyPort),
		MaxPlayers:   string(req.MaxPlayers),
	})
	if err != nil {
		var verr *registry.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, verr.Error(), verr.Fields)
			return
		}

		log.Error().Err(err).Msg("Failed to register match")
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	respondJSON(w, http.StatusOK, models.RegisterResponse{
		ID:      m.ID,
		Message: "Match registered",
		Address: m.Address(),
	})
}

// handleHeartbeat refreshes the freshness of an existing match.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeMatchID(w, r)
	if !ok {
		return
	}

	if err := s.registry.Heartbeat(id); err != nil {
		s.respondRegistryError(w, id, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Heartbeat received"})
}

// handleUnregister removes a match.
func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeMatchID(w, r)
	if !ok {
		return
	}

	if err := s.registry.Unregister(id); err != nil {
		s.respondRegistryError(w, id, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleList returns the active matches.
func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	listing := s.registry.List()

	respondJSON(w, http.StatusOK, models.ListResponse{
		Matches:   listing.Matches,
		Count:     listing.Count,
		Timestamp: listing.Now.UnixMilli(),
	})
}

// handleHealth reports liveness together with registry counters.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.registry.Stats()

	respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:        "ok",
		Version:       vars.String(),
		UptimeMinutes: int64(st.Uptime / time.Minute),
		TotalMatches:  st.Total,
		ActiveMatches: st.Active,
	})
}

// handleStats returns raw registry counters.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st := s.registry.Stats()

	respondJSON(w, http.StatusOK, models.StatsResponse{
		TotalEverStored: st.Total,
		ActiveCount:     st.Active,
		UptimeSeconds:   st.Uptime.Seconds(),
	})
}

// handleEvents returns recent journal entries.
// Query params: ?limit=50&match=<id>
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		respondError(w, http.StatusNotFound, "event journal disabled", nil)
		return
	}

	limit := defaultEventsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", []string{"limit"})
			return
		}
		limit = min(n, maxEventsLimit)
	}

	events, err := s.storage.RecentEvents(r.Context(), r.URL.Query().Get("match"), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch journal events")
		respondError(w, http.StatusInternalServerError, "journal error", nil)
		return
	}

	if events == nil {
		events = []models.Event{}
	}

	respondJSON(w, http.StatusOK, events)
}

// handleNotFound is the catch-all for unknown routes.
func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusNotFound, models.ErrorResponse{
		Error: "unknown endpoint",
		Hint:  []string{"GET /matches", "GET /health"},
	})
}

// decodeBody reads a size limited JSON body into v. An empty body leaves v untouched.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		respondError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
		return false
	}

	log.Debug().
		Err(err).
		Str("path", r.URL.Path).
		Str("ip", s.identity(r)).
		Msg("Invalid JSON")

	respondError(w, http.StatusBadRequest, "invalid JSON body", nil)
	return false
}

func (s *Server) decodeMatchID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req models.MatchRequest
	if !s.decodeBody(w, r, &req) {
		return "", false
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required", []string{"id"})
		return "", false
	}

	return id, true
}

func (s *Server) respondRegistryError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, registry.ErrNotFound) {
		respondError(w, http.StatusNotFound, "match not found", nil)
		return
	}

	log.Error().Err(err).Str("id", id).Msg("Registry operation failed")
	respondError(w, http.StatusInternalServerError, "internal error", nil)
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// respondError writes the standard JSON error body.
func respondError(w http.ResponseWriter, status int, message string, fields []string) {
	respondJSON(w, status, models.ErrorResponse{Error: message, Fields: fields})
}
