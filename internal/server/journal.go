package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/matchlist/internal/models"
)

// Emit receives registry lifecycle events. It never blocks: when the journal
// queue is full the event is dropped with a warning.
func (s *Server) Emit(ev models.Event) {
	s.metrics.eventsTotal.WithLabelValues(ev.Kind).Inc()

	if s.storage == nil {
		return
	}

	select {
	case s.queue <- ev:
	default:
		s.metrics.journalDropped.Inc()
		log.Warn().
			Str("kind", ev.Kind).
			Str("id", ev.MatchID).
			Msg("Journal queue full, event dropped")
	}
}

// journalWorker is a background goroutine that writes queued events to the journal.
func (s *Server) journalWorker() {
	defer s.wg.Done()

	for ev := range s.queue {
		s.writeEvent(ev)
	}
}

func (s *Server) writeEvent(ev models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.storage.InsertEvent(ctx, ev); err != nil {
		s.metrics.journalErrors.Inc()
		log.Error().
			Err(err).
			Str("kind", ev.Kind).
			Str("id", ev.MatchID).
			Msg("Failed to write journal event")
		return
	}

	log.Trace().
		Str("kind", ev.Kind).
		Str("id", ev.MatchID).
		Msg("Journal event saved")
}
