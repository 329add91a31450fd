// Package maintenance provide tools for cleaning the event journal
package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/matchlist/internal/config"
	"github.com/woozymasta/matchlist/internal/storage"
)

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository) bool {
	if cfg.Storage.PruneOlder <= 0 {
		return false
	}

	if store == nil {
		log.Error().Msg("Event journal is disabled, nothing to prune")
		return true
	}

	before := time.Now().Add(-cfg.Storage.PruneOlder)
	log.Info().Time("before", before).Msg("Pruning journal events...")

	count, err := store.PruneEvents(ctx, before)
	if err != nil {
		log.Error().Err(err).Msg("Failed to prune journal events")
		return true
	}

	log.Info().Int64("deleted", count).Msg("Prune finished")

	return true
}
