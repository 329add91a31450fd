package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/matchlist/internal/models"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func event(kind, id string, at time.Time) models.Event {
	return models.Event{
		Kind:       kind,
		MatchID:    id,
		HostName:   "Alice",
		MapName:    "de_dust2",
		Address:    "10.0.0.5:7777",
		OccurredAt: at,
	}
}

func TestInsertAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err := repo.InsertEvent(ctx, event("registered", "a", base))
	require.NoError(t, err)
	_, err = repo.InsertEvent(ctx, event("registered", "b", base.Add(time.Second)))
	require.NoError(t, err)
	rowID, err := repo.InsertEvent(ctx, event("unregistered", "a", base.Add(2*time.Second)))
	require.NoError(t, err)
	assert.Positive(t, rowID)

	events, err := repo.RecentEvents(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "unregistered", events[0].Kind)
	assert.Equal(t, rowID, events[0].ID)
	assert.Equal(t, base.Add(2*time.Second), events[0].OccurredAt)
	assert.Equal(t, "10.0.0.5:7777", events[0].Address)

	events, err = repo.RecentEvents(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, "a", ev.MatchID)
	}

	events, err = repo.RecentEvents(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPruneEvents(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		_, err := repo.InsertEvent(ctx, event("registered", "m", base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	deleted, err := repo.PruneEvents(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	n, err := repo.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	repo, err := New(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = New(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	var applied int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))

	files, err := migrationFiles()
	require.NoError(t, err)
	assert.Equal(t, len(files), applied)
}
