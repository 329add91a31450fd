// Package storage keeps the SQLite event journal of match lifecycle changes.
// The journal is an audit trail only; the registry never restores state from it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/woozymasta/matchlist/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New opens the journal database at dbPath, sets connection pool parameters, and runs migrations.
func New(ctx context.Context, dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// InsertEvent appends a lifecycle event and returns its row id.
func (r *Repository) InsertEvent(ctx context.Context, ev models.Event) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO match_events (kind, match_id, host_name, map_name, address, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Kind, ev.MatchID, ev.HostName, ev.MapName, ev.Address, ev.OccurredAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

// RecentEvents returns up to limit events, newest first.
// If matchID is provided (not empty), only events of that match are returned.
func (r *Repository) RecentEvents(ctx context.Context, matchID string, limit int) ([]models.Event, error) {
	query := `
		SELECT id, kind, match_id, host_name, map_name, address, occurred_at
		FROM match_events
		WHERE 1=1
	`
	var args []any

	if matchID != "" {
		query += " AND match_id = ?"
		args = append(args, matchID)
	}

	query += " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []models.Event
	for rows.Next() {
		var (
			ev models.Event
			at int64
		)
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.MatchID, &ev.HostName, &ev.MapName, &ev.Address, &at); err != nil {
			return nil, err
		}
		ev.OccurredAt = time.UnixMilli(at).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// PruneEvents removes events that occurred before the cutoff.
func (r *Repository) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM match_events WHERE occurred_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// CountEvents returns the number of stored events.
func (r *Repository) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_events`).Scan(&n)
	return n, err
}
