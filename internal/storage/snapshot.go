package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"adboard/internal/core"
	"adboard/internal/dashboard"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned by LoadLatest when nothing was ever persisted.
var ErrNoSnapshot = errors.New("no persisted snapshot")

// SnapshotRepository keeps the latest successful snapshot in SQLite so a
// restart can serve previously displayed data until the first fetch
// completes. It is not a history: one row, replaced on every save.
type SnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(dbPath string) (*SnapshotRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SnapshotRepository{db: db}, nil
}

func (r *SnapshotRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Save replaces the persisted snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, snap dashboard.Snapshot) error {
	payload, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, fetched_at, payload) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET fetched_at = excluded.fetched_at, payload = excluded.payload`,
		snap.FetchedAt.UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// LoadLatest returns the persisted snapshot, or ErrNoSnapshot.
func (r *SnapshotRepository) LoadLatest(ctx context.Context) (dashboard.Snapshot, error) {
	var fetchedAt string
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT fetched_at, payload FROM snapshots WHERE id = 1`).Scan(&fetchedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return dashboard.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return dashboard.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return dashboard.Snapshot{}, fmt.Errorf("parse snapshot time: %w", err)
	}
	var data core.Dataset
	if err := json.Unmarshal(payload, &data); err != nil {
		return dashboard.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return dashboard.Snapshot{Data: data, FetchedAt: at}, nil
}
