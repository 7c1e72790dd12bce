package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"streamresolver/models"
)

// SQLite keeps one row per identity with the stream list as a JSON column.
type SQLite struct {
	db     *sql.DB
	closed atomic.Bool
}

var _ ContentStore = (*SQLite)(nil)

// NewSQLite wraps an already migrated database (see database.Open).
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Get(ctx context.Context, key string) (models.ContentRecord, bool, error) {
	if s.closed.Load() {
		return models.ContentRecord{}, false, ErrClosed
	}
	var (
		record  models.ContentRecord
		mt      string
		streams string
		updated time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT media_type, catalog_id, season, episode, title, streams, last_updated_at
		 FROM content_records WHERE key = ?`, key,
	).Scan(&mt, &record.Identity.CatalogID, &record.Identity.Season, &record.Identity.Episode,
		&record.Title, &streams, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ContentRecord{}, false, nil
	}
	if err != nil {
		return models.ContentRecord{}, false, fmt.Errorf("get content %s: %w", key, err)
	}
	record.Identity.MediaType = models.MediaType(mt)
	record.LastUpdatedAt = updated.UTC()
	if err := json.Unmarshal([]byte(streams), &record.Streams); err != nil {
		return models.ContentRecord{}, false, fmt.Errorf("decode streams for %s: %w", key, err)
	}
	return record, true, nil
}

func (s *SQLite) Put(ctx context.Context, record models.ContentRecord) error {
	if s.closed.Load() {
		return ErrClosed
	}
	streams := record.Streams
	if streams == nil {
		streams = []models.StreamRecord{}
	}
	payload, err := json.Marshal(streams)
	if err != nil {
		return fmt.Errorf("encode streams: %w", err)
	}
	id := record.Identity
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO content_records (key, media_type, catalog_id, season, episode, title, streams, last_updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   title = excluded.title,
		   streams = excluded.streams,
		   last_updated_at = excluded.last_updated_at`,
		record.Key(), string(id.MediaType), id.CatalogID, id.Season, id.Episode,
		record.Title, string(payload), record.LastUpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put content %s: %w", record.Key(), err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
