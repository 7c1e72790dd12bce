package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamresolver/config"
	"streamresolver/internal/database"
	"streamresolver/models"
)

func sampleRecord(t *testing.T) models.ContentRecord {
	t.Helper()
	id, err := models.NewContentIdentity(models.MediaTypeSeries, "tt0903747", 2, 5)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)
	return models.ContentRecord{
		Identity: id,
		Title:    "Breaking Bad S2E5",
		Streams: []models.StreamRecord{
			{
				Hash:          "abcdef0123456789abcdef0123456789abcdef01",
				Filename:      "Breaking.Bad.S02E05.1080p.mkv",
				DisplayTitle:  "Breaking.Bad.S02E05.1080p",
				Quality:       1080,
				SizeMB:        2048,
				SourceName:    "torrentio",
				Availability:  map[string]bool{"realdebrid": true, "torbox": false},
				Degraded:      map[string]bool{"realdebrid": true},
				CheckedAt:     map[string]time.Time{"realdebrid": now, "torbox": now},
				LastCheckedAt: now,
				AddedAt:       now,
			},
		},
		LastUpdatedAt: now,
	}
}

func backends(t *testing.T) map[string]ContentStore {
	t.Helper()
	ctx := context.Background()

	mem, err := NewMemory(10)
	require.NoError(t, err)

	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "streams.db"))
	require.NoError(t, err)

	bdg, err := OpenBadger(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)

	stores := map[string]ContentStore{
		"memory": mem,
		"sqlite": NewSQLite(db),
		"badger": bdg,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			record := sampleRecord(t)

			_, ok, err := s.Get(ctx, record.Key())
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, record))
			got, ok, err := s.Get(ctx, record.Key())
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, record, got)

			record.Title = "updated"
			record.Streams = append(record.Streams, models.StreamRecord{
				Hash:         "0000000000000000000000000000000000000002",
				Availability: map[string]bool{},
				AddedAt:      record.LastUpdatedAt,
			})
			require.NoError(t, s.Put(ctx, record))
			got, ok, err = s.Get(ctx, record.Key())
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "updated", got.Title)
			assert.Len(t, got.Streams, 2)
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			record := sampleRecord(t)

			require.NoError(t, s.Close())
			require.NoError(t, s.Close())

			_, _, err := s.Get(ctx, record.Key())
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, s.Put(ctx, record), ErrClosed)
		})
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(0)
	require.NoError(t, err)
	record := sampleRecord(t)
	require.NoError(t, m.Put(ctx, record))

	got, _, _ := m.Get(ctx, record.Key())
	got.Streams[0].Availability["torbox"] = true

	again, _, _ := m.Get(ctx, record.Key())
	assert.False(t, again.Streams[0].Availability["torbox"], "store state must not alias caller maps")
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	for _, id := range []string{"tt1", "tt2", "tt3"} {
		identity, err := models.NewContentIdentity(models.MediaTypeMovie, id, 0, 0)
		require.NoError(t, err)
		require.NoError(t, m.Put(ctx, models.ContentRecord{Identity: identity}))
	}
	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "movie-tt1")
	assert.False(t, ok)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreSettings{Backend: config.StoreBackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, config.StoreSettings{Backend: config.StoreBackendSQLite, Path: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreSettings{Backend: "redis"})
	assert.Error(t, err)
}
