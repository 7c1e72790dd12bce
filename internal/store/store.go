// Package store persists one ContentRecord per content identity.
//
// Stores only read and write whole records. Serializing concurrent writers for the
// same identity is the merge coordinator's job.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"streamresolver/config"
	"streamresolver/internal/database"
	"streamresolver/models"
)

// ErrClosed is returned by Get and Put after Close. Close itself is idempotent.
var ErrClosed = errors.New("store closed")

// ContentStore is the persistence boundary of the engine.
type ContentStore interface {
	// Get returns the record stored under key; ok is false when none exists.
	Get(ctx context.Context, key string) (record models.ContentRecord, ok bool, err error)
	// Put replaces the record stored under record.Key().
	Put(ctx context.Context, record models.ContentRecord) error
	Close() error
}

// Open builds the backend selected in settings.
func Open(ctx context.Context, settings config.StoreSettings) (ContentStore, error) {
	switch settings.Backend {
	case config.StoreBackendMemory, "":
		log.Printf("[store] using in-memory store (max %d entries)", settings.MaxEntries)
		return NewMemory(settings.MaxEntries)
	case config.StoreBackendSQLite:
		db, err := database.Open(ctx, settings.Path)
		if err != nil {
			return nil, err
		}
		log.Printf("[store] using sqlite store at %s", settings.Path)
		return NewSQLite(db), nil
	case config.StoreBackendBadger:
		s, err := OpenBadger(settings.Path)
		if err != nil {
			return nil, err
		}
		log.Printf("[store] using badger store at %s", settings.Path)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", settings.Backend)
	}
}
