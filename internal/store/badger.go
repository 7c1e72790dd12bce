package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"streamresolver/models"
)

const contentKeyPrefix = "content/"

// Badger stores each record as a JSON value under "content/<key>".
type Badger struct {
	db     *badger.DB
	closed atomic.Bool
}

var _ ContentStore = (*Badger)(nil)

// OpenBadger opens (creating if needed) a badger directory. An empty dir opens an
// in-memory instance.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewBadger(db), nil
}

// NewBadger wraps an open database.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

func (b *Badger) Get(_ context.Context, key string) (models.ContentRecord, bool, error) {
	if b.closed.Load() {
		return models.ContentRecord{}, false, ErrClosed
	}
	var (
		record models.ContentRecord
		found  bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(contentKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return models.ContentRecord{}, false, fmt.Errorf("get content %s: %w", key, err)
	}
	return record, found, nil
}

func (b *Badger) Put(_ context.Context, record models.ContentRecord) error {
	if b.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(contentKeyPrefix+record.Key()), data)
	})
}

func (b *Badger) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
