package store

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"streamresolver/models"
)

const defaultMaxEntries = 5000

// Memory is a bounded in-process store. The least recently used identities are
// evicted once MaxEntries is reached.
type Memory struct {
	cache  *lru.Cache[string, models.ContentRecord]
	closed atomic.Bool
}

var _ ContentStore = (*Memory)(nil)

// NewMemory returns a store holding at most maxEntries records (5000 when <= 0).
func NewMemory(maxEntries int) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	cache, err := lru.New[string, models.ContentRecord](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Memory{cache: cache}, nil
}

func (m *Memory) Get(_ context.Context, key string) (models.ContentRecord, bool, error) {
	if m.closed.Load() {
		return models.ContentRecord{}, false, ErrClosed
	}
	record, ok := m.cache.Get(key)
	if !ok {
		return models.ContentRecord{}, false, nil
	}
	return record.Clone(), true, nil
}

func (m *Memory) Put(_ context.Context, record models.ContentRecord) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.cache.Add(record.Key(), record.Clone())
	return nil
}

// Len reports how many records are held.
func (m *Memory) Len() int {
	return m.cache.Len()
}

func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.cache.Purge()
	return nil
}
