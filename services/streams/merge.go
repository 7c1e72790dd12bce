package streams

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"streamresolver/internal/lockmap"
	"streamresolver/internal/metrics"
	"streamresolver/internal/store"
	"streamresolver/internal/streamerr"
	"streamresolver/models"
)

const defaultLockTimeout = 10 * time.Second

// MergeCoordinator is the only writer of content records. Upserts for one identity run
// one at a time; readers go straight to the store and never wait on the lock.
type MergeCoordinator struct {
	store       store.ContentStore
	locks       *lockmap.Map
	lockTimeout time.Duration
	now         func() time.Time
}

func NewMergeCoordinator(st store.ContentStore, lockTimeout time.Duration) *MergeCoordinator {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &MergeCoordinator{
		store:       st,
		locks:       lockmap.New(),
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

// Snapshot returns the last committed streams for identity without taking the lock.
func (m *MergeCoordinator) Snapshot(ctx context.Context, identity models.ContentIdentity) ([]models.StreamRecord, error) {
	record, ok, err := m.store.Get(ctx, identity.Key())
	if err != nil || !ok {
		return nil, err
	}
	return record.Streams, nil
}

// UpsertStreams merges candidates into the identity's record and returns the full stream set.
// When the lock cannot be taken in time the upsert is abandoned and the previous snapshot is
// returned together with a LockTimeout error.
func (m *MergeCoordinator) UpsertStreams(ctx context.Context, identity models.ContentIdentity, candidates []models.CandidateStream, defaultTitle string) ([]models.StreamRecord, error) {
	key := identity.Key()
	if len(candidates) == 0 {
		return m.Snapshot(ctx, identity)
	}

	unlock, err := m.locks.Lock(ctx, key, m.lockTimeout)
	if err != nil {
		if errors.Is(err, lockmap.ErrLockTimeout) {
			metrics.MergeLockTimeouts.Inc()
			log.Printf("[merge] %s: lock not acquired within %s, keeping previous snapshot", key, m.lockTimeout)
			snapshot, snapErr := m.Snapshot(ctx, identity)
			if snapErr != nil {
				log.Printf("[merge] %s: snapshot read failed: %v", key, snapErr)
			}
			return snapshot, streamerr.New(streamerr.KindLockTimeout, "upsert "+key, err)
		}
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()

	record, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		record = models.ContentRecord{Identity: identity, Title: defaultTitle}
	}
	if record.Title == "" {
		record.Title = defaultTitle
	}

	now := m.now()
	before := len(record.Streams)
	record.Streams = MergeStreams(record.Streams, candidates, now)
	record.LastUpdatedAt = now

	if err := m.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("persist %s: %w", key, err)
	}
	log.Printf("[merge] %s: %d candidates merged, %d new, %d total", key, len(candidates), len(record.Streams)-before, len(record.Streams))
	return models.CloneStreams(record.Streams), nil
}

// MergeStreams applies candidates to existing in insertion order and returns the new set.
// Existing records keep their position; new hashes are appended. The input slice is not modified.
func MergeStreams(existing []models.StreamRecord, candidates []models.CandidateStream, now time.Time) []models.StreamRecord {
	out := models.CloneStreams(existing)
	index := make(map[string]int, len(out))
	for i, s := range out {
		index[s.Hash] = i
	}

	for _, c := range candidates {
		if i, ok := index[c.Hash]; ok {
			rec := &out[i]
			if mergeFlags(rec, c, now) {
				rec.LastCheckedAt = now
			}
			continue
		}

		rec := models.StreamRecord{
			Hash:         c.Hash,
			Filename:     c.Filename,
			DisplayTitle: c.Title,
			Quality:      c.Quality,
			SizeMB:       c.SizeMB,
			SourceName:   c.Source,
			Availability: map[string]bool{},
			AddedAt:      now,
		}
		if mergeFlags(&rec, c, now) {
			rec.LastCheckedAt = now
		}
		index[c.Hash] = len(out)
		out = append(out, rec)
	}
	return out
}

// mergeFlags copies the candidate's availability onto rec, only writing flags whose value
// changed, and stamps each reported provider with now. Providers the candidate does not
// mention keep their previous check time. It reports whether the candidate carried
// availability at all.
func mergeFlags(rec *models.StreamRecord, c models.CandidateStream, now time.Time) bool {
	if len(c.Availability) == 0 {
		return false
	}
	if rec.Availability == nil {
		rec.Availability = make(map[string]bool, len(c.Availability))
	}
	if rec.CheckedAt == nil {
		rec.CheckedAt = make(map[string]time.Time, len(c.Availability))
	}
	for provider, cached := range c.Availability {
		if current, ok := rec.Availability[provider]; !ok || current != cached {
			rec.Availability[provider] = cached
		}
		rec.CheckedAt[provider] = now
		switch {
		case c.Degraded[provider]:
			if rec.Degraded == nil {
				rec.Degraded = map[string]bool{}
			}
			rec.Degraded[provider] = true
		case rec.Degraded != nil:
			delete(rec.Degraded, provider)
		}
	}
	if len(rec.Degraded) == 0 {
		rec.Degraded = nil
	}
	return true
}
