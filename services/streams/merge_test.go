package streams

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamresolver/internal/store"
	"streamresolver/internal/streamerr"
	"streamresolver/models"
)

func hashN(n int) string {
	return fmt.Sprintf("%040x", n)
}

func newMemoryStore(t *testing.T) *store.Memory {
	t.Helper()
	st, err := store.NewMemory(100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func movieIdentity(t *testing.T) models.ContentIdentity {
	t.Helper()
	identity, err := models.NewContentIdentity(models.MediaTypeMovie, "tt0111161", 0, 0)
	require.NoError(t, err)
	return identity
}

func streamHashes(records []models.StreamRecord) []string {
	hashes := make([]string, len(records))
	for i, r := range records {
		hashes[i] = r.Hash
	}
	return hashes
}

func TestUpsertStreamsIdempotent(t *testing.T) {
	m := NewMergeCoordinator(newMemoryStore(t), time.Second)
	identity := movieIdentity(t)
	candidates := []models.CandidateStream{
		{Hash: hashN(1), Filename: "a.mkv", Title: "A 1080p", Quality: 1080, Availability: map[string]bool{"torbox": true}},
		{Hash: hashN(2), Filename: "b.mkv", Title: "B 720p", Quality: 720},
	}

	first, err := m.UpsertStreams(context.Background(), identity, candidates, identity.DefaultTitle())
	require.NoError(t, err)
	second, err := m.UpsertStreams(context.Background(), identity, candidates, identity.DefaultTitle())
	require.NoError(t, err)

	assert.Equal(t, streamHashes(first), streamHashes(second))
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].Availability, second[i].Availability)
		assert.Equal(t, first[i].AddedAt, second[i].AddedAt)
	}
	assert.True(t, second[0].Availability["torbox"])
	assert.False(t, second[1].Availability["torbox"])
}

func TestMergeStreams(t *testing.T) {
	added := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := added.Add(time.Hour)
	existing := []models.StreamRecord{
		{Hash: hashN(1), Availability: map[string]bool{"realdebrid": true}, Degraded: map[string]bool{"realdebrid": true}, AddedAt: added, LastCheckedAt: added},
		{Hash: hashN(2), Availability: map[string]bool{"torbox": true}, AddedAt: added, LastCheckedAt: added},
	}
	candidates := []models.CandidateStream{
		{Hash: hashN(3), Filename: "new.mkv", Title: "New", Source: "src"},
		{Hash: hashN(1), Availability: map[string]bool{"realdebrid": false}},
		{Hash: hashN(2)},
	}

	out := MergeStreams(existing, candidates, now)

	require.Equal(t, []string{hashN(1), hashN(2), hashN(3)}, streamHashes(out))
	assert.False(t, out[0].Availability["realdebrid"])
	assert.Nil(t, out[0].Degraded)
	assert.Equal(t, now, out[0].LastCheckedAt)
	assert.Equal(t, added, out[1].LastCheckedAt, "no availability info leaves lastCheckedAt alone")
	assert.True(t, out[1].Availability["torbox"])
	assert.Equal(t, now, out[2].AddedAt)
	assert.NotNil(t, out[2].Availability)
	assert.Equal(t, "New", out[2].DisplayTitle)

	assert.True(t, existing[0].Availability["realdebrid"], "input must not be mutated")
}

func TestUpsertStreamsConcurrentDisjoint(t *testing.T) {
	st := newMemoryStore(t)
	m := NewMergeCoordinator(st, 5*time.Second)
	identity := movieIdentity(t)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.UpsertStreams(context.Background(), identity, []models.CandidateStream{{Hash: hashN(i + 1)}}, "t")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	record, ok, err := st.Get(context.Background(), identity.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, record.Streams, writers)
	assert.Equal(t, 0, m.locks.Len())
}

func TestUpsertStreamsLockTimeoutKeepsSnapshot(t *testing.T) {
	m := NewMergeCoordinator(newMemoryStore(t), 20*time.Millisecond)
	identity := movieIdentity(t)

	_, err := m.UpsertStreams(context.Background(), identity, []models.CandidateStream{{Hash: hashN(1)}}, "t")
	require.NoError(t, err)

	unlock, err := m.locks.Lock(context.Background(), identity.Key(), 0)
	require.NoError(t, err)
	defer unlock()

	got, err := m.UpsertStreams(context.Background(), identity, []models.CandidateStream{{Hash: hashN(2)}}, "t")
	require.Error(t, err)
	assert.True(t, streamerr.Is(err, streamerr.KindLockTimeout))
	assert.Equal(t, []string{hashN(1)}, streamHashes(got))
}

func TestUpsertStreamsEmptyIsNoop(t *testing.T) {
	st := newMemoryStore(t)
	m := NewMergeCoordinator(st, time.Second)
	identity := movieIdentity(t)

	got, err := m.UpsertStreams(context.Background(), identity, nil, "t")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, st.Len())
}

func TestMergeStreamsFreshnessIsPerProvider(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := old.Add(24 * time.Hour)
	ttl := 12 * time.Hour

	first := MergeStreams(nil, []models.CandidateStream{
		{Hash: hashN(1), Availability: map[string]bool{"realdebrid": true}},
	}, old)
	out := MergeStreams(first, []models.CandidateStream{
		{Hash: hashN(1), Availability: map[string]bool{"torbox": true}},
	}, now)

	require.Len(t, out, 1)
	assert.True(t, out[0].FreshOn("torbox", now, ttl))
	assert.False(t, out[0].FreshOn("realdebrid", now, ttl), "a torbox check must not refresh realdebrid")
	assert.Equal(t, old, out[0].CheckedAt["realdebrid"])
	assert.Equal(t, now, out[0].LastCheckedAt)
}
