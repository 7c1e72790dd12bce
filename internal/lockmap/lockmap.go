// Package lockmap provides per-key mutual exclusion with a bounded wait.
package lockmap

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a key could not be acquired within the wait budget.
var ErrLockTimeout = errors.New("lock not acquired before timeout")

type keyLock struct {
	ch   chan struct{}
	refs int
}

// Map hands out one lock per key. Entries are dropped once no caller holds or waits on them.
type Map struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// New returns an empty lock map.
func New() *Map {
	return &Map{locks: make(map[string]*keyLock)}
}

func (m *Map) acquireRef(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *Map) releaseRef(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Lock waits up to timeout (or until ctx is done) for key. On success the returned
// function releases the lock and must be called exactly once.
func (m *Map) Lock(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	l := m.acquireRef(key)

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case l.ch <- struct{}{}:
	case <-timer:
		m.releaseRef(key, l)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		m.releaseRef(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			m.releaseRef(key, l)
		})
	}, nil
}

// Len reports how many keys currently have holders or waiters.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
