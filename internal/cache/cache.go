// Package cache stores encoded route answers keyed by request coordinates.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a byte-value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close()
}

// RouteKey builds the key for a route query. Coordinates are rounded to 1e-7
// degrees (about 1 cm), well below the grid resolution.
func RouteKey(start, goal orb.Point) string {
	return fmt.Sprintf("droneplan:route:%.7f,%.7f:%.7f,%.7f", start[0], start[1], goal[0], goal[1])
}

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Memory is an in-process cache bounded to maxSize entries.
type Memory struct {
	mu        sync.RWMutex
	entries   map[string]entry
	maxSize   int
	hits      int64
	misses    int64
	evictions int64
	now       func() time.Time
}

// NewMemory creates a memory cache. maxSize <= 0 means unbounded.
func NewMemory(maxSize int) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, found := m.entries[key]
	m.mu.RUnlock()

	if found && e.expired(m.now()) {
		m.mu.Lock()
		// A Set may have replaced the entry since the read lock was released.
		if cur, ok := m.entries[key]; ok && cur.expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		found = false
	}

	if !found {
		atomic.AddInt64(&m.misses, 1)
		return nil, ErrMiss
	}
	atomic.AddInt64(&m.hits, 1)
	return e.value, nil
}

// Set stores value under key. A full cache evicts one arbitrary entry first.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && m.maxSize > 0 && len(m.entries) >= m.maxSize {
		for k := range m.entries {
			delete(m.entries, k)
			atomic.AddInt64(&m.evictions, 1)
			break
		}
	}
	m.entries[key] = e
	return nil
}

// Close drops every entry.
func (m *Memory) Close() {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
}

// Stats returns hit, miss and eviction counters and the current size.
func (m *Memory) Stats() (hits, misses, evictions, size int) {
	m.mu.RLock()
	size = len(m.entries)
	m.mu.RUnlock()

	return int(atomic.LoadInt64(&m.hits)), int(atomic.LoadInt64(&m.misses)),
		int(atomic.LoadInt64(&m.evictions)), size
}

func (m *Memory) String() string {
	hits, misses, evictions, size := m.Stats()
	return fmt.Sprintf("MemoryCache[size=%d/%d, hits=%d, misses=%d, evictions=%d]",
		size, m.maxSize, hits, misses, evictions)
}
