package kvstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

type MemoryConfig struct {
	MaxSize int
	Now     func() time.Time
}

// Memory is a process-local Store. Its values and windows are not shared
// between server instances.
type Memory struct {
	mu      sync.RWMutex
	values  map[string]*record
	windows map[string][]time.Time
	maxSize int
	now     func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

type record struct {
	value     []byte
	expiresAt time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory(c MemoryConfig) *Memory {
	if c.MaxSize == 0 {
		c.MaxSize = 10000
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Memory{
		values:  make(map[string]*record),
		windows: make(map[string][]time.Time),
		maxSize: c.MaxSize,
		now:     c.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	rec, ok := m.values[key]
	m.mu.RUnlock()

	if !ok {
		m.misses.Inc()
		return nil, ErrNotFound
	}
	if !rec.expiresAt.IsZero() && !m.now().Before(rec.expiresAt) {
		m.misses.Inc()
		m.mu.Lock()
		if cur, ok := m.values[key]; ok && cur == rec {
			delete(m.values, key)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	m.hits.Inc()
	out := make([]byte, len(rec.value))
	copy(out, rec.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	rec := &record{value: append([]byte(nil), value...)}
	if ttl > 0 {
		rec.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.values[key]; !exists && len(m.values) >= m.maxSize {
		m.evictLocked()
	}
	m.values[key] = rec
	m.sets.Inc()
	return nil
}

// evictLocked drops expired records, or one arbitrary record when nothing
// has expired.
func (m *Memory) evictLocked() {
	now := m.now()
	evicted := false
	for k, rec := range m.values {
		if !rec.expiresAt.IsZero() && !now.Before(rec.expiresAt) {
			delete(m.values, k)
			m.evictions.Inc()
			evicted = true
		}
	}
	if evicted {
		return
	}
	for k := range m.values {
		delete(m.values, k)
		m.evictions.Inc()
		break
	}
}

func (m *Memory) Admit(_ context.Context, key string, now time.Time, window time.Duration, limit int) (Admission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits, known := m.windows[key]
	if !known && len(m.windows) >= m.maxSize {
		m.sweepWindowsLocked(now, window)
	}
	kept := hits[:0]
	for _, ts := range hits {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}

	adm := Admission{Count: len(kept)}
	if len(kept) < limit {
		kept = append(kept, now)
		adm.Allowed = true
		adm.Count = len(kept)
	}
	if len(kept) > 0 {
		adm.Oldest = kept[0]
	}

	if len(kept) == 0 {
		delete(m.windows, key)
	} else {
		m.windows[key] = kept
	}
	return adm, nil
}

// sweepWindowsLocked drops windows whose newest hit is older than window.
func (m *Memory) sweepWindowsLocked(now time.Time, window time.Duration) {
	for k, hits := range m.windows {
		if len(hits) == 0 || now.Sub(hits[len(hits)-1]) >= window {
			delete(m.windows, k)
		}
	}
}

// Windows reports how many identities have a live rate-limit window.
func (m *Memory) Windows() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.windows)
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

func (m *Memory) Stats() Stats {
	return Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Sets:      m.sets.Load(),
		Evictions: m.evictions.Load(),
		Size:      m.Len(),
	}
}
