package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
	used    time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

type MemoryOption func(*MemoryStore)

// WithMaxEntries bounds the store; the least recently used entry is evicted
// to make room.
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryStore) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithSweepInterval sets how often expired entries are purged. Zero turns
// the sweeper off and expiry is then only noticed on access.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.sweepEvery = d }
}

// MemoryStore is the in-process Store used when no Redis is configured.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int
	sweepEvery time.Duration
	now        func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		maxEntries: 1024,
		sweepEvery: time.Minute,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sweepEvery > 0 {
		go m.sweep()
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	now := m.now()
	e, ok := m.entries[key]
	if ok && e.expired(now) {
		delete(m.entries, key)
		ok = false
	}
	if !ok {
		m.mu.Unlock()
		return ErrMiss
	}
	e.used = now
	data := e.value
	m.mu.Unlock()
	return decode(data, dest)
}

func (m *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, data, ttl)
	return nil
}

func (m *MemoryStore) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !e.expired(m.now()) {
		return false, nil
	}
	m.put(key, []byte("1"), ttl)
	return true, nil
}

func (m *MemoryStore) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of entries, expired ones included until swept.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// put requires m.mu.
func (m *MemoryStore) put(key string, data []byte, ttl time.Duration) {
	now := m.now()
	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.maxEntries {
		m.evictOldest()
	}
	e := &memoryEntry{value: data, used: now}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.entries[key] = e
}

func (m *MemoryStore) evictOldest() {
	var (
		victim string
		oldest time.Time
	)
	for k, e := range m.entries {
		if victim == "" || e.used.Before(oldest) {
			victim, oldest = k, e.used
		}
	}
	delete(m.entries, victim)
}

func (m *MemoryStore) sweep() {
	t := time.NewTicker(m.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-t.C:
			m.mu.Lock()
			now := m.now()
			for k, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
