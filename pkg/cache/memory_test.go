package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...MemoryOption) (*MemoryStore, *manualClock) {
	t.Helper()
	clock := &manualClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(append([]MemoryOption{WithSweepInterval(0)}, opts...)...)
	s.now = clock.now
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func TestMemoryStoreStoresStructsAsJSON(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	type snapshot struct {
		Weights map[string]float64 `json:"weights"`
	}
	require.NoError(t, s.Set(ctx, "w", snapshot{Weights: map[string]float64{"trend": 1.5}}, 0))

	var got snapshot
	require.NoError(t, s.Get(ctx, "w", &got))
	assert.Equal(t, 1.5, got.Weights["trend"])

	var raw string
	require.NoError(t, s.Get(ctx, "w", &raw))
	assert.JSONEq(t, `{"weights":{"trend":1.5}}`, raw)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	var v string
	assert.ErrorIs(t, s.Get(ctx, "nope", &v), ErrMiss)

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, s.Set(ctx, "forever", "v", 0))
	clock.advance(time.Minute)

	assert.ErrorIs(t, s.Get(ctx, "k", &v), ErrMiss)
	require.NoError(t, s.Get(ctx, "forever", &v))
	assert.Equal(t, "v", v)
}

func TestMemoryStoreLock(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "lock", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryLock(ctx, "lock", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Unlock(ctx, "lock"))
	ok, _ = s.TryLock(ctx, "lock", time.Second)
	assert.True(t, ok)

	clock.advance(time.Second)
	ok, _ = s.TryLock(ctx, "lock", time.Second)
	assert.True(t, ok, "an expired lock can be retaken")
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	s, clock := newTestStore(t, WithMaxEntries(2))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	clock.advance(time.Second)
	require.NoError(t, s.Set(ctx, "b", "2", 0))
	clock.advance(time.Second)

	var v string
	require.NoError(t, s.Get(ctx, "a", &v))
	clock.advance(time.Second)
	require.NoError(t, s.Set(ctx, "c", "3", 0))

	assert.Equal(t, 2, s.Len())
	assert.ErrorIs(t, s.Get(ctx, "b", &v), ErrMiss)
	assert.NoError(t, s.Get(ctx, "a", &v))
	assert.NoError(t, s.Get(ctx, "c", &v))
}
