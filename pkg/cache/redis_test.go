package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	kv := newFakeKV()
	s := newRedisStore(kv, "areopagus")
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "council:weights", map[string]float64{"trend": 1.1}, -time.Second))
	assert.JSONEq(t, `{"trend":1.1}`, kv.values["areopagus:council:weights"])
	assert.Zero(t, kv.ttls["areopagus:council:weights"])

	var got map[string]float64
	require.NoError(t, s.Get(ctx, "council:weights", &got))
	assert.Equal(t, 1.1, got["trend"])

	var v string
	assert.ErrorIs(t, s.Get(ctx, "missing", &v), ErrMiss)
}

func TestRedisStoreLock(t *testing.T) {
	kv := newFakeKV()
	s := newRedisStore(kv, "")
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "w:lock", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, kv.ttls["w:lock"])

	ok, err = s.TryLock(ctx, "w:lock", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Unlock(ctx, "w:lock"))
	assert.NotContains(t, kv.values, "w:lock")
}
