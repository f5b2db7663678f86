package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Areopagus/internal/domain/repository"
)

type memWeights struct {
	mu    sync.Mutex
	snap  *repository.WeightSnapshot
	saves int
	err   error
}

func (m *memWeights) Load(context.Context) (repository.WeightSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return repository.WeightSnapshot{}, repository.ErrWeightsNotFound
	}
	return *m.snap, nil
}

func (m *memWeights) Save(_ context.Context, s repository.WeightSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.snap = &s
	return nil
}

func TestMeritLoadOnlyRegisteredAgents(t *testing.T) {
	store := &memWeights{snap: &repository.WeightSnapshot{Weights: map[string]float64{
		"trend":   1.7,
		"volume":  5.0,
		"retired": 0.3,
	}}}
	b := NewMeritBook(store, []string{"trend", "volume", "oscillator"})

	require.NoError(t, b.Load(context.Background()))
	assert.Equal(t, 1.7, b.Weight("trend"))
	assert.Equal(t, maxWeight, b.Weight("volume"))
	assert.Equal(t, defaultWeight, b.Weight("oscillator"))
	assert.Equal(t, []string{"oscillator", "trend", "volume"}, b.Agents())
	assert.NotContains(t, b.Snapshot(), "retired")
}

func TestMeritLoadMissingStoreIsNotError(t *testing.T) {
	b := NewMeritBook(&memWeights{}, []string{"trend"})
	require.NoError(t, b.Load(context.Background()))
	assert.Equal(t, defaultWeight, b.Weight("trend"))

	require.NoError(t, NewMeritBook(nil, nil).Load(context.Background()))
}

func TestMeritApplyEMAAndPersistOnce(t *testing.T) {
	store := &memWeights{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewMeritBook(store, []string{"a", "b"}, WithMeritClock(func() time.Time { return fixed }))

	n := b.Apply(context.Background(), []Score{{Agent: "a", Value: 0}, {Agent: "b", Value: 1}})
	assert.Equal(t, 2, n)
	assert.InDelta(t, 0.7, b.Weight("a"), 1e-12)
	assert.InDelta(t, 1.0, b.Weight("b"), 1e-12)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, fixed, store.snap.Timestamp)

	assert.Zero(t, b.Apply(context.Background(), nil))
	assert.Equal(t, 1, store.saves)
}

func TestMeritWeightsStayBounded(t *testing.T) {
	b := NewMeritBook(nil, []string{"a"})
	for i := 0; i < 200; i++ {
		b.Apply(context.Background(), []Score{{Agent: "a", Value: 0}})
	}
	assert.Equal(t, minWeight, b.Weight("a"))

	for i := 0; i < 200; i++ {
		b.Apply(context.Background(), []Score{{Agent: "a", Value: 1}})
		w := b.Weight("a")
		assert.GreaterOrEqual(t, w, minWeight)
		assert.LessOrEqual(t, w, maxWeight)
	}
}

func TestMeritSaveFailureKeepsMemory(t *testing.T) {
	store := &memWeights{err: errors.New("disk full")}
	b := NewMeritBook(store, []string{"a"})
	b.Apply(context.Background(), []Score{{Agent: "a", Value: 0}})
	assert.InDelta(t, 0.7, b.Weight("a"), 1e-12)
}

func TestClampWeight(t *testing.T) {
	assert.Equal(t, defaultWeight, clampWeight(math.NaN()))
	assert.Equal(t, minWeight, clampWeight(-3))
	assert.Equal(t, maxWeight, clampWeight(math.Inf(1)))
	assert.Equal(t, 1.3, clampWeight(1.3))
}
