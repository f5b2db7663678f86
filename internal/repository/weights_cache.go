package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domrepo "Areopagus/internal/domain/repository"
	"Areopagus/pkg/cache"
)

const (
	DefaultWeightsKey = "council:weights"
	weightsLockTTL    = 5 * time.Second
)

// ErrWeightsLocked is returned when another process holds the weights write lock.
var ErrWeightsLocked = errors.New("weights: write lock held elsewhere")

// CacheWeightStore keeps the snapshot under one key of a cache.Store (Redis
// in production). Saves take a short lock so concurrent engines do not interleave.
type CacheWeightStore struct {
	cache cache.Store
	key   string
}

var _ domrepo.WeightStore = (*CacheWeightStore)(nil)

func NewCacheWeightStore(c cache.Store, key string) *CacheWeightStore {
	if key == "" {
		key = DefaultWeightsKey
	}
	return &CacheWeightStore{cache: c, key: key}
}

func (s *CacheWeightStore) Load(ctx context.Context) (domrepo.WeightSnapshot, error) {
	var snap domrepo.WeightSnapshot
	err := s.cache.Get(ctx, s.key, &snap)
	if errors.Is(err, cache.ErrMiss) {
		return snap, domrepo.ErrWeightsNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("load weights from cache: %w", err)
	}
	return snap, nil
}

func (s *CacheWeightStore) Save(ctx context.Context, snap domrepo.WeightSnapshot) error {
	lock := s.key + ":lock"
	ok, err := s.cache.TryLock(ctx, lock, weightsLockTTL)
	if err != nil {
		return fmt.Errorf("lock weights: %w", err)
	}
	if !ok {
		return ErrWeightsLocked
	}
	defer s.cache.Unlock(ctx, lock)

	if err := s.cache.Set(ctx, s.key, snap, 0); err != nil {
		return fmt.Errorf("save weights to cache: %w", err)
	}
	return nil
}
