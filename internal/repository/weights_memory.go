package repository

import (
	"context"
	"sync"

	domrepo "Areopagus/internal/domain/repository"
)

// MemoryWeightStore holds the snapshot in process. Used by replay and tests.
type MemoryWeightStore struct {
	mu   sync.Mutex
	snap *domrepo.WeightSnapshot
}

var _ domrepo.WeightStore = (*MemoryWeightStore)(nil)

func NewMemoryWeightStore() *MemoryWeightStore {
	return &MemoryWeightStore{}
}

func (s *MemoryWeightStore) Load(_ context.Context) (domrepo.WeightSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return domrepo.WeightSnapshot{}, domrepo.ErrWeightsNotFound
	}
	return copySnapshot(*s.snap), nil
}

func (s *MemoryWeightStore) Save(_ context.Context, snap domrepo.WeightSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copySnapshot(snap)
	s.snap = &cp
	return nil
}

func copySnapshot(s domrepo.WeightSnapshot) domrepo.WeightSnapshot {
	out := domrepo.WeightSnapshot{Timestamp: s.Timestamp, Weights: make(map[string]float64, len(s.Weights))}
	for k, v := range s.Weights {
		out.Weights[k] = v
	}
	return out
}
