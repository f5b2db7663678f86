package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"Areopagus/internal/domain/repository"
	"Areopagus/pkg/logger"
	"Areopagus/pkg/metrics"
)

const (
	defaultWeight = 1.0
	minWeight     = 0.1
	maxWeight     = 2.0
	meritAlpha    = 0.3
)

// Score is one agent's realized outcome for an evaluated vote: 1 for a hit, 0 for a miss.
type Score struct {
	Agent string
	Value float64
}

// MeritBook owns the trust-weight table. It is the single writer for weights
// shared by every desk: updates and persistence happen under one mutex.
type MeritBook struct {
	mu      sync.Mutex
	weights map[string]float64
	store   repository.WeightStore
	logger  *logger.Logger
	metrics repository.Metrics
	now     func() time.Time
}

type MeritOption func(*MeritBook)

func WithMeritLogger(l *logger.Logger) MeritOption {
	return func(b *MeritBook) { b.logger = l }
}

func WithMeritMetrics(m repository.Metrics) MeritOption {
	return func(b *MeritBook) { b.metrics = m }
}

func WithMeritClock(now func() time.Time) MeritOption {
	return func(b *MeritBook) { b.now = now }
}

// NewMeritBook registers agents at the default weight. store may be nil, in
// which case nothing is loaded or persisted.
func NewMeritBook(store repository.WeightStore, agents []string, opts ...MeritOption) *MeritBook {
	b := &MeritBook{
		weights: make(map[string]float64, len(agents)),
		store:   store,
		logger:  logger.Nop(),
		metrics: metrics.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, a := range agents {
		b.weights[a] = defaultWeight
	}
	return b
}

// Load replaces the weights of registered agents with the persisted values.
// Weights for agents that are not registered are ignored. A store that has
// never been written is not an error.
func (b *MeritBook) Load(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	snap, err := b.store.Load(ctx)
	if errors.Is(err, repository.ErrWeightsNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	loaded := 0
	for agent, w := range snap.Weights {
		if _, ok := b.weights[agent]; !ok {
			continue
		}
		b.weights[agent] = clampWeight(w)
		b.metrics.RecordAgentWeight(agent, b.weights[agent])
		loaded++
	}
	b.logger.Info("loaded agent weights", logger.Int("agents", loaded), logger.String("saved_at", snap.Timestamp.Format(time.RFC3339)))
	return nil
}

// Weight returns the trust weight of agent, 1.0 when unknown.
func (b *MeritBook) Weight(agent string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.weights[agent]; ok {
		return w
	}
	return defaultWeight
}

// Snapshot returns a copy of the table.
func (b *MeritBook) Snapshot() map[string]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]float64, len(b.weights))
	for k, v := range b.weights {
		out[k] = v
	}
	return out
}

// Agents returns the agents currently in the table, sorted.
func (b *MeritBook) Agents() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.weights))
	for k := range b.weights {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Apply folds one evaluation pass into the table with an EMA and persists
// the table once if anything changed. Persistence failures are logged; the
// in-memory table stays authoritative.
func (b *MeritBook) Apply(ctx context.Context, scores []Score) int {
	if len(scores) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range scores {
		old, ok := b.weights[s.Agent]
		if !ok {
			old = defaultWeight
		}
		w := clampWeight(meritAlpha*s.Value + (1-meritAlpha)*old)
		b.weights[s.Agent] = w
		b.metrics.RecordAgentWeight(s.Agent, w)
		b.logger.Debug("agent weight updated", logger.String("agent", s.Agent), logger.Float64("score", s.Value), logger.Float64("weight", w))
	}

	b.persistLocked(ctx)
	return len(scores)
}

func (b *MeritBook) persistLocked(ctx context.Context) {
	if b.store == nil {
		return
	}
	snap := repository.WeightSnapshot{Timestamp: b.now().UTC(), Weights: make(map[string]float64, len(b.weights))}
	for k, v := range b.weights {
		snap.Weights[k] = v
	}
	if err := b.store.Save(ctx, snap); err != nil {
		b.metrics.RecordError("weights_save")
		b.logger.Error("failed to persist agent weights", logger.Error(err))
	}
}

func clampWeight(w float64) float64 {
	if w != w { // NaN
		return defaultWeight
	}
	if w < minWeight {
		return minWeight
	}
	if w > maxWeight {
		return maxWeight
	}
	return w
}
