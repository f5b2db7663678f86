package di

import (
	"github.com/prometheus/client_golang/prometheus"

	"Areopagus/internal/repository"
	"Areopagus/internal/usecase"
	"Areopagus/pkg/config"
	applogger "Areopagus/pkg/logger"
	"Areopagus/pkg/metrics"
)

// ReplayDeps is an engine wired to in-memory sinks for offline runs.
type ReplayDeps struct {
	Engine  *usecase.Engine
	Logger  *applogger.Logger
	Intents *repository.MemoryIntentPublisher
	Audit   *repository.MemoryDecisionStore
}

// InitializeReplay builds the engine with the configured councils and risk
// settings but no external infrastructure: weights, intents and decisions
// stay in memory and metrics are discarded.
func InitializeReplay(cfg *config.Config) (*ReplayDeps, error) {
	l, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	m := metrics.Nop{}
	merit := ProvideMeritBook(cfg, repository.NewMemoryWeightStore(), l, m)
	councils, err := ProvideCouncils(cfg, merit, l, m, ProvideRemoteMetrics(prometheus.NewRegistry()))
	if err != nil {
		return nil, err
	}
	intents := repository.NewMemoryIntentPublisher()
	audit := repository.NewMemoryDecisionStore()
	engine, err := ProvideEngine(cfg, councils, ProvideRiskManager(cfg, l, m), merit,
		ProvideBalanceSource(cfg), ProvideOrderBookCache(cfg), intents, audit, l, m)
	if err != nil {
		return nil, err
	}
	return &ReplayDeps{Engine: engine, Logger: l, Intents: intents, Audit: audit}, nil
}
