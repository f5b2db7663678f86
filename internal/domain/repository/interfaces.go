package repository

import (
	"context"
	"errors"
	"time"

	"Areopagus/internal/domain/models"
)

// ErrWeightsNotFound is returned by a WeightStore that has never been written.
var ErrWeightsNotFound = errors.New("weights: snapshot not found")

// WeightSnapshot is the persisted form of the trust-weight table.
type WeightSnapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Weights   map[string]float64 `json:"weights"`
}

// WeightStore loads and overwrites the trust-weight table.
type WeightStore interface {
	Load(ctx context.Context) (WeightSnapshot, error)
	Save(ctx context.Context, snap WeightSnapshot) error
}

// IntentPublisher hands approved order intents to the execution layer.
type IntentPublisher interface {
	PublishIntent(ctx context.Context, intent *models.OrderIntent) error
	Close() error
}

// DecisionStore keeps an audit trail of council decisions and risk verdicts.
type DecisionStore interface {
	StoreDecision(ctx context.Context, rec *models.DecisionRecord) error
	Health(ctx context.Context) error
	Close() error
}

// BalanceSource reports the equity available for sizing.
type BalanceSource interface {
	Balance(ctx context.Context, symbol string, side models.Outcome) (float64, error)
}

// OrderBookSource returns the latest depth snapshot for a symbol, or nil when none is known.
type OrderBookSource interface {
	OrderBook(ctx context.Context, symbol string) (*models.OrderBook, error)
}

type Metrics interface {
	RecordDecision(symbol string, side models.Outcome, method models.VotingMethod)
	RecordRejection(symbol, stage string)
	RecordIntent(symbol string, side models.Outcome)
	RecordAgentError(agent string)
	RecordAgentWeight(agent string, weight float64)
	RecordRegime(symbol string, regime models.Regime, volatility float64)
	RecordKillSwitch(killed bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
