package service

import (
	"context"

	"Areopagus/internal/domain/models"
)

// Agent is an independent analysis agent that casts at most one vote per candle.
// A nil vote with a nil error means the agent abstains for this tick.
type Agent interface {
	Name() string
	OnCandle(ctx context.Context, candle models.Candle) (*models.Vote, error)
}

// RegimeDetector classifies recent price behaviour into a market regime.
type RegimeDetector interface {
	Update(close float64) models.RegimeReading
	Current() models.RegimeReading
}

// TradeValidator applies rule-based safety constraints to a proposed trade.
type TradeValidator interface {
	Validate(signal models.Signal, rc models.RiskContext) (ok bool, reason string, adjusted models.Signal)
}
