package risk

import (
	"math"

	"Areopagus/internal/domain/models"
)

const (
	liquidityAttempts = 5
	liquidityShrink   = 0.8
)

// fill walks levels best-first and returns the volume-weighted average price
// of the part of amount that could be filled and the unfilled remainder.
func fill(levels []models.Level, amount float64) (avg, remaining float64) {
	remaining = amount
	cost := 0.0
	for _, l := range levels {
		if remaining <= 0 {
			break
		}
		f := math.Min(remaining, l.Volume)
		if f <= 0 {
			continue
		}
		cost += f * l.Price
		remaining -= f
	}
	filled := amount - remaining
	if filled <= 0 {
		return levels[0].Price, remaining
	}
	return cost / filled, remaining
}

// EstimateImpact returns the relative distance between the average fill price
// for amount and the best price on the taker side of book. An empty side
// reads as 1 (no liquidity at all).
func EstimateImpact(amount float64, book *models.OrderBook, side models.Outcome) float64 {
	levels := book.Side(side)
	if len(levels) == 0 || levels[0].Price <= 0 {
		return 1
	}
	if amount <= 0 {
		return 0
	}
	best := levels[0].Price
	avg, _ := fill(levels, amount)
	return math.Abs(avg-best) / best
}

// AdjustForLiquidity shrinks amount by 20% per attempt, at most five times,
// until it can be filled completely within the slippage limit. This is a
// best-effort heuristic: after the last attempt the remaining candidate is
// returned even if it still violates the limit.
func (m *Manager) AdjustForLiquidity(amount float64, book *models.OrderBook, side models.Outcome) float64 {
	if amount <= 0 {
		return 0
	}
	levels := book.Side(side)
	if len(levels) == 0 || levels[0].Price <= 0 {
		return 0
	}

	maxImpact := m.Settings().MaxSlippagePct
	best := levels[0].Price

	candidate := amount
	for i := 0; i < liquidityAttempts; i++ {
		avg, remaining := fill(levels, candidate)
		impact := math.Abs(avg-best) / best
		if impact <= maxImpact && remaining <= 0 {
			return candidate
		}
		candidate *= liquidityShrink
	}
	return candidate
}
