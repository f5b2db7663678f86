package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"Areopagus/internal/domain/models"
)

func TestCalculatePositionSizeHalfKellyCapped(t *testing.T) {
	m := NewManager()
	// kelly 0.25, half 0.125, capped at 0.05
	amount := m.CalculatePositionSize(10000, 100, WithWinRate(0.55), WithWinLossRatio(1.5))
	assert.InDelta(t, 5.0, amount, 1e-9)
}

func TestCalculatePositionSizeUncapped(t *testing.T) {
	m := NewManager(WithSettings(models.RiskSettings{MaxPositionSizePct: 0.5, MaxSlippagePct: 0.02, MaxDrawdownPct: 0.1}))
	amount := m.CalculatePositionSize(10000, 100)
	assert.InDelta(t, 12.5, amount, 1e-9)
}

func TestCalculatePositionSizeEdgeCases(t *testing.T) {
	m := NewManager()
	assert.Equal(t, 0.0, m.CalculatePositionSize(10000, 0))
	assert.Equal(t, 0.0, m.CalculatePositionSize(10000, -1))
	assert.Equal(t, 0.0, m.CalculatePositionSize(10000, 100, WithWinLossRatio(0)))
	// negative kelly floors at zero
	assert.Equal(t, 0.0, m.CalculatePositionSize(10000, 100, WithWinRate(0.2)))
}

func TestCalculatePositionSizeTelosAdjustsWinRate(t *testing.T) {
	m := NewManager(WithSettings(models.RiskSettings{MaxPositionSizePct: 1, MaxSlippagePct: 0.02, MaxDrawdownPct: 0.9}))
	m.UpdateBalance(10000)

	sapling := m.CalculatePositionSize(10000, 100)
	acorn := m.CalculatePositionSize(9000, 100)
	oak := m.CalculatePositionSize(12000, 100)

	// win rate 0.495 -> kelly 0.16, half 0.08
	assert.InDelta(t, 9000*KellyFraction(0.495, 1.5)*0.5/100, acorn, 1e-9)
	assert.InDelta(t, 12000*KellyFraction(0.5225, 1.5)*0.5/100, oak, 1e-9)
	assert.InDelta(t, 12.5, sapling, 1e-9)
}

func TestKellyFraction(t *testing.T) {
	assert.InDelta(t, 0.25, KellyFraction(0.55, 1.5), 1e-12)
	assert.Equal(t, 0.0, KellyFraction(0.55, 0))
}

func TestCalculatePositionSizeWithOrderBook(t *testing.T) {
	m := NewManager()
	book := &models.OrderBook{
		Asks: []models.Level{{Price: 100, Volume: 50}},
		Bids: []models.Level{{Price: 99, Volume: 50}},
	}
	amount := m.CalculatePositionSize(10000, 100, WithOrderBook(book, models.OutcomeBuy))
	assert.InDelta(t, 5.0, amount, 1e-9)
}
