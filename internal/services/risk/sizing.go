package risk

import "Areopagus/internal/domain/models"

const (
	DefaultWinRate      = 0.55
	DefaultWinLossRatio = 1.5
)

type sizingParams struct {
	winRate      float64
	winLossRatio float64
	book         *models.OrderBook
	side         models.Outcome
}

type SizingOption func(*sizingParams)

func WithWinRate(w float64) SizingOption {
	return func(p *sizingParams) { p.winRate = w }
}

func WithWinLossRatio(r float64) SizingOption {
	return func(p *sizingParams) { p.winLossRatio = r }
}

// WithOrderBook enables liquidity adjustment against the given side of book.
func WithOrderBook(book *models.OrderBook, side models.Outcome) SizingOption {
	return func(p *sizingParams) {
		p.book = book
		p.side = side
	}
}

// KellyFraction returns w - (1-w)/r, or 0 when r is 0.
func KellyFraction(winRate, winLossRatio float64) float64 {
	if winLossRatio == 0 {
		return 0
	}
	return winRate - (1-winRate)/winLossRatio
}

// CalculatePositionSize returns the amount of base asset to trade using
// half-Kelly capped at the max position size, shrunk against the order book
// when one is supplied.
func (m *Manager) CalculatePositionSize(balance, price float64, opts ...SizingOption) float64 {
	if price <= 0 {
		return 0
	}
	p := sizingParams{winRate: DefaultWinRate, winLossRatio: DefaultWinLossRatio, side: models.OutcomeBuy}
	for _, opt := range opts {
		opt(&p)
	}

	m.mu.RLock()
	stage := m.stageLocked(balance)
	maxPct := m.settings.MaxPositionSizePct
	m.mu.RUnlock()

	winRate := p.winRate
	switch stage {
	case models.TelosAcorn:
		winRate *= 0.9
	case models.TelosOak:
		winRate *= 0.95
	}

	half := KellyFraction(winRate, p.winLossRatio) * 0.5
	pct := half
	if maxPct < pct {
		pct = maxPct
	}
	if pct < 0 {
		pct = 0
	}

	amount := balance * pct / price
	if p.book != nil {
		return m.AdjustForLiquidity(amount, p.book, p.side)
	}
	return amount
}
