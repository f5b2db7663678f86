package risk

import "Areopagus/internal/domain/models"

// CheckExitConditions classifies an open position against the current
// stop-loss and take-profit thresholds. A non-positive entry price or an
// unknown side yields ExitNone.
func (m *Manager) CheckExitConditions(current, entry float64, side models.Outcome) models.ExitReason {
	if entry <= 0 {
		return models.ExitNone
	}
	s := m.Settings()
	return ClassifyExit(current, entry, side, s.StopLossPct, s.TakeProfitPct)
}

// ClassifyExit is the pure form of CheckExitConditions.
func ClassifyExit(current, entry float64, side models.Outcome, stopLoss, takeProfit float64) models.ExitReason {
	if entry <= 0 {
		return models.ExitNone
	}
	var pct float64
	switch side {
	case models.OutcomeBuy:
		pct = (current - entry) / entry
	case models.OutcomeSell:
		pct = (entry - current) / entry
	default:
		return models.ExitNone
	}
	switch {
	case pct <= -stopLoss:
		return models.ExitStopLoss
	case pct >= takeProfit:
		return models.ExitTakeProfit
	}
	return models.ExitNone
}
