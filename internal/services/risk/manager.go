package risk

import (
	"fmt"
	"math"
	"sync"

	"Areopagus/internal/domain/models"
	"Areopagus/internal/domain/repository"
	domsvc "Areopagus/internal/domain/service"
	"Areopagus/pkg/logger"
	"Areopagus/pkg/metrics"
)

// Rules reported on a rejected Verdict and in metrics.
const (
	RuleKillSwitch = "kill_switch"
	RuleAristotle  = "aristotle"
	RuleSlippage   = "slippage"
	RuleTelos      = "telos"
)

const acornMinConfidence = 0.7

// Manager is the stateful risk gate: thresholds, kill switch and Telos stage.
// ValidateTrade and the sizing helpers only read state and are safe to call
// concurrently; UpdateBalance and UpdateSettings serialize on the mutex.
type Manager struct {
	mu       sync.RWMutex
	settings models.RiskSettings
	telos    *TelosSelector
	initial  float64

	kill      KillSwitch
	validator domsvc.TradeValidator
	logger    *logger.Logger
	metrics   repository.Metrics
}

type Option func(*Manager)

func WithSettings(s models.RiskSettings) Option {
	return func(m *Manager) { m.settings = s }
}

func WithValidator(v domsvc.TradeValidator) Option {
	return func(m *Manager) { m.validator = v }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithMetrics(r repository.Metrics) Option {
	return func(m *Manager) { m.metrics = r }
}

// DefaultSettings returns the stock thresholds.
func DefaultSettings() models.RiskSettings {
	return models.RiskSettings{
		MaxDrawdownPct:     0.10,
		MaxPositionSizePct: 0.05,
		MaxSlippagePct:     0.02,
		StopLossPct:        0.05,
		TakeProfitPct:      0.10,
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		settings:  DefaultSettings(),
		validator: NewAristotleValidator(),
		logger:    logger.Nop(),
		metrics:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Settings() models.RiskSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// UpdateSettings applies the recognised keys immediately. Unknown keys and
// non-finite or negative values are ignored. It returns the keys applied.
func (m *Manager) UpdateSettings(values map[string]float64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	applied := make([]string, 0, len(values))
	for key, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			m.logger.Warn("ignoring invalid risk setting", logger.String("key", key), logger.Float64("value", v))
			continue
		}
		switch key {
		case models.SettingMaxDrawdownPct:
			m.settings.MaxDrawdownPct = v
		case models.SettingMaxPositionSizePct:
			m.settings.MaxPositionSizePct = v
		case models.SettingMaxSlippagePct:
			m.settings.MaxSlippagePct = v
		case models.SettingStopLossPct:
			m.settings.StopLossPct = v
		case models.SettingTakeProfitPct:
			m.settings.TakeProfitPct = v
		default:
			continue
		}
		applied = append(applied, key)
	}
	if len(applied) > 0 {
		m.logger.Info("risk settings updated", logger.Strings("keys", applied), logger.Any("settings", m.settings))
	}
	return applied
}

// UpdateBalance records the latest equity. The first balance ever observed
// becomes the starting capital. A drawdown at or beyond the limit trips the
// kill switch permanently.
func (m *Manager) UpdateBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.telos == nil {
		m.initial = balance
		m.telos = NewTelosSelector(balance)
		m.logger.Info("starting capital captured", logger.Float64("balance", balance))
	}
	if m.initial <= 0 {
		return
	}

	drawdown := (m.initial - balance) / m.initial
	if drawdown >= m.settings.MaxDrawdownPct && m.kill.Trip() {
		m.logger.Critical("kill switch activated",
			logger.Float64("drawdown", drawdown),
			logger.Float64("limit", m.settings.MaxDrawdownPct),
			logger.Float64("initial_balance", m.initial),
			logger.Float64("balance", balance),
		)
		m.metrics.RecordKillSwitch(true)
	}
}

func (m *Manager) Killed() bool { return m.kill.Killed() }

func (m *Manager) KillSwitchState() string { return m.kill.State() }

// InitialBalance returns the captured starting capital, if any.
func (m *Manager) InitialBalance() (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initial, m.telos != nil
}

// Stage returns the Telos stage for balance, or TelosUnknown before any
// balance has been observed.
func (m *Manager) Stage(balance float64) models.TelosStage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stageLocked(balance)
}

func (m *Manager) stageLocked(balance float64) models.TelosStage {
	if m.telos == nil {
		return models.TelosUnknown
	}
	return m.telos.Stage(balance)
}

// ValidateTrade runs the gate in order: kill switch, rule validator, slippage
// against the signal's reference price, Telos capital preservation. The
// returned Verdict carries the adjusted signal.
func (m *Manager) ValidateTrade(signal models.Signal, balance, price float64) models.Verdict {
	if m.kill.Killed() {
		return models.Verdict{Reason: "kill switch is active", Rule: RuleKillSwitch, Signal: signal}
	}

	m.mu.RLock()
	s := m.settings
	stage := m.stageLocked(balance)
	m.mu.RUnlock()

	rc := models.RiskContext{
		MaxPositionSizePct: s.MaxPositionSizePct,
		MaxSlippagePct:     s.MaxSlippagePct,
		Regime:             signal.Regime,
		Volatility:         signal.Volatility,
		LiquidityImpact:    signal.LiquidityImpact,
	}
	if rc.Regime == "" {
		rc.Regime = models.RegimePeace
	}

	ok, reason, adjusted := m.validator.Validate(signal, rc)
	if !ok {
		return models.Verdict{Reason: reason, Rule: RuleAristotle, Stage: stage, Signal: adjusted}
	}

	if adjusted.Price > 0 {
		diff := math.Abs(price-adjusted.Price) / adjusted.Price
		if diff > s.MaxSlippagePct {
			return models.Verdict{
				Reason: fmt.Sprintf("price moved %.2f%% from signal, limit %.2f%%", diff*100, s.MaxSlippagePct*100),
				Rule:   RuleSlippage,
				Stage:  stage,
				Signal: adjusted,
			}
		}
	}

	if stage == models.TelosAcorn && signal.Confidence < acornMinConfidence {
		return models.Verdict{Reason: "capital preservation: confidence too low for ACORN stage", Rule: RuleTelos, Stage: stage, Signal: adjusted}
	}

	return models.Verdict{Approved: true, Reason: reason, Stage: stage, Signal: adjusted}
}
