package models

// Regime is the volatility-derived market state.
type Regime string

const (
	RegimePeace Regime = "PEACE"
	RegimeWar   Regime = "WAR"
)

// RegimeReading is the detector output after observing a close.
type RegimeReading struct {
	State      Regime  `json:"state"`
	Volatility float64 `json:"volatility"`
	Samples    int     `json:"samples"`
	Changed    bool    `json:"changed"`
}

// TelosStage is the staged risk posture derived from equity relative to starting capital.
type TelosStage string

const (
	TelosUnknown TelosStage = ""
	TelosAcorn   TelosStage = "ACORN"
	TelosSapling TelosStage = "SAPLING"
	TelosOak     TelosStage = "OAK"
)

// ExitReason classifies an open position against stop-loss and take-profit bounds.
type ExitReason string

const (
	ExitNone       ExitReason = "none"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
)

// Signal is a trade proposal submitted to the risk gate. Zero SizePct means
// the proposer did not specify a size.
type Signal struct {
	Side            Outcome `json:"side" validate:"required,oneof=buy sell"`
	Price           float64 `json:"price,omitempty" validate:"gte=0"`
	Confidence      float64 `json:"confidence" validate:"gte=0,lte=1"`
	Strategy        string  `json:"strategy,omitempty"`
	SizePct         float64 `json:"size_pct,omitempty" validate:"gte=0,lte=1"`
	Regime          Regime  `json:"regime,omitempty" validate:"omitempty,oneof=PEACE WAR"`
	Volatility      float64 `json:"volatility,omitempty" validate:"gte=0"`
	LiquidityImpact float64 `json:"liquidity_impact,omitempty" validate:"gte=0"`
}

// RiskContext is assembled for every validation call from the current thresholds
// and the signal's own market annotations.
type RiskContext struct {
	MaxPositionSizePct float64
	MaxSlippagePct     float64
	Regime             Regime
	Volatility         float64
	LiquidityImpact    float64
}

// RiskSettings are the externally reconfigurable thresholds of the risk gate.
type RiskSettings struct {
	MaxDrawdownPct     float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct" default:"0.10"`
	MaxPositionSizePct float64 `json:"max_position_size_pct" yaml:"max_position_size_pct" default:"0.05"`
	MaxSlippagePct     float64 `json:"max_slippage_pct" yaml:"max_slippage_pct" default:"0.02"`
	StopLossPct        float64 `json:"stop_loss_pct" yaml:"stop_loss_pct" default:"0.05"`
	TakeProfitPct      float64 `json:"take_profit_pct" yaml:"take_profit_pct" default:"0.10"`
}

// Setting keys recognised by the risk gate when updating settings.
const (
	SettingMaxDrawdownPct     = "MAX_DRAWDOWN_PCT"
	SettingMaxPositionSizePct = "MAX_POSITION_SIZE_PCT"
	SettingMaxSlippagePct     = "MAX_SLIPPAGE_PCT"
	SettingStopLossPct        = "STOP_LOSS_PCT"
	SettingTakeProfitPct      = "TAKE_PROFIT_PCT"
)

// Verdict is the risk gate's answer for one signal. Signal carries any
// adjustments applied during validation; Rule names the check that rejected it.
type Verdict struct {
	Approved bool       `json:"approved"`
	Reason   string     `json:"reason"`
	Rule     string     `json:"rule,omitempty"`
	Stage    TelosStage `json:"stage,omitempty"`
	Signal   Signal     `json:"signal"`
}
