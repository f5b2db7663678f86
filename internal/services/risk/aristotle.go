package risk

import (
	"fmt"
	"strings"

	"Areopagus/internal/domain/models"
	domsvc "Areopagus/internal/domain/service"
)

const (
	defaultSizePct       = 0.1
	warMinConfidence     = 0.8
	knifeCatchMaxSizePct = 0.005
	KnifeCatch           = "Knife Catch"
)

// AristotleValidator is a stateless rule evaluator. Oversized trades are
// clamped rather than rejected; everything else is pass or fail.
type AristotleValidator struct{}

func NewAristotleValidator() *AristotleValidator { return &AristotleValidator{} }

func (AristotleValidator) Validate(signal models.Signal, rc models.RiskContext) (bool, string, models.Signal) {
	adjusted := signal
	var warnings []string

	size := signal.SizePct
	if size == 0 {
		size = defaultSizePct
	}
	if size > rc.MaxPositionSizePct {
		warnings = append(warnings, fmt.Sprintf("size reduced from %.2f%% to %.2f%%", size*100, rc.MaxPositionSizePct*100))
		size = rc.MaxPositionSizePct
		adjusted.SizePct = size
	}

	if rc.Regime == models.RegimeWar && signal.Confidence < warMinConfidence {
		if signal.Strategy != KnifeCatch {
			return false, "extreme volatility requires confidence > 0.8", adjusted
		}
		if size > knifeCatchMaxSizePct {
			return false, "knife catch requires small size during extreme volatility", adjusted
		}
	}

	if rc.LiquidityImpact > rc.MaxSlippagePct {
		return false, fmt.Sprintf("liquidity deficiency: impact %.2f%% exceeds %.2f%%", rc.LiquidityImpact*100, rc.MaxSlippagePct*100), adjusted
	}

	reason := "trade follows the rules"
	if len(warnings) > 0 {
		reason += "; warnings: " + strings.Join(warnings, "; ")
	}
	return true, reason, adjusted
}

var _ domsvc.TradeValidator = AristotleValidator{}
