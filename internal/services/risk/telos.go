package risk

import "Areopagus/internal/domain/models"

const (
	acornBelow   = 0.95
	saplingBelow = 1.15
)

// TelosSelector maps equity relative to starting capital onto a risk posture.
type TelosSelector struct {
	initial float64
}

func NewTelosSelector(initialBalance float64) *TelosSelector {
	return &TelosSelector{initial: initialBalance}
}

func (t *TelosSelector) Stage(balance float64) models.TelosStage {
	if t.initial <= 0 {
		return models.TelosAcorn
	}
	ratio := balance / t.initial
	switch {
	case ratio < acornBelow:
		return models.TelosAcorn
	case ratio < saplingBelow:
		return models.TelosSapling
	default:
		return models.TelosOak
	}
}
