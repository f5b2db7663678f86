package analytics

import (
	"sync"

	"Areopagus/internal/domain/models"
	domsvc "Areopagus/internal/domain/service"
	"Areopagus/internal/services/features"
)

const (
	DefaultRegimeWindow    = 14
	DefaultRegimeThreshold = 0.015
)

// VolatilityRegimeDetector classifies the last N closes as WAR when their
// coefficient of variation exceeds the threshold. There is no hysteresis, so
// a series hovering at the threshold can flip every tick.
type VolatilityRegimeDetector struct {
	mu        sync.Mutex
	window    *features.Window
	threshold float64
	current   models.RegimeReading
}

type RegimeOption func(*VolatilityRegimeDetector)

func WithRegimeWindow(n int) RegimeOption {
	return func(d *VolatilityRegimeDetector) { d.window = features.NewWindow(n) }
}

func WithRegimeThreshold(th float64) RegimeOption {
	return func(d *VolatilityRegimeDetector) { d.threshold = th }
}

func NewVolatilityRegimeDetector(opts ...RegimeOption) *VolatilityRegimeDetector {
	d := &VolatilityRegimeDetector{
		window:    features.NewWindow(DefaultRegimeWindow),
		threshold: DefaultRegimeThreshold,
		current:   models.RegimeReading{State: models.RegimePeace},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Update records a close and reclassifies. Until the window is full the
// regime stays PEACE.
func (d *VolatilityRegimeDetector) Update(close float64) models.RegimeReading {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.window.Push(close)
	prev := d.current.State

	next := models.RegimeReading{State: models.RegimePeace, Samples: d.window.Len()}
	if d.window.Full() {
		next.Volatility = features.CoefficientOfVariation(d.window.Values())
		if next.Volatility > d.threshold {
			next.State = models.RegimeWar
		}
	}
	next.Changed = next.State != prev
	d.current = next
	return next
}

func (d *VolatilityRegimeDetector) Current() models.RegimeReading {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.current
	r.Changed = false
	return r
}

var _ domsvc.RegimeDetector = (*VolatilityRegimeDetector)(nil)
