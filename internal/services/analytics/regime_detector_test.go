package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"Areopagus/internal/domain/models"
)

func TestRegimeDetectorHoldsPeaceDuringWarmup(t *testing.T) {
	d := NewVolatilityRegimeDetector()
	// wildly volatile but fewer than 14 samples
	for i := 0; i < 13; i++ {
		price := 100.0
		if i%2 == 1 {
			price = 150
		}
		r := d.Update(price)
		assert.Equal(t, models.RegimePeace, r.State)
		assert.Equal(t, 0.0, r.Volatility)
	}
	assert.Equal(t, 13, d.Current().Samples)
}

func TestRegimeDetectorCrossesIntoWarAndBack(t *testing.T) {
	d := NewVolatilityRegimeDetector()
	for i := 0; i < 14; i++ {
		d.Update(100)
	}
	assert.Equal(t, models.RegimePeace, d.Current().State)

	// alternating 95/105 around a mean of 100 gives cv 0.05
	var r models.RegimeReading
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			r = d.Update(95)
		} else {
			r = d.Update(105)
		}
	}
	assert.Equal(t, models.RegimeWar, r.State)
	assert.InDelta(t, 0.05, r.Volatility, 1e-9)

	sawChangeToPeace := false
	for i := 0; i < 14; i++ {
		r = d.Update(100)
		if r.Changed && r.State == models.RegimePeace {
			sawChangeToPeace = true
		}
	}
	assert.True(t, sawChangeToPeace)
	assert.Equal(t, models.RegimePeace, r.State)
	assert.Equal(t, 0.0, r.Volatility)
}

func TestRegimeDetectorThresholdIsStrict(t *testing.T) {
	// cv exactly equal to the threshold stays PEACE
	d := NewVolatilityRegimeDetector(WithRegimeWindow(2), WithRegimeThreshold(0.05))
	d.Update(95)
	r := d.Update(105)
	assert.InDelta(t, 0.05, r.Volatility, 1e-12)
	assert.Equal(t, models.RegimePeace, r.State)

	d = NewVolatilityRegimeDetector(WithRegimeWindow(2), WithRegimeThreshold(0.049))
	d.Update(95)
	assert.Equal(t, models.RegimeWar, d.Update(105).State)
}

func TestRegimeDetectorZeroMean(t *testing.T) {
	d := NewVolatilityRegimeDetector(WithRegimeWindow(2))
	d.Update(-1)
	r := d.Update(1)
	assert.Equal(t, models.RegimePeace, r.State)
	assert.Equal(t, 0.0, r.Volatility)
}
