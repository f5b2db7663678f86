package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}
	assert.True(t, w.Full())
	assert.Equal(t, []float64{3, 4, 5}, w.Values())
	assert.Equal(t, 5.0, w.Last())
}

func TestStdDevIsPopulation(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(xs), 1e-12)
	assert.InDelta(t, 2.0, StdDev(xs), 1e-12)
	assert.InDelta(t, 0.4, CoefficientOfVariation(xs), 1e-12)
}

func TestCoefficientOfVariationZeroMean(t *testing.T) {
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{-1, 1}))
	assert.Equal(t, 0.0, CoefficientOfVariation(nil))
}

func TestSMA(t *testing.T) {
	_, ok := SMA([]float64{1, 2}, 3)
	assert.False(t, ok)

	v, ok := SMA([]float64{1, 2, 3, 4}, 2)
	require.True(t, ok)
	assert.InDelta(t, 3.5, v, 1e-12)
}

func TestRSI(t *testing.T) {
	rising := make([]float64, 15)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	v, ok := RSI(rising, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	falling := make([]float64, 15)
	for i := range falling {
		falling[i] = float64(100 - i)
	}
	v, ok = RSI(falling, 14)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	// alternating +2/-1 gives avg gain 1.0, avg loss 0.5 -> RS 2
	alt := []float64{100}
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			alt = append(alt, alt[len(alt)-1]+2)
		} else {
			alt = append(alt, alt[len(alt)-1]-1)
		}
	}
	v, ok = RSI(alt, 14)
	require.True(t, ok)
	assert.InDelta(t, 100-100/3.0, v, 1e-9)

	_, ok = RSI(alt[:10], 14)
	assert.False(t, ok)
}

func TestComputeLogReturns(t *testing.T) {
	r := ComputeLogReturns([]float64{100, 110, 0, 50})
	require.Len(t, r, 3)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.Equal(t, 0.0, r[1])
	assert.Equal(t, 0.0, r[2])
	assert.Nil(t, ComputeLogReturns([]float64{1}))
}
