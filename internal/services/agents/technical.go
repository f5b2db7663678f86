package agents

import (
	"context"
	"fmt"

	"Areopagus/internal/domain/models"
	domsvc "Areopagus/internal/domain/service"
	"Areopagus/internal/services/features"
)

const (
	TrendName      = "TrendAgent"
	OscillatorName = "OscillatorAgent"
	VolumeName     = "VolumeAgent"

	neutralConfidence = 0.5
)

const (
	trendFast     = 8
	trendSlow     = 21
	trendWarmup   = 26
	trendConf     = 0.7
	rsiPeriod     = 14
	rsiWarmup     = rsiPeriod + 1
	rsiOversold   = 30.0
	rsiOverbought = 70.0
	rsiConf       = 0.8
	volumeBars    = 5
	volumeConf    = 0.6
)

var (
	_ domsvc.Agent = (*TrendAgent)(nil)
	_ domsvc.Agent = (*OscillatorAgent)(nil)
	_ domsvc.Agent = (*VolumeAgent)(nil)
)

// TrendAgent follows the cross of a fast and a slow simple moving average.
// It abstains until it has seen enough closes.
type TrendAgent struct {
	closes *features.Window
}

func NewTrendAgent() *TrendAgent {
	return &TrendAgent{closes: features.NewWindow(trendWarmup)}
}

func (a *TrendAgent) Name() string { return TrendName }

func (a *TrendAgent) OnCandle(_ context.Context, c models.Candle) (*models.Vote, error) {
	a.closes.Push(c.Close)
	if !a.closes.Full() {
		return nil, nil
	}
	xs := a.closes.Values()
	fast, _ := features.SMA(xs, trendFast)
	slow, _ := features.SMA(xs, trendSlow)

	v := &models.Vote{Vote: models.OutcomeHold, Confidence: neutralConfidence, Price: c.Close}
	switch {
	case fast > slow:
		v.Vote, v.Confidence = models.OutcomeBuy, trendConf
	case fast < slow:
		v.Vote, v.Confidence = models.OutcomeSell, trendConf
	}
	v.Reasoning = fmt.Sprintf("sma%d=%.4f sma%d=%.4f", trendFast, fast, trendSlow, slow)
	return v, nil
}

// OscillatorAgent fades RSI extremes.
type OscillatorAgent struct {
	closes *features.Window
}

func NewOscillatorAgent() *OscillatorAgent {
	return &OscillatorAgent{closes: features.NewWindow(rsiWarmup)}
}

func (a *OscillatorAgent) Name() string { return OscillatorName }

func (a *OscillatorAgent) OnCandle(_ context.Context, c models.Candle) (*models.Vote, error) {
	a.closes.Push(c.Close)
	rsi, ok := features.RSI(a.closes.Values(), rsiPeriod)
	if !ok {
		return nil, nil
	}

	v := &models.Vote{Vote: models.OutcomeHold, Confidence: neutralConfidence, Price: c.Close}
	switch {
	case rsi < rsiOversold:
		v.Vote, v.Confidence = models.OutcomeBuy, rsiConf
	case rsi > rsiOverbought:
		v.Vote, v.Confidence = models.OutcomeSell, rsiConf
	}
	v.Reasoning = fmt.Sprintf("rsi%d=%.2f", rsiPeriod, rsi)
	return v, nil
}

// VolumeAgent looks for volume confirming the direction of the last few bars.
type VolumeAgent struct {
	closes  *features.Window
	volumes *features.Window
}

func NewVolumeAgent() *VolumeAgent {
	return &VolumeAgent{
		closes:  features.NewWindow(volumeBars),
		volumes: features.NewWindow(volumeBars),
	}
}

func (a *VolumeAgent) Name() string { return VolumeName }

func (a *VolumeAgent) OnCandle(_ context.Context, c models.Candle) (*models.Vote, error) {
	a.closes.Push(c.Close)
	a.volumes.Push(c.Volume)
	if !a.closes.Full() {
		return nil, nil
	}
	closes := a.closes.Values()
	vols := a.volumes.Values()

	priceUp := closes[len(closes)-1] > closes[0]
	volUp := vols[len(vols)-1] > features.Mean(vols)

	v := &models.Vote{Vote: models.OutcomeHold, Confidence: neutralConfidence, Price: c.Close}
	switch {
	case priceUp && volUp:
		v.Vote, v.Confidence = models.OutcomeBuy, volumeConf
	case !priceUp && volUp:
		v.Vote, v.Confidence = models.OutcomeSell, volumeConf
	}
	return v, nil
}
