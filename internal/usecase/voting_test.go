package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Areopagus/internal/domain/models"
)

func vote(agent string, o models.Outcome, c float64) models.Vote {
	return models.Vote{Agent: agent, Vote: o, Confidence: c}
}

func TestWeightedSingleBuy(t *testing.T) {
	p := VotingPolicy{Method: models.VotingWeighted, MinConfidence: DefaultMinConfidence}
	d := p.Decide([]models.Vote{vote("A", models.OutcomeBuy, 0.9)}, map[string]float64{"A": 1.0}, models.RegimePeace)

	require.NotNil(t, d)
	assert.Equal(t, models.OutcomeBuy, d.Side)
	// the lone vote holds the whole score: 0.9 / 0.9
	assert.InDelta(t, 1.0, d.Confidence, 1e-12)
	assert.Equal(t, 0.9, d.VoteBreakdown[models.OutcomeBuy])
	assert.Equal(t, models.VotingWeighted, d.VotingMethod)
	assert.Empty(t, d.Regime)
}

func TestWeightedNormalizesAcrossOutcomes(t *testing.T) {
	p := VotingPolicy{Method: models.VotingWeighted, MinConfidence: 0.6}
	votes := []models.Vote{
		vote("A", models.OutcomeBuy, 0.8),
		vote("B", models.OutcomeSell, 0.4),
	}
	// A 2.0*0.8=1.6, B 0.5*0.4=0.2 -> 1.6/1.8
	d := p.Decide(votes, map[string]float64{"A": 2.0, "B": 0.5}, models.RegimePeace)
	require.NotNil(t, d)
	assert.InDelta(t, 1.6/1.8, d.Confidence, 1e-12)
	assert.Equal(t, 1.6, d.VoteBreakdown[models.OutcomeBuy])
	assert.Equal(t, 0.2, d.VoteBreakdown[models.OutcomeSell])
	assert.Equal(t, 0.0, d.VoteBreakdown[models.OutcomeHold])
}

func TestWeightedMissingWeightDefaultsToOne(t *testing.T) {
	p := VotingPolicy{Method: models.VotingWeighted, MinConfidence: 0.6}
	votes := []models.Vote{vote("A", models.OutcomeBuy, 0.7), vote("B", models.OutcomeSell, 0.7)}
	// B unknown -> 1.0, so A at 0.5 loses to B
	d := p.Decide(votes, map[string]float64{"A": 0.5}, models.RegimePeace)
	require.NotNil(t, d)
	assert.Equal(t, models.OutcomeSell, d.Side)
}

func TestWeightedRejectsHoldAndLowConfidence(t *testing.T) {
	p := VotingPolicy{Method: models.VotingWeighted, MinConfidence: 0.6}
	assert.Nil(t, p.Decide([]models.Vote{vote("A", models.OutcomeHold, 0.9)}, nil, models.RegimePeace))

	split := []models.Vote{vote("A", models.OutcomeBuy, 0.5), vote("B", models.OutcomeSell, 0.4)}
	assert.Nil(t, p.Decide(split, nil, models.RegimePeace))
}

func TestWeightedZeroTotalRejects(t *testing.T) {
	p := VotingPolicy{Method: models.VotingWeighted, MinConfidence: 0}
	for _, o := range models.Outcomes {
		assert.Nil(t, p.Decide([]models.Vote{vote("A", o, 0)}, nil, models.RegimePeace), o)
	}
	zeroWeight := []models.Vote{vote("A", models.OutcomeBuy, 0.9), vote("B", models.OutcomeSell, 0.9)}
	assert.Nil(t, p.Decide(zeroWeight, map[string]float64{"A": 0, "B": 0}, models.RegimePeace))

	p.Method = models.VotingVeto
	assert.Nil(t, p.Decide([]models.Vote{vote("A", models.OutcomeSell, 0)}, nil, models.RegimePeace))
}

func TestTiePrecedenceBuyOverSell(t *testing.T) {
	p := VotingPolicy{Method: models.VotingMajority, MinConfidence: 0.6}
	votes := []models.Vote{vote("A", models.OutcomeSell, 0.9), vote("B", models.OutcomeBuy, 0.9)}
	d := p.Decide(votes, nil, models.RegimePeace)
	require.NotNil(t, d)
	assert.Equal(t, models.OutcomeBuy, d.Side)
}

func TestMajority(t *testing.T) {
	p := VotingPolicy{Method: models.VotingMajority, MinConfidence: 0.6}
	votes := []models.Vote{
		vote("A", models.OutcomeSell, 0.7),
		vote("B", models.OutcomeSell, 0.6),
		{Agent: "C", Vote: models.OutcomeBuy, Confidence: 0.8, Strategy: "breakout"},
	}
	d := p.Decide(votes, nil, models.RegimePeace)
	require.NotNil(t, d)
	assert.Equal(t, models.OutcomeSell, d.Side)
	assert.InDelta(t, 0.7, d.Confidence, 1e-12)
	assert.Equal(t, 2.0, d.VoteBreakdown[models.OutcomeSell])
	assert.Equal(t, models.VotingMajority, d.VotingMethod)
	assert.Empty(t, d.Strategy)

	// mean confidence below threshold
	low := []models.Vote{vote("A", models.OutcomeBuy, 0.9), vote("B", models.OutcomeBuy, 0.2)}
	assert.Nil(t, p.Decide(low, nil, models.RegimePeace))
}

func TestVetoOnHighConfidenceHold(t *testing.T) {
	p := VotingPolicy{Method: models.VotingVeto, MinConfidence: 0.6}
	votes := []models.Vote{vote("A", models.OutcomeBuy, 0.99), vote("B", models.OutcomeHold, 0.85)}
	assert.Nil(t, p.Decide(votes, nil, models.RegimePeace))
}

func TestVetoIgnoresHighConfidenceDirectionalVotes(t *testing.T) {
	p := VotingPolicy{Method: models.VotingVeto, MinConfidence: 0.6}
	votes := []models.Vote{vote("A", models.OutcomeBuy, 0.99), vote("B", models.OutcomeSell, 0.95), vote("C", models.OutcomeHold, 0.8)}
	d := p.Decide(votes, map[string]float64{"A": 2.0, "B": 0.1, "C": 0.1}, models.RegimePeace)
	require.NotNil(t, d)
	assert.Equal(t, models.OutcomeBuy, d.Side)
	assert.Equal(t, models.VotingWeighted, d.VotingMethod)
}

func TestWarRegimeForcesWeightedWithHigherThreshold(t *testing.T) {
	votes := []models.Vote{vote("A", models.OutcomeBuy, 0.9), vote("B", models.OutcomeBuy, 0.9), vote("C", models.OutcomeSell, 0.2)}

	p := VotingPolicy{Method: models.VotingMajority, MinConfidence: 0.6}
	d := p.Decide(votes, nil, models.RegimeWar)
	require.NotNil(t, d)
	assert.Equal(t, models.VotingWeighted, d.VotingMethod)
	assert.Equal(t, "WAR", d.Regime)

	// passes majority at 0.65 mean confidence, fails weighted at 0.9/1.3
	weak := []models.Vote{vote("A", models.OutcomeBuy, 0.9), vote("B", models.OutcomeSell, 0.4)}
	assert.NotNil(t, p.Decide(weak, nil, models.RegimePeace))
	assert.Nil(t, p.Decide(weak, nil, models.RegimeWar))
}

func TestWarRegimeBypassesVeto(t *testing.T) {
	p := VotingPolicy{Method: models.VotingVeto, MinConfidence: 0.6}
	votes := []models.Vote{vote("A", models.OutcomeBuy, 1), vote("B", models.OutcomeBuy, 1), vote("C", models.OutcomeBuy, 1), vote("D", models.OutcomeBuy, 1), vote("E", models.OutcomeHold, 0.85)}
	assert.Nil(t, p.Decide(votes, nil, models.RegimePeace))
	d := p.Decide(votes, nil, models.RegimeWar)
	require.NotNil(t, d)
	assert.Equal(t, models.OutcomeBuy, d.Side)
}

func TestStrategyIsFirstForWinningSide(t *testing.T) {
	p := VotingPolicy{Method: models.VotingWeighted, MinConfidence: 0.6}
	votes := []models.Vote{
		{Agent: "A", Vote: models.OutcomeSell, Confidence: 0.1, Strategy: "fade"},
		{Agent: "B", Vote: models.OutcomeBuy, Confidence: 0.9},
		{Agent: "C", Vote: models.OutcomeBuy, Confidence: 0.9, Strategy: "Knife Catch"},
		{Agent: "D", Vote: models.OutcomeBuy, Confidence: 0.9, Strategy: "momentum"},
	}
	d := p.Decide(votes, nil, models.RegimePeace)
	require.NotNil(t, d)
	assert.Equal(t, "Knife Catch", d.Strategy)
}
