package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Areopagus/internal/domain/models"
)

func TestShadowLedgerScoresAfterDepth(t *testing.T) {
	l := NewShadowLedger(2)
	l.Record(100, []models.Vote{vote("bull", models.OutcomeBuy, 0.9), vote("bear", models.OutcomeSell, 0.9)})

	assert.Empty(t, l.Evaluate(100.1))
	assert.Equal(t, 1, l.Pending())

	scores := l.Evaluate(100.5)
	require.Len(t, scores, 2)
	assert.Equal(t, Score{Agent: "bull", Value: 1}, scores[0])
	assert.Equal(t, Score{Agent: "bear", Value: 0}, scores[1])
	assert.Zero(t, l.Pending())
	assert.Empty(t, l.Evaluate(200))
}

func TestShadowLedgerNeverScoresOnCreationTick(t *testing.T) {
	l := NewShadowLedger(1)
	assert.Empty(t, l.Evaluate(100))
	l.Record(100, []models.Vote{vote("a", models.OutcomeBuy, 1)})
	assert.Equal(t, 1, l.Pending())

	scores := l.Evaluate(101)
	require.Len(t, scores, 1)
}

func TestShadowLedgerDropsZeroPriceEntries(t *testing.T) {
	l := NewShadowLedger(1)
	l.Record(0, []models.Vote{vote("a", models.OutcomeBuy, 1)})
	assert.Empty(t, l.Evaluate(10))
	assert.Zero(t, l.Pending())
}

func TestShadowLedgerCopiesVotes(t *testing.T) {
	l := NewShadowLedger(1)
	votes := []models.Vote{vote("a", models.OutcomeBuy, 1)}
	l.Record(100, votes)
	votes[0].Vote = models.OutcomeSell

	scores := l.Evaluate(101)
	require.Len(t, scores, 1)
	assert.Equal(t, 1.0, scores[0].Value)
}

func TestShadowLedgerDefaultDepth(t *testing.T) {
	l := NewShadowLedger(0)
	l.Record(100, []models.Vote{vote("a", models.OutcomeHold, 1)})
	for i := 0; i < DefaultShadowDepth-1; i++ {
		assert.Empty(t, l.Evaluate(100))
	}
	assert.Len(t, l.Evaluate(100), 1)
}

func TestScoreVote(t *testing.T) {
	cases := []struct {
		o    models.Outcome
		pct  float64
		want float64
	}{
		{models.OutcomeBuy, 0.005, 1},
		{models.OutcomeBuy, 0.001, 0},
		{models.OutcomeSell, -0.005, 1},
		{models.OutcomeSell, 0.005, 0},
		{models.OutcomeHold, 0.0005, 1},
		{models.OutcomeHold, -0.01, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ScoreVote(tc.o, tc.pct), "%s %v", tc.o, tc.pct)
	}
}
