package usecase

import (
	"math"

	"Areopagus/internal/domain/models"
)

const (
	DefaultShadowDepth = 5
	successMove        = 0.002
)

// ShadowEntry is one tick's vote set waiting to be scored.
type ShadowEntry struct {
	CreatedPrice float64
	Votes        []models.Vote
	TTL          int
}

// ShadowLedger retains recent vote sets and scores them against the price a
// fixed number of ticks later. Not safe for concurrent use; each desk owns one.
type ShadowLedger struct {
	depth   int
	entries []ShadowEntry
}

func NewShadowLedger(depth int) *ShadowLedger {
	if depth < 1 {
		depth = DefaultShadowDepth
	}
	return &ShadowLedger{depth: depth}
}

// Evaluate ages every pending entry by one tick and scores the ones whose ttl
// ran out against price. Each entry is scored exactly once and removed.
// Entries created at a non-positive price are dropped unscored.
func (l *ShadowLedger) Evaluate(price float64) []Score {
	var scores []Score
	kept := l.entries[:0]
	for _, e := range l.entries {
		e.TTL--
		if e.TTL > 0 {
			kept = append(kept, e)
			continue
		}
		if e.CreatedPrice <= 0 {
			continue
		}
		pct := (price - e.CreatedPrice) / e.CreatedPrice
		for _, v := range e.Votes {
			scores = append(scores, Score{Agent: v.Agent, Value: ScoreVote(v.Vote, pct)})
		}
	}
	// release references held by the tail of the old backing array
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = ShadowEntry{}
	}
	l.entries = kept
	return scores
}

// Record appends the current tick's vote set. It must be called after Evaluate
// for the same tick so a fresh entry is never scored on its creation tick.
func (l *ShadowLedger) Record(price float64, votes []models.Vote) {
	cp := make([]models.Vote, len(votes))
	copy(cp, votes)
	l.entries = append(l.entries, ShadowEntry{CreatedPrice: price, Votes: cp, TTL: l.depth})
}

func (l *ShadowLedger) Pending() int { return len(l.entries) }

// ScoreVote returns 1 when the outcome matched the realized move, else 0.
func ScoreVote(o models.Outcome, pct float64) float64 {
	switch {
	case o == models.OutcomeBuy && pct > successMove,
		o == models.OutcomeSell && pct < -successMove,
		o == models.OutcomeHold && math.Abs(pct) < successMove:
		return 1
	}
	return 0
}
