package usecase

import (
	"math"

	"Areopagus/internal/domain/models"
)

const (
	DefaultMinConfidence = 0.6
	warMinConfidence     = 0.8
	vetoConfidence       = 0.8
)

// VotingPolicy holds the pure aggregation rules. It keeps no state between calls.
type VotingPolicy struct {
	Method        models.VotingMethod
	MinConfidence float64
}

// Decide aggregates votes into a directional decision, or returns nil when the
// council should stand aside. weights maps agent name to trust weight; missing
// agents weigh 1.0. In the WAR regime the configured method is ignored and the
// weighted rule runs with a raised threshold.
func (p VotingPolicy) Decide(votes []models.Vote, weights map[string]float64, regime models.Regime) *models.Decision {
	if len(votes) == 0 {
		return nil
	}

	if regime == models.RegimeWar {
		d := weightedVote(votes, weights, warMinConfidence)
		if d != nil {
			d.Regime = string(models.RegimeWar)
		}
		return d
	}

	switch p.Method {
	case models.VotingMajority:
		return majorityVote(votes, p.MinConfidence)
	case models.VotingVeto:
		if vetoed(votes) != nil {
			return nil
		}
		return weightedVote(votes, weights, p.MinConfidence)
	default:
		return weightedVote(votes, weights, p.MinConfidence)
	}
}

// vetoed returns the first high-confidence hold vote, if any.
func vetoed(votes []models.Vote) *models.Vote {
	for i := range votes {
		if votes[i].Vote == models.OutcomeHold && votes[i].Confidence > vetoConfidence {
			return &votes[i]
		}
	}
	return nil
}

// winner picks the highest score with ties resolved buy > sell > hold.
func winner(scores map[models.Outcome]float64) models.Outcome {
	best := models.OutcomeBuy
	for _, o := range models.Outcomes[1:] {
		if scores[o] > scores[best] {
			best = o
		}
	}
	return best
}

func majorityVote(votes []models.Vote, threshold float64) *models.Decision {
	counts := map[models.Outcome]float64{models.OutcomeBuy: 0, models.OutcomeSell: 0, models.OutcomeHold: 0}
	sum := 0.0
	for _, v := range votes {
		counts[v.Vote]++
		sum += v.Confidence
	}
	side := winner(counts)
	confidence := sum / float64(len(votes))
	if side == models.OutcomeHold || confidence < threshold {
		return nil
	}
	return &models.Decision{
		Side:          side,
		Confidence:    confidence,
		VoteBreakdown: counts,
		VotingMethod:  models.VotingMajority,
		AgentVotes:    votes,
		Strategy:      strategyFor(votes, side),
	}
}

func weightedVote(votes []models.Vote, weights map[string]float64, threshold float64) *models.Decision {
	scores := map[models.Outcome]float64{models.OutcomeBuy: 0, models.OutcomeSell: 0, models.OutcomeHold: 0}
	for _, v := range votes {
		w, ok := weights[v.Agent]
		if !ok {
			w = defaultWeight
		}
		scores[v.Vote] += w * v.Confidence
	}

	// A zero total leaves no winner to normalise; stand aside whatever the threshold.
	total := scores[models.OutcomeBuy] + scores[models.OutcomeSell] + scores[models.OutcomeHold]
	if total <= 0 {
		return nil
	}
	side := winner(scores)
	confidence := scores[side] / total
	if side == models.OutcomeHold || confidence < threshold {
		return nil
	}

	breakdown := make(map[models.Outcome]float64, len(scores))
	for o, s := range scores {
		breakdown[o] = math.Round(s*100) / 100
	}
	return &models.Decision{
		Side:          side,
		Confidence:    confidence,
		VoteBreakdown: breakdown,
		VotingMethod:  models.VotingWeighted,
		AgentVotes:    votes,
		Strategy:      strategyFor(votes, side),
	}
}

func strategyFor(votes []models.Vote, side models.Outcome) string {
	for _, v := range votes {
		if v.Vote == side && v.Strategy != "" {
			return v.Strategy
		}
	}
	return ""
}
