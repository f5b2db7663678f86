package models

import "time"

// VotingMethod selects the aggregation rule applied by the council.
type VotingMethod string

const (
	VotingMajority VotingMethod = "majority"
	VotingWeighted VotingMethod = "weighted"
	VotingVeto     VotingMethod = "veto"
)

// ParseVotingMethod maps a configured name to a method. Unknown names fall back to weighted.
func ParseVotingMethod(s string) VotingMethod {
	switch VotingMethod(s) {
	case VotingMajority, VotingVeto:
		return VotingMethod(s)
	default:
		return VotingWeighted
	}
}

// Decision is the council's consensus for one tick. It is transient: consumed by
// the risk gate and then discarded.
type Decision struct {
	Symbol        string              `json:"symbol,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
	Side          Outcome             `json:"side"`
	Price         float64             `json:"price"`
	Confidence    float64             `json:"confidence"`
	VoteBreakdown map[Outcome]float64 `json:"vote_breakdown"`
	VotingMethod  VotingMethod        `json:"voting_method"`
	AgentVotes    []Vote              `json:"agent_votes"`
	Regime        string              `json:"regime,omitempty"`
	Strategy      string              `json:"strategy,omitempty"`
	Volatility    float64             `json:"volatility,omitempty"`
}

// Signal converts the decision into the trade proposal evaluated by the risk gate.
func (d *Decision) Signal() Signal {
	regime := RegimePeace
	if d.Regime == string(RegimeWar) {
		regime = RegimeWar
	}
	return Signal{
		Side:       d.Side,
		Price:      d.Price,
		Confidence: d.Confidence,
		Strategy:   d.Strategy,
		Regime:     regime,
		Volatility: d.Volatility,
	}
}

// OrderIntent is the approved instruction handed to the external executor.
type OrderIntent struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Outcome   `json:"side"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	Decision  *Decision `json:"decision,omitempty"`
}

// DecisionRecord is the audit row written for every decision the council emits,
// whether or not the risk gate approved it.
type DecisionRecord struct {
	ID        string
	Decision  *Decision
	Approved  bool
	Reason    string
	Stage     TelosStage
	Amount    float64
	CreatedAt time.Time
}
