package models

import "time"

// Outcome is the opinion an agent casts for a tick.
type Outcome string

const (
	OutcomeBuy  Outcome = "buy"
	OutcomeSell Outcome = "sell"
	OutcomeHold Outcome = "hold"
)

// Outcomes lists every outcome in tie-break precedence order.
var Outcomes = []Outcome{OutcomeBuy, OutcomeSell, OutcomeHold}

// Valid reports whether o is one of buy, sell or hold.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeBuy, OutcomeSell, OutcomeHold:
		return true
	}
	return false
}

// Vote is one agent's opinion for the current tick.
type Vote struct {
	Agent      string  `json:"agent"`
	Vote       Outcome `json:"vote"`
	Confidence float64 `json:"confidence"`
	Strategy   string  `json:"strategy,omitempty"`
	Price      float64 `json:"price,omitempty"`
	// Reasoning is opaque to the council; agents attach text or structured detail.
	Reasoning  any     `json:"reasoning,omitempty"`
}

// Candle represents a closed OHLCV bar delivered once per tick.
type Candle struct {
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
