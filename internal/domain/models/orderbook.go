package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Level is one price level of an order book. On the wire it is a
// two-element array: [price, volume].
type Level struct {
	Price  float64
	Volume float64
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{l.Price, l.Volume})
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var pair []float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("order book level: %w", err)
	}
	if len(pair) < 2 {
		return fmt.Errorf("order book level: want [price, volume], got %d values", len(pair))
	}
	l.Price, l.Volume = pair[0], pair[1]
	return nil
}

// OrderBook is a depth snapshot with the best price first on each side.
type OrderBook struct {
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Asks      []Level   `json:"asks"`
	Bids      []Level   `json:"bids"`
}

// Side returns the levels a taker on the given side would consume, sorted best
// price first: asks ascending for buys, bids descending for sells. The book is not modified.
func (b *OrderBook) Side(side Outcome) []Level {
	if b == nil {
		return nil
	}
	var src []Level
	if side == OutcomeSell {
		src = b.Bids
	} else {
		src = b.Asks
	}
	levels := make([]Level, len(src))
	copy(levels, src)
	if side == OutcomeSell {
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	} else {
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	}
	return levels
}
