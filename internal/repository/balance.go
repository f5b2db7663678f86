package repository

import (
	"context"
	"sync"

	"Areopagus/internal/domain/models"
	domrepo "Areopagus/internal/domain/repository"
)

const DefaultPaperCapital = 10000.0

// PaperBalance reports a single simulated equity figure for every symbol and
// side. Set replaces it, e.g. from the balance endpoint.
type PaperBalance struct {
	mu      sync.RWMutex
	balance float64
}

var _ domrepo.BalanceSource = (*PaperBalance)(nil)

func NewPaperBalance(capital float64) *PaperBalance {
	if capital <= 0 {
		capital = DefaultPaperCapital
	}
	return &PaperBalance{balance: capital}
}

func (b *PaperBalance) Balance(context.Context, string, models.Outcome) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balance, nil
}

func (b *PaperBalance) Set(balance float64) {
	b.mu.Lock()
	b.balance = balance
	b.mu.Unlock()
}
