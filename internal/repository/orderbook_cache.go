package repository

import (
	"context"
	"time"

	"Areopagus/internal/domain/models"
	domrepo "Areopagus/internal/domain/repository"
	"Areopagus/internal/service/cache"
)

const DefaultOrderBookTTL = 30 * time.Second

// OrderBookCache keeps the latest depth snapshot per symbol. Snapshots older
// than the ttl are treated as unknown.
type OrderBookCache struct {
	books *cache.TTLCache[*models.OrderBook]
	ttl   time.Duration
}

var _ domrepo.OrderBookSource = (*OrderBookCache)(nil)

func NewOrderBookCache(ttl time.Duration) *OrderBookCache {
	if ttl <= 0 {
		ttl = DefaultOrderBookTTL
	}
	return &OrderBookCache{books: cache.NewTTLCache[*models.OrderBook](), ttl: ttl}
}

// Put replaces the snapshot for book.Symbol.
func (c *OrderBookCache) Put(book *models.OrderBook) {
	if book == nil || book.Symbol == "" {
		return
	}
	c.books.Set(book.Symbol, book, c.ttl)
}

func (c *OrderBookCache) OrderBook(_ context.Context, symbol string) (*models.OrderBook, error) {
	book, ok := c.books.Get(symbol)
	if !ok {
		return nil, nil
	}
	return book, nil
}

func (c *OrderBookCache) Len() int { return c.books.Len() }
