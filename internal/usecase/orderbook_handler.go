package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Areopagus/internal/domain/models"
	domrepo "Areopagus/internal/domain/repository"
	pkgkafka "Areopagus/pkg/kafka"
)

// BookSink stores the latest snapshot per symbol.
type BookSink interface {
	Put(book *models.OrderBook)
}

// OrderBookHandler consumes depth snapshots from Kafka.
type OrderBookHandler struct {
	topic   string
	sink    BookSink
	metrics domrepo.Metrics
}

var _ pkgkafka.MessageHandler = (*OrderBookHandler)(nil)

func NewOrderBookHandler(topic string, sink BookSink, metrics domrepo.Metrics) *OrderBookHandler {
	return &OrderBookHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *OrderBookHandler) Topic() string { return h.topic }

func (h *OrderBookHandler) Handle(_ context.Context, b []byte) error {
	var book models.OrderBook
	if err := json.Unmarshal(b, &book); err != nil {
		h.metrics.RecordError("orderbook_decode")
		return fmt.Errorf("decode order book: %w", err)
	}
	if book.Symbol == "" {
		h.metrics.RecordError("orderbook_decode")
		return errors.New("decode order book: missing symbol")
	}
	h.sink.Put(&book)
	return nil
}
