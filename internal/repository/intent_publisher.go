package repository

import (
	"context"
	"fmt"
	"sync"

	"Areopagus/internal/domain/models"
	domrepo "Areopagus/internal/domain/repository"
	"Areopagus/pkg/queue"
)

const (
	DefaultIntentsTopic = "order_intents"
	// IntentMessageType tags intents on the Redis queue.
	IntentMessageType = "order_intent"
)

// keyedPublisher is satisfied by *pkg/kafka.Producer.
type keyedPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaIntentPublisher publishes order intents as JSON keyed by symbol, so
// intents of one pair stay ordered within a partition.
type KafkaIntentPublisher struct {
	producer keyedPublisher
	topic    string
}

var _ domrepo.IntentPublisher = (*KafkaIntentPublisher)(nil)

func NewKafkaIntentPublisher(producer keyedPublisher, topic string) *KafkaIntentPublisher {
	if topic == "" {
		topic = DefaultIntentsTopic
	}
	return &KafkaIntentPublisher{producer: producer, topic: topic}
}

func (p *KafkaIntentPublisher) PublishIntent(ctx context.Context, intent *models.OrderIntent) error {
	return p.producer.Publish(ctx, p.topic, []byte(intent.Symbol), intent)
}

// Close is a no-op; the producer is shared and closed by its owner.
func (p *KafkaIntentPublisher) Close() error {
	return nil
}

// QueueIntentPublisher pushes intents onto a Redis work list for executors
// that poll instead of consuming Kafka.
type QueueIntentPublisher struct {
	queue queue.QueueService
}

var _ domrepo.IntentPublisher = (*QueueIntentPublisher)(nil)

func NewQueueIntentPublisher(q queue.QueueService) *QueueIntentPublisher {
	return &QueueIntentPublisher{queue: q}
}

func (p *QueueIntentPublisher) PublishIntent(ctx context.Context, intent *models.OrderIntent) error {
	if err := p.queue.PublishMessage(ctx, IntentMessageType, intent); err != nil {
		return fmt.Errorf("enqueue intent %s: %w", intent.ID, err)
	}
	return nil
}

// Close is a no-op; the queue is stopped by its owner.
func (p *QueueIntentPublisher) Close() error {
	return nil
}

// MemoryIntentPublisher collects intents in process. Used by replay and tests.
type MemoryIntentPublisher struct {
	mu      sync.Mutex
	intents []models.OrderIntent
}

var _ domrepo.IntentPublisher = (*MemoryIntentPublisher)(nil)

func NewMemoryIntentPublisher() *MemoryIntentPublisher {
	return &MemoryIntentPublisher{}
}

func (p *MemoryIntentPublisher) PublishIntent(_ context.Context, intent *models.OrderIntent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents = append(p.intents, *intent)
	return nil
}

func (p *MemoryIntentPublisher) Intents() []models.OrderIntent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.OrderIntent, len(p.intents))
	copy(out, p.intents)
	return out
}

func (p *MemoryIntentPublisher) Close() error { return nil }
