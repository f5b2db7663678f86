package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ProducerOption func(*kafka.Writer, *producerSettings)

type producerSettings struct {
	compression string
	registerer  prometheus.Registerer
}

// WithCompression picks gzip, snappy, lz4 or zstd. Unknown names mean gzip.
func WithCompression(name string) ProducerOption {
	return func(w *kafka.Writer, s *producerSettings) {
		s.compression = name
		w.Compression = parseCompression(name)
	}
}

// WithRequiredAcks sets the acknowledgements awaited per write; -1 waits for
// all in-sync replicas.
func WithRequiredAcks(acks int) ProducerOption {
	return func(w *kafka.Writer, _ *producerSettings) {
		w.RequiredAcks = kafka.RequiredAcks(acks)
	}
}

// WithBatching flushes a batch at size messages, bytes payload bytes or
// after linger, whichever comes first.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(w *kafka.Writer, _ *producerSettings) {
		if size > 0 {
			w.BatchSize = size
		}
		if bytes > 0 {
			w.BatchBytes = int64(bytes)
		}
		if linger > 0 {
			w.BatchTimeout = linger
		}
	}
}

func WithWriterTimeouts(write, read time.Duration) ProducerOption {
	return func(w *kafka.Writer, _ *producerSettings) {
		w.WriteTimeout = write
		w.ReadTimeout = read
	}
}

func WithMaxAttempts(n int) ProducerOption {
	return func(w *kafka.Writer, _ *producerSettings) {
		if n > 0 {
			w.MaxAttempts = n
		}
	}
}

// WithAsync makes Publish return before the broker acknowledges.
func WithAsync(async bool) ProducerOption {
	return func(w *kafka.Writer, _ *producerSettings) { w.Async = async }
}

func WithProducerRegisterer(reg prometheus.Registerer) ProducerOption {
	return func(_ *kafka.Writer, s *producerSettings) { s.registerer = reg }
}

// Producer publishes keyed messages. Keys are hashed to partitions so every
// message for one symbol keeps its order.
type Producer struct {
	writer messageWriter
	comp   string
}

func NewProducer(brokers []string, opts ...ProducerOption) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka producer: no brokers")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	s := &producerSettings{compression: "gzip"}
	for _, opt := range opts {
		opt(w, s)
	}
	initProducerMetrics(s.registerer)
	return &Producer{writer: w, comp: s.compression}, nil
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}

// Publish writes value under key. Byte slices and strings are sent as they
// are and anything else as JSON.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	v, err := encodeValue(value)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: v, Time: start})
	observePublish(topic, p.comp, len(v), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// PublishMessage publishes without a key; the log collector ships through it.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func parseCompression(name string) kafka.Compression {
	switch name {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	}
	return kafka.Gzip
}

var (
	producerMessages *prometheus.CounterVec
	producerBytes    *prometheus.CounterVec
	producerLatency  *prometheus.HistogramVec
	producerOnce     sync.Once
)

func initProducerMetrics(reg prometheus.Registerer) {
	producerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		f := promauto.With(reg)
		producerMessages = f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "areopagus",
			Subsystem: "kafka_producer",
			Name:      "messages_total",
			Help:      "Messages published to Kafka by result.",
		}, []string{"topic", "compression", "result"})
		producerBytes = f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "areopagus",
			Subsystem: "kafka_producer",
			Name:      "bytes_total",
			Help:      "Payload bytes published to Kafka.",
		}, []string{"topic"})
		producerLatency = f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "areopagus",
			Subsystem: "kafka_producer",
			Name:      "publish_seconds",
			Help:      "Time spent in one publish call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"})
	})
}

func observePublish(topic, comp string, size int, d time.Duration, err error) {
	if producerMessages == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMessages.WithLabelValues(topic, comp, result).Inc()
	producerBytes.WithLabelValues(topic).Add(float64(size))
	producerLatency.WithLabelValues(topic).Observe(d.Seconds())
}
