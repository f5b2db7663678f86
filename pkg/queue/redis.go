package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"Areopagus/pkg/logger"
)

// QueueMode selects which halves of the queue a process runs.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	}
	return "producer-consumer"
}

func (m QueueMode) consumes() bool { return m != ModeProducerOnly }

const (
	popTimeout   = time.Second
	errorBackoff = time.Second
)

// redisClient is the subset of *redis.Client the queue uses.
type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

type queueKeys struct {
	work, retry, dead string
}

func keysFor(prefix string) queueKeys {
	return queueKeys{work: prefix + ":messages", retry: prefix + ":retry", dead: prefix + ":dlq"}
}

// RedisQueue moves messages through the work list with BRPOP. A failed
// message waits in the retry set until its due time and lands in the
// dead-letter list once RetryLimit is spent. Unknown and undecodable
// messages go straight to the dead-letter list.
type RedisQueue struct {
	log    *logger.Logger
	cfg    QueueConfig
	client redisClient
	mode   QueueMode
	prefix string
	keys   queueKeys

	now       func() time.Time
	pollEvery time.Duration

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix namespaces the three keys. Empty keeps the default.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func WithClock(now func() time.Time) RedisQueueOption {
	return func(r *RedisQueue) { r.now = now }
}

// WithRetryPoll sets how often due retries are moved back to the work list.
func WithRetryPoll(d time.Duration) RedisQueueOption {
	return func(r *RedisQueue) {
		if d > 0 {
			r.pollEvery = d
		}
	}
}

func NewRedisQueue(lgr *logger.Logger, cfg *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	return newRedisQueue(lgr, cfg, client, mode, opts...)
}

func newRedisQueue(lgr *logger.Logger, cfg *QueueConfig, client redisClient, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	r := &RedisQueue{
		log:       lgr.Named("queue"),
		client:    client,
		mode:      mode,
		prefix:    "areopagus:queue",
		now:       time.Now,
		pollEvery: 5 * time.Second,
		jobs:      make(map[string]Job),
	}
	if cfg != nil {
		r.cfg = *cfg
	}
	if r.cfg.Workers <= 0 {
		r.cfg.Workers = 1
	}
	if r.cfg.RetryDelay <= 0 {
		r.cfg.RetryDelay = 10 * time.Second
	}
	for _, opt := range opts {
		opt(r)
	}
	r.keys = keysFor(r.prefix)
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// NewRedisPublisher returns a started producer-only queue.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) (*RedisQueue, error) {
	q := NewRedisQueue(lgr, nil, client, ModeProducerOnly, opts...)
	if err := q.Start(); err != nil {
		return nil, fmt.Errorf("redis publisher: %w", err)
	}
	return q, nil
}

// NewRedisConsumer returns a consumer-only queue serving jobs. It polls once
// started.
func NewRedisConsumer(lgr *logger.Logger, cfg *QueueConfig, client *redis.Client, jobs []Job, opts ...RedisQueueOption) *RedisQueue {
	q := NewRedisQueue(lgr, cfg, client, ModeConsumerOnly, opts...)
	q.RegisterJobs(jobs)
	return q
}

func (r *RedisQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		r.RegisterJob(job)
	}
}

// RegisterJob binds job to its message type. The first registration wins;
// producer-only queues ignore jobs.
func (r *RedisQueue) RegisterJob(job Job) {
	if !r.mode.consumes() {
		r.log.Warn("producer-only queue ignores jobs", logger.String("job", job.Name()))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.jobs[job.Type()]; ok {
		r.log.Warn("message type already bound",
			logger.String("type", job.Type()),
			logger.String("job", prev.Name()))
		return
	}
	r.jobs[job.Type()] = job
}

// Start pings Redis and, when consuming, launches the workers and the retry
// mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue %s already running", r.prefix)
	}

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.running = true

	if r.mode.consumes() {
		r.wg.Add(r.cfg.Workers + 1)
		for i := 0; i < r.cfg.Workers; i++ {
			go r.work()
		}
		go r.moveDueRetries()
	}
	r.log.Info("redis queue started",
		logger.String("prefix", r.prefix),
		logger.String("mode", r.mode.String()),
		logger.Int("job_types", len(r.jobs)))
	return nil
}

// Stop cancels in-flight handling and waits for the goroutines or ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("redis queue stopped", logger.String("prefix", r.prefix))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop queue %s: %w", r.prefix, ctx.Err())
	}
}

func (r *RedisQueue) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Stop(ctx)
}

// Enqueue pushes payload as a new message of msgType. A consuming queue
// refuses types it has no job for.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return fmt.Errorf("queue %s not running", r.prefix)
	}
	if r.mode.consumes() && !known {
		return fmt.Errorf("no job registered for type %q", msgType)
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	now := r.now()
	data, err := json.Marshal(Message{
		ID:        strconv.FormatInt(now.UnixNano(), 10),
		Type:      msgType,
		Payload:   raw,
		Timestamp: now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.keys.work, string(data)).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}

func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) work() {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		r.processNextMessage(r.keys.work)
	}
}

func (r *RedisQueue) processNextMessage(key string) {
	ctx, cancel := context.WithTimeout(r.ctx, 2*popTimeout)
	defer cancel()

	res, err := r.client.BRPop(ctx, popTimeout, key).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return
	default:
		r.log.Error("brpop failed", logger.String("key", key), logger.Error(err))
		select {
		case <-time.After(errorBackoff):
		case <-r.ctx.Done():
		}
		return
	}
	if len(res) != 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.deadLetter(res[1], "undecodable", logger.Error(err))
		return
	}
	r.processMessage(msg)
}

func (r *RedisQueue) processMessage(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.deadLetterMessage(msg, "no job for type")
		return
	}

	err := job.Handle(r.ctx, msg.Payload)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		r.log.Warn("message abandoned on shutdown", logger.String("id", msg.ID), logger.String("job", job.Name()))
	case msg.Attempts >= r.cfg.RetryLimit:
		r.deadLetterMessage(msg, "retries exhausted", logger.String("job", job.Name()), logger.Error(err))
	default:
		r.retryLater(msg, job, err)
	}
}

func (r *RedisQueue) retryLater(msg Message, job Job, cause error) {
	msg.Attempts++
	due := r.now().Add(r.cfg.RetryDelay)
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal retry", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	err = r.client.ZAdd(context.Background(), r.keys.retry, redis.Z{
		Score:  float64(due.Unix()),
		Member: string(data),
	}).Err()
	if err != nil {
		r.log.Error("schedule retry", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	r.log.Warn("message failed, retry scheduled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.Time("due", due),
		logger.Error(cause))
}

func (r *RedisQueue) deadLetterMessage(msg Message, reason string, fields ...logger.Field) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal dead letter", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	r.deadLetter(string(data), reason, append(fields, logger.String("id", msg.ID), logger.String("type", msg.Type))...)
}

func (r *RedisQueue) deadLetter(data, reason string, fields ...logger.Field) {
	r.log.Error("message dead-lettered", append(fields, logger.String("reason", reason))...)
	if err := r.client.LPush(context.Background(), r.keys.dead, data).Err(); err != nil {
		r.log.Error("push dead letter", logger.Error(err))
	}
}

func (r *RedisQueue) moveDueRetries() {
	defer r.wg.Done()
	t := time.NewTicker(r.pollEvery)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
			r.processRetryMessages()
		}
	}
}

// processRetryMessages requeues retries whose due time has passed. Only the
// caller whose ZREM removed an entry pushes it, so competing processes never
// duplicate a message.
func (r *RedisQueue) processRetryMessages() {
	due, err := r.client.ZRangeByScore(r.ctx, r.keys.retry, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error("read retry set", logger.Error(err))
		}
		return
	}
	for _, data := range due {
		if r.ctx.Err() != nil {
			return
		}
		if n, err := r.client.ZRem(r.ctx, r.keys.retry, data).Result(); err != nil || n == 0 {
			continue
		}
		if err := r.client.LPush(r.ctx, r.keys.work, data).Err(); err != nil {
			r.log.Error("requeue retry", logger.Error(err))
		}
	}
}

var _ QueueService = (*RedisQueue)(nil)
