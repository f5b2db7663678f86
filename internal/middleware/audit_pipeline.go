package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Areopagus/internal/domain/models"
	domrepo "Areopagus/internal/domain/repository"
	"Areopagus/pkg/logger"
)

// ErrAuditBufferFull is returned when a record could neither be stored nor buffered.
var ErrAuditBufferFull = errors.New("audit buffer full")

// AuditPipeline sits between the engine and the decision store. It validates
// records and buffers them while the store is unavailable, flushing in the
// background with capped exponential backoff.
type AuditPipeline struct {
	store      domrepo.DecisionStore
	metrics    domrepo.Metrics
	logger     *logger.Logger
	bufSize    int
	bufCh      chan *models.DecisionRecord
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	mu         sync.Mutex
	minBackoff time.Duration
	maxBackoff time.Duration
}

type PipelineOption func(*AuditPipeline)

// WithBufferSize sets how many records are held while the store is down.
func WithBufferSize(n int) PipelineOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *AuditPipeline) {
		if min > 0 && max >= min {
			p.minBackoff = min
			p.maxBackoff = max
		}
	}
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *AuditPipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewAuditPipeline wraps store. Start launches the flusher.
func NewAuditPipeline(store domrepo.DecisionStore, metrics domrepo.Metrics, opts ...PipelineOption) *AuditPipeline {
	p := &AuditPipeline{
		store:      store,
		metrics:    metrics,
		logger:     logger.Nop(),
		bufSize:    1000,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		minBackoff: 50 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.DecisionRecord, p.bufSize)
	return p
}

// Start launches background flushing of buffered records.
func (p *AuditPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.flush(ctx)
}

func (p *AuditPipeline) flush(ctx context.Context) {
	defer close(p.doneCh)
	backoff := p.minBackoff
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case rec := <-p.bufCh:
			err := p.store.StoreDecision(ctx, rec)
			if err == nil {
				backoff = p.minBackoff
				p.metrics.RecordLatency("audit_buffer_depth", float64(len(p.bufCh)))
				continue
			}
			p.metrics.RecordError("audit_flush")
			p.logger.Debug("audit flush failed",
				logger.String("id", rec.ID),
				logger.Duration("backoff", backoff),
				logger.Error(err))

			p.requeue(rec)
			select {
			case <-time.After(backoff):
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
			if backoff < p.maxBackoff {
				backoff *= 2
				if backoff > p.maxBackoff {
					backoff = p.maxBackoff
				}
			}
		}
	}
}

// Stop ends background flushing. Buffered records stay pending.
func (p *AuditPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// StoreDecision forwards rec to the store, buffering it when the store fails.
// A buffered record is not an error.
func (p *AuditPipeline) StoreDecision(ctx context.Context, rec *models.DecisionRecord) error {
	start := time.Now()
	if err := validateRecord(rec); err != nil {
		p.metrics.RecordError("audit_validate")
		return err
	}

	if err := p.store.StoreDecision(ctx, rec); err != nil {
		p.metrics.RecordError("audit_store")
		select {
		case p.bufCh <- rec:
			p.logger.Warn("audit store unavailable, record buffered",
				logger.String("id", rec.ID),
				logger.Int("pending", len(p.bufCh)),
				logger.Error(err))
			return nil
		default:
			p.metrics.RecordError("audit_buffer_full")
			return fmt.Errorf("%w: %v", ErrAuditBufferFull, err)
		}
	}
	p.metrics.RecordLatency("audit_store", time.Since(start).Seconds())
	return nil
}

func (p *AuditPipeline) requeue(rec *models.DecisionRecord) {
	select {
	case p.bufCh <- rec:
	default:
		p.metrics.RecordError("audit_buffer_drop")
		p.logger.Warn("audit record dropped", logger.String("id", rec.ID))
	}
}

// Pending reports how many records wait for the store.
func (p *AuditPipeline) Pending() int {
	return len(p.bufCh)
}

func (p *AuditPipeline) Health(ctx context.Context) error {
	return p.store.Health(ctx)
}

// Close stops flushing, makes one last attempt at every buffered record and
// closes the store.
func (p *AuditPipeline) Close() error {
	p.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lost int
	for {
		var rec *models.DecisionRecord
		select {
		case rec = <-p.bufCh:
		default:
		}
		if rec == nil {
			break
		}
		if err := p.store.StoreDecision(ctx, rec); err != nil {
			lost++
		}
	}

	var errs []error
	if lost > 0 {
		p.metrics.RecordError("audit_buffer_drop")
		errs = append(errs, fmt.Errorf("audit pipeline: %d buffered records lost", lost))
	}
	if err := p.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateRecord(rec *models.DecisionRecord) error {
	if rec == nil {
		return fmt.Errorf("audit record nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("audit record id empty")
	}
	if rec.Decision == nil {
		return fmt.Errorf("audit record %s has no decision", rec.ID)
	}
	if rec.Decision.Symbol == "" {
		return fmt.Errorf("audit record %s symbol empty", rec.ID)
	}
	return nil
}

var _ domrepo.DecisionStore = (*AuditPipeline)(nil)
