package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	xhttp "Areopagus/pkg/http"
)

const (
	DefaultServiceTimeout   = 3 * time.Second
	DefaultBreakerFailures  = 5
	DefaultBreakerCoolDown  = 30 * time.Second
	defaultBreakerHalfOpens = 1
)

// ErrServiceUnavailable is returned while the circuit breaker is open.
var ErrServiceUnavailable = errors.New("analytics service unavailable")

// HTTPServiceBase is the shared client for external analysis services: JSON
// POSTs under one base URL behind a circuit breaker.
type HTTPServiceBase struct {
	name    string
	baseURL string
	observe func(name, path string, d time.Duration, err error)
	client  *xhttp.Client
	breaker *gobreaker.CircuitBreaker
}

type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	timeout  time.Duration
	failures uint32
	coolDown time.Duration
	onState  func(name string, from, to gobreaker.State)
	observe  func(name, path string, d time.Duration, err error)
}

func WithServiceTimeout(d time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBreaker trips the breaker after failures consecutive errors and keeps it
// open for coolDown before letting a probe through.
func WithBreaker(failures uint32, coolDown time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		if failures > 0 {
			c.failures = failures
		}
		if coolDown > 0 {
			c.coolDown = coolDown
		}
	}
}

func WithBreakerStateHook(fn func(name string, from, to gobreaker.State)) ServiceOption {
	return func(c *serviceConfig) { c.onState = fn }
}

// WithCallObserver receives the duration and outcome of every call,
// including calls rejected by an open breaker.
func WithCallObserver(fn func(name, path string, d time.Duration, err error)) ServiceOption {
	return func(c *serviceConfig) { c.observe = fn }
}

func NewHTTPServiceBase(name, baseURL string, opts ...ServiceOption) *HTTPServiceBase {
	cfg := &serviceConfig{
		timeout:  DefaultServiceTimeout,
		failures: DefaultBreakerFailures,
		coolDown: DefaultBreakerCoolDown,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: defaultBreakerHalfOpens,
		Timeout:     cfg.coolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failures
		},
		OnStateChange: cfg.onState,
	}
	return &HTTPServiceBase{
		name:    name,
		baseURL: baseURL,
		observe: cfg.observe,
		client:  xhttp.NewClient(xhttp.WithTimeout(cfg.timeout), xhttp.WithUserAgent("areopagus/"+name)),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// State reports the breaker state.
func (b *HTTPServiceBase) State() gobreaker.State {
	return b.breaker.State()
}

// PostJSON posts payload to path under baseURL and returns the raw response body.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	if b.client == nil || b.baseURL == "" {
		return nil, fmt.Errorf("analytics http client not initialized")
	}
	start := time.Now()
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.client.PostJSON(ctx, b.baseURL+path, payload)
	})
	if b.observe != nil {
		b.observe(b.name, path, time.Since(start), err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("post %s: %w", path, ErrServiceUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	return out.([]byte), nil
}
