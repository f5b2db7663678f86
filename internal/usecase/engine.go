package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"Areopagus/internal/domain/models"
	"Areopagus/internal/domain/repository"
	"Areopagus/internal/service/ratelimit"
	"Areopagus/internal/services/risk"
	"Areopagus/pkg/logger"
	"Areopagus/pkg/metrics"
)

const (
	DefaultMinTradeValue    = 1.0
	DefaultMinTradeInterval = time.Second
	DefaultProbeAmount      = 1.0
)

// ErrUnknownSymbol is returned for candles of a pair the engine has no desk for.
var ErrUnknownSymbol = errors.New("engine: unknown symbol")

// Reasons reported on TickResult.Skipped.
const (
	SkipNoConsensus   = "no consensus"
	SkipRejected      = "rejected by risk gate"
	SkipZeroAmount    = "calculated amount is not positive"
	SkipBelowMinValue = "trade value below minimum"
	SkipInterval      = "minimum trade interval not elapsed"
	SkipPublishFailed = "intent publish failed"
)

// TickResult describes what one candle produced.
type TickResult struct {
	Symbol   string              `json:"symbol"`
	Decision *models.Decision    `json:"decision,omitempty"`
	Verdict  *models.Verdict     `json:"verdict,omitempty"`
	Intent   *models.OrderIntent `json:"intent,omitempty"`
	Skipped  string              `json:"skipped,omitempty"`
}

type desk struct {
	mu      sync.Mutex
	council *Council
}

// Engine drives one council per trading pair through the risk gate and hands
// approved intents to the publisher. Ticks of one pair are serialized; pairs
// run independently.
type Engine struct {
	desks    map[string]*desk
	symbols  []string
	merit    *MeritBook
	risk     *risk.Manager
	balances repository.BalanceSource
	books    repository.OrderBookSource
	intents  repository.IntentPublisher
	audit    repository.DecisionStore
	limiter  *ratelimit.Limiter
	logger   *logger.Logger
	metrics  repository.Metrics

	minTradeValue    float64
	minTradeInterval time.Duration
	probeAmount      float64
	now              func() time.Time
	newID            func() string
}

type EngineOption func(*Engine)

func WithBalanceSource(b repository.BalanceSource) EngineOption {
	return func(e *Engine) { e.balances = b }
}

func WithOrderBookSource(s repository.OrderBookSource) EngineOption {
	return func(e *Engine) { e.books = s }
}

func WithIntentPublisher(p repository.IntentPublisher) EngineOption {
	return func(e *Engine) { e.intents = p }
}

func WithDecisionStore(s repository.DecisionStore) EngineOption {
	return func(e *Engine) { e.audit = s }
}

func WithEngineLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

func WithEngineMetrics(m repository.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithMinTradeValue(v float64) EngineOption {
	return func(e *Engine) { e.minTradeValue = v }
}

func WithMinTradeInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.minTradeInterval = d }
}

// WithLiquidityProbe sets the amount used to estimate market impact before validation.
func WithLiquidityProbe(amount float64) EngineOption {
	return func(e *Engine) { e.probeAmount = amount }
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(councils []*Council, gate *risk.Manager, merit *MeritBook, opts ...EngineOption) (*Engine, error) {
	if gate == nil {
		return nil, errors.New("engine: risk manager is required")
	}
	e := &Engine{
		desks:            make(map[string]*desk, len(councils)),
		merit:            merit,
		risk:             gate,
		limiter:          ratelimit.New(),
		logger:           logger.Nop(),
		metrics:          metrics.Nop{},
		minTradeValue:    DefaultMinTradeValue,
		minTradeInterval: DefaultMinTradeInterval,
		probeAmount:      DefaultProbeAmount,
		now:              time.Now,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.balances == nil {
		return nil, errors.New("engine: balance source is required")
	}
	for _, c := range councils {
		if _, dup := e.desks[c.Symbol()]; dup {
			return nil, fmt.Errorf("engine: duplicate council for %s", c.Symbol())
		}
		e.desks[c.Symbol()] = &desk{council: c}
		e.symbols = append(e.symbols, c.Symbol())
	}
	sort.Strings(e.symbols)
	return e, nil
}

func (e *Engine) Symbols() []string { return append([]string(nil), e.symbols...) }

func (e *Engine) Risk() *risk.Manager { return e.risk }

func (e *Engine) Merit() *MeritBook { return e.merit }

// Tick runs one candle through the pipeline: council, balance update,
// liquidity probe, risk gate, sizing, trade filters, publish and audit.
// Errors are returned only for failures before a decision could be judged;
// publish and audit failures are logged and reported on the result.
func (e *Engine) Tick(ctx context.Context, symbol string, candle models.Candle) (*TickResult, error) {
	d, ok := e.desks[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	start := time.Now()
	defer func() { e.metrics.RecordLatency("tick", time.Since(start).Seconds()) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	candle.Symbol = symbol
	res := &TickResult{Symbol: symbol}

	decision, err := d.council.OnCandle(ctx, candle)
	if err != nil {
		return nil, fmt.Errorf("council %s: %w", symbol, err)
	}
	if decision == nil {
		res.Skipped = SkipNoConsensus
		return res, nil
	}
	res.Decision = decision

	balance, err := e.balances.Balance(ctx, symbol, decision.Side)
	if err != nil {
		e.metrics.RecordError("balance")
		return res, fmt.Errorf("balance %s: %w", symbol, err)
	}
	e.risk.UpdateBalance(balance)

	book := e.orderBook(ctx, symbol)
	signal := decision.Signal()
	if book != nil && e.probeAmount > 0 {
		signal.LiquidityImpact = risk.EstimateImpact(e.probeAmount, book, signal.Side)
	}

	verdict := e.risk.ValidateTrade(signal, balance, candle.Close)
	res.Verdict = &verdict
	if !verdict.Approved {
		e.metrics.RecordRejection(symbol, verdict.Rule)
		e.logger.Info("signal rejected",
			logger.String("symbol", symbol),
			logger.String("rule", verdict.Rule),
			logger.String("reason", verdict.Reason))
		res.Skipped = SkipRejected
		e.record(ctx, res, 0)
		return res, nil
	}

	amount := e.size(balance, candle.Close, verdict.Signal, book)
	if skip := e.filter(symbol, amount, candle); skip != "" {
		res.Skipped = skip
		e.logger.Info("skipping trade", logger.String("symbol", symbol), logger.String("reason", skip), logger.Float64("amount", amount))
		e.record(ctx, res, amount)
		return res, nil
	}

	intent := &models.OrderIntent{
		ID:        e.newID(),
		Symbol:    symbol,
		Side:      verdict.Signal.Side,
		Amount:    amount,
		Price:     candle.Close,
		CreatedAt: e.now().UTC(),
		Decision:  decision,
	}
	if e.intents != nil {
		if err := e.intents.PublishIntent(ctx, intent); err != nil {
			e.metrics.RecordError("intent_publish")
			e.logger.Error("failed to publish order intent", logger.String("symbol", symbol), logger.String("intent_id", intent.ID), logger.Error(err))
			res.Skipped = SkipPublishFailed
			e.record(ctx, res, amount)
			return res, nil
		}
	}
	res.Intent = intent
	e.metrics.RecordIntent(symbol, intent.Side)
	e.logger.Info("order intent issued",
		logger.String("symbol", symbol),
		logger.String("intent_id", intent.ID),
		logger.String("side", string(intent.Side)),
		logger.Float64("amount", amount),
		logger.Float64("price", intent.Price),
		logger.String("stage", string(verdict.Stage)))
	e.record(ctx, res, amount)
	return res, nil
}

// size applies Kelly sizing and caps it at the size the gate approved.
func (e *Engine) size(balance, price float64, approved models.Signal, book *models.OrderBook) float64 {
	var opts []risk.SizingOption
	if book != nil {
		opts = append(opts, risk.WithOrderBook(book, approved.Side))
	}
	amount := e.risk.CalculatePositionSize(balance, price, opts...)
	if approved.SizePct > 0 && price > 0 {
		if limit := balance * approved.SizePct / price; amount > limit {
			amount = limit
		}
	}
	return amount
}

func (e *Engine) filter(symbol string, amount float64, candle models.Candle) string {
	if amount <= 0 {
		return SkipZeroAmount
	}
	if amount*candle.Close < e.minTradeValue {
		return SkipBelowMinValue
	}
	at := candle.Timestamp
	if at.IsZero() {
		at = e.now()
	}
	if !e.limiter.AllowEvery(symbol, at, e.minTradeInterval) {
		return SkipInterval
	}
	return ""
}

func (e *Engine) orderBook(ctx context.Context, symbol string) *models.OrderBook {
	if e.books == nil {
		return nil
	}
	book, err := e.books.OrderBook(ctx, symbol)
	if err != nil {
		e.metrics.RecordError("orderbook")
		e.logger.Warn("order book unavailable", logger.String("symbol", symbol), logger.Error(err))
		return nil
	}
	return book
}

func (e *Engine) record(ctx context.Context, res *TickResult, amount float64) {
	if e.audit == nil || res.Decision == nil {
		return
	}
	rec := &models.DecisionRecord{
		ID:        e.newID(),
		Decision:  res.Decision,
		Amount:    amount,
		CreatedAt: e.now().UTC(),
	}
	if res.Intent != nil {
		rec.ID = res.Intent.ID
		rec.Approved = true
	}
	if res.Verdict != nil {
		rec.Reason = res.Verdict.Reason
		rec.Stage = res.Verdict.Stage
	}
	if res.Skipped != "" && res.Skipped != SkipRejected {
		rec.Reason = res.Skipped
	}
	if err := e.audit.StoreDecision(ctx, rec); err != nil {
		e.metrics.RecordError("audit")
		e.logger.Error("failed to store decision", logger.String("symbol", res.Symbol), logger.Error(err))
	}
}

// DeskStatus is the observable state of one pair.
type DeskStatus struct {
	Symbol         string               `json:"symbol"`
	Regime         models.RegimeReading `json:"regime"`
	PendingShadows int                  `json:"pending_shadows"`
	Agents         []string             `json:"agents"`
}

// Status is the engine-wide snapshot served by the status endpoint.
type Status struct {
	KillSwitch     string              `json:"kill_switch"`
	InitialBalance float64             `json:"initial_balance,omitempty"`
	Settings       models.RiskSettings `json:"settings"`
	Weights        map[string]float64  `json:"weights"`
	Desks          []DeskStatus        `json:"desks"`
}

func (e *Engine) Status() Status {
	st := Status{
		KillSwitch: e.risk.KillSwitchState(),
		Settings:   e.risk.Settings(),
		Weights:    map[string]float64{},
		Desks:      make([]DeskStatus, 0, len(e.symbols)),
	}
	if initial, ok := e.risk.InitialBalance(); ok {
		st.InitialBalance = initial
	}
	if e.merit != nil {
		st.Weights = e.merit.Snapshot()
	}
	for _, s := range e.symbols {
		d := e.desks[s]
		d.mu.Lock()
		st.Desks = append(st.Desks, DeskStatus{
			Symbol:         s,
			Regime:         d.council.Regime(),
			PendingShadows: d.council.PendingShadows(),
			Agents:         d.council.AgentNames(),
		})
		d.mu.Unlock()
	}
	return st
}
