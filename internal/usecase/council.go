package usecase

import (
	"context"
	"fmt"

	"Areopagus/internal/domain/models"
	"Areopagus/internal/domain/repository"
	domsvc "Areopagus/internal/domain/service"
	"Areopagus/internal/services/analytics"
	"Areopagus/pkg/logger"
	"Areopagus/pkg/metrics"
)

// Council collects one vote per agent per candle and turns them into a
// decision. A council serves a single symbol and is driven by one goroutine
// at a time; the trust table it reads and updates is shared via MeritBook.
type Council struct {
	symbol  string
	agents  []domsvc.Agent
	policy  VotingPolicy
	merit   *MeritBook
	ledger  *ShadowLedger
	regime  domsvc.RegimeDetector
	logger  *logger.Logger
	metrics repository.Metrics
}

type CouncilOption func(*Council)

func WithVotingMethod(m models.VotingMethod) CouncilOption {
	return func(c *Council) { c.policy.Method = m }
}

func WithMinConfidence(v float64) CouncilOption {
	return func(c *Council) { c.policy.MinConfidence = v }
}

func WithShadowDepth(n int) CouncilOption {
	return func(c *Council) { c.ledger = NewShadowLedger(n) }
}

func WithRegimeDetector(d domsvc.RegimeDetector) CouncilOption {
	return func(c *Council) { c.regime = d }
}

func WithCouncilLogger(l *logger.Logger) CouncilOption {
	return func(c *Council) { c.logger = l }
}

func WithCouncilMetrics(m repository.Metrics) CouncilOption {
	return func(c *Council) { c.metrics = m }
}

func NewCouncil(symbol string, agents []domsvc.Agent, merit *MeritBook, opts ...CouncilOption) *Council {
	c := &Council{
		symbol:  symbol,
		agents:  agents,
		policy:  VotingPolicy{Method: models.VotingWeighted, MinConfidence: DefaultMinConfidence},
		merit:   merit,
		ledger:  NewShadowLedger(DefaultShadowDepth),
		regime:  analytics.NewVolatilityRegimeDetector(),
		logger:  logger.Nop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.merit == nil {
		c.merit = NewMeritBook(nil, c.AgentNames())
	}
	return c
}

func (c *Council) Symbol() string { return c.symbol }

func (c *Council) AgentNames() []string {
	names := make([]string, len(c.agents))
	for i, a := range c.agents {
		names[i] = a.Name()
	}
	return names
}

func (c *Council) Regime() models.RegimeReading { return c.regime.Current() }

func (c *Council) PendingShadows() int { return c.ledger.Pending() }

// OnCandle runs one tick: score matured shadow entries at the close, update
// the regime, poll agents in registration order, record the vote set and
// apply the voting policy. It returns nil when the council stands aside.
func (c *Council) OnCandle(ctx context.Context, candle models.Candle) (*models.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	price := candle.Close

	if scores := c.ledger.Evaluate(price); len(scores) > 0 {
		c.merit.Apply(ctx, scores)
	}

	reading := c.regime.Update(price)
	if reading.Changed {
		c.logRegimeShift(reading)
	}
	c.metrics.RecordRegime(c.symbol, reading.State, reading.Volatility)

	votes := c.collect(ctx, candle)
	if len(votes) == 0 {
		return nil, nil
	}

	c.ledger.Record(price, votes)

	d := c.policy.Decide(votes, c.merit.Snapshot(), reading.State)
	if d == nil {
		return nil, nil
	}
	d.Symbol = c.symbol
	d.Timestamp = candle.Timestamp
	d.Price = price
	d.Volatility = reading.Volatility

	c.metrics.RecordDecision(c.symbol, d.Side, d.VotingMethod)
	c.logger.Info("council decision",
		logger.String("symbol", c.symbol),
		logger.String("side", string(d.Side)),
		logger.Float64("confidence", d.Confidence),
		logger.String("method", string(d.VotingMethod)),
		logger.Any("breakdown", d.VoteBreakdown),
	)
	if d.Regime == string(models.RegimeWar) {
		c.logger.Warn("consensus reached under high volatility", logger.String("symbol", c.symbol))
	}
	return d, nil
}

func (c *Council) collect(ctx context.Context, candle models.Candle) []models.Vote {
	votes := make([]models.Vote, 0, len(c.agents))
	for _, a := range c.agents {
		v, err := c.ask(ctx, a, candle)
		if err != nil {
			c.metrics.RecordAgentError(a.Name())
			c.logger.Error("agent failed", logger.String("agent", a.Name()), logger.String("symbol", c.symbol), logger.Error(err))
			continue
		}
		if v == nil {
			continue
		}
		if !v.Vote.Valid() {
			c.logger.Warn("dropping vote with unknown outcome", logger.String("agent", a.Name()), logger.String("vote", string(v.Vote)))
			continue
		}
		vote := *v
		vote.Agent = a.Name()
		vote.Confidence = clampUnit(vote.Confidence)
		votes = append(votes, vote)
	}
	return votes
}

// ask isolates a single agent call so that a panic counts as a failure.
func (c *Council) ask(ctx context.Context, a domsvc.Agent, candle models.Candle) (v *models.Vote, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("agent panic: %v", r)
		}
	}()
	return a.OnCandle(ctx, candle)
}

func (c *Council) logRegimeShift(r models.RegimeReading) {
	if r.State == models.RegimeWar {
		c.logger.Warn("regime shift: entering WAR", logger.String("symbol", c.symbol), logger.Float64("volatility", r.Volatility))
		return
	}
	c.logger.Info("regime shift: returning to PEACE", logger.String("symbol", c.symbol), logger.Float64("volatility", r.Volatility))
}

func clampUnit(x float64) float64 {
	switch {
	case x != x, x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
