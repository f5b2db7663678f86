package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Areopagus/internal/domain/models"
	domsvc "Areopagus/internal/domain/service"
	"Areopagus/internal/repository"
	"Areopagus/internal/services/risk"
)

type engineFixture struct {
	engine  *Engine
	balance *repository.PaperBalance
	books   *repository.OrderBookCache
	intents *repository.MemoryIntentPublisher
	audit   *repository.MemoryDecisionStore
	agent   *scriptedAgent
}

func newEngineFixture(t *testing.T, opts ...EngineOption) *engineFixture {
	t.Helper()
	f := &engineFixture{
		balance: repository.NewPaperBalance(10000),
		books:   repository.NewOrderBookCache(time.Minute),
		intents: repository.NewMemoryIntentPublisher(),
		audit:   repository.NewMemoryDecisionStore(),
		agent:   &scriptedAgent{name: "trend", vote: &models.Vote{Vote: models.OutcomeBuy, Confidence: 0.9}},
	}
	merit := NewMeritBook(nil, []string{"trend"})
	council := NewCouncil("BTC/USDT", []domsvc.Agent{f.agent}, merit)
	ids := 0
	base := []EngineOption{
		WithBalanceSource(f.balance),
		WithOrderBookSource(f.books),
		WithIntentPublisher(f.intents),
		WithDecisionStore(f.audit),
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		}),
	}
	e, err := NewEngine([]*Council{council}, risk.NewManager(), merit, append(base, opts...)...)
	require.NoError(t, err)
	f.engine = e
	return f
}

func tickAt(sec int64, price float64) models.Candle {
	return models.Candle{Timestamp: time.Unix(sec, 0).UTC(), Open: price, High: price, Low: price, Close: price, Volume: 1}
}

func TestEngineIssuesSizedIntent(t *testing.T) {
	f := newEngineFixture(t)

	res, err := f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1000, 100))
	require.NoError(t, err)
	require.NotNil(t, res.Intent)
	assert.Empty(t, res.Skipped)
	assert.Equal(t, models.OutcomeBuy, res.Intent.Side)
	assert.InDelta(t, 5.0, res.Intent.Amount, 1e-9)
	assert.Equal(t, 100.0, res.Intent.Price)
	assert.Equal(t, "BTC/USDT", res.Intent.Symbol)
	assert.Equal(t, 0.05, res.Verdict.Signal.SizePct)

	require.Len(t, f.intents.Intents(), 1)
	recs := f.audit.Records()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Approved)
	assert.Equal(t, res.Intent.ID, recs[0].ID)
	assert.Equal(t, models.TelosSapling, recs[0].Stage)
}

func TestEngineMinTradeInterval(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1000, 100))
	require.NoError(t, err)

	fast := tickAt(1000, 100)
	fast.Timestamp = fast.Timestamp.Add(500 * time.Millisecond)
	res, err := f.engine.Tick(context.Background(), "BTC/USDT", fast)
	require.NoError(t, err)
	assert.Equal(t, SkipInterval, res.Skipped)
	assert.Nil(t, res.Intent)

	res, err = f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1002, 100))
	require.NoError(t, err)
	assert.NotNil(t, res.Intent)
	assert.Len(t, f.intents.Intents(), 2)
}

func TestEngineMinTradeValue(t *testing.T) {
	f := newEngineFixture(t, WithMinTradeValue(1000))
	res, err := f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1000, 100))
	require.NoError(t, err)
	assert.Equal(t, SkipBelowMinValue, res.Skipped)
	assert.Empty(t, f.intents.Intents())

	recs := f.audit.Records()
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Approved)
	assert.Equal(t, SkipBelowMinValue, recs[0].Reason)
}

func TestEngineKillSwitchRejects(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1000, 100))
	require.NoError(t, err)

	f.balance.Set(8999)
	res, err := f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1010, 100))
	require.NoError(t, err)
	assert.Equal(t, SkipRejected, res.Skipped)
	require.NotNil(t, res.Verdict)
	assert.Equal(t, risk.RuleKillSwitch, res.Verdict.Rule)
	assert.Equal(t, "KILLED", f.engine.Status().KillSwitch)

	f.balance.Set(20000)
	res, err = f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1020, 100))
	require.NoError(t, err)
	assert.Equal(t, risk.RuleKillSwitch, res.Verdict.Rule, "kill switch never resets")
}

func TestEngineAttachesLiquidityProbe(t *testing.T) {
	f := newEngineFixture(t)
	f.books.Put(&models.OrderBook{
		Symbol: "BTC/USDT",
		Asks:   []models.Level{{Price: 103, Volume: 100}, {Price: 101, Volume: 0.5}},
		Bids:   []models.Level{{Price: 99, Volume: 10}},
	})

	res, err := f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1000, 100))
	require.NoError(t, err)
	require.NotNil(t, res.Intent)
	assert.InDelta(t, 1.0/101, res.Verdict.Signal.LiquidityImpact, 1e-9)
	assert.InDelta(t, 5.0, res.Intent.Amount, 1e-9)
}

func TestEngineNoConsensus(t *testing.T) {
	f := newEngineFixture(t)
	f.agent.vote = &models.Vote{Vote: models.OutcomeHold, Confidence: 0.9}

	res, err := f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1000, 100))
	require.NoError(t, err)
	assert.Equal(t, SkipNoConsensus, res.Skipped)
	assert.Nil(t, res.Decision)
	assert.Empty(t, f.audit.Records())
}

type failingPublisher struct{}

func (failingPublisher) PublishIntent(context.Context, *models.OrderIntent) error {
	return errors.New("broker unavailable")
}
func (failingPublisher) Close() error { return nil }

func TestEnginePublishFailureIsReported(t *testing.T) {
	f := newEngineFixture(t, WithIntentPublisher(failingPublisher{}))
	res, err := f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1000, 100))
	require.NoError(t, err)
	assert.Equal(t, SkipPublishFailed, res.Skipped)
	assert.Nil(t, res.Intent)
}

func TestEngineUnknownSymbol(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Tick(context.Background(), "DOGE/USDT", tickAt(1000, 1))
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestEngineStatus(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Tick(context.Background(), "BTC/USDT", tickAt(1000, 100))
	require.NoError(t, err)

	st := f.engine.Status()
	assert.Equal(t, "ACTIVE", st.KillSwitch)
	assert.Equal(t, 10000.0, st.InitialBalance)
	require.Len(t, st.Desks, 1)
	assert.Equal(t, "BTC/USDT", st.Desks[0].Symbol)
	assert.Equal(t, 1, st.Desks[0].PendingShadows)
	assert.Equal(t, 1.0, st.Weights["trend"])
	assert.Equal(t, []string{"BTC/USDT"}, f.engine.Symbols())
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil, nil, nil)
	assert.Error(t, err)

	_, err = NewEngine(nil, risk.NewManager(), nil)
	assert.Error(t, err, "balance source is required")

	c1 := NewCouncil("BTC/USDT", nil, nil)
	c2 := NewCouncil("BTC/USDT", nil, nil)
	_, err = NewEngine([]*Council{c1, c2}, risk.NewManager(), nil, WithBalanceSource(repository.NewPaperBalance(1)))
	assert.Error(t, err)
}

func TestReplaySummarisesFile(t *testing.T) {
	f := newEngineFixture(t)
	input := strings.Join([]string{
		`{"symbol":"BTC/USDT","timestamp":1000,"open":100,"high":100,"low":100,"close":100,"volume":1}`,
		``,
		`not json`,
		`{"symbol":"BTC/USDT","timestamp":1000.5,"close":100}`,
		`{"symbol":"ETH/USDT","timestamp":1001,"close":10}`,
		`{"symbol":"BTC/USDT","timestamp":1002,"close":100}`,
	}, "\n")

	sum, err := Replay(context.Background(), f.engine, strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Candles)
	assert.Equal(t, 1, sum.Malformed)
	assert.Equal(t, 1, sum.Unrouted)
	assert.Equal(t, 3, sum.Decisions)
	assert.Equal(t, 2, sum.Intents)
	assert.Equal(t, 1, sum.Skipped[SkipInterval])
	assert.Empty(t, sum.Rejections)
}
