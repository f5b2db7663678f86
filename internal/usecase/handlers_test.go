package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Areopagus/internal/domain/models"
	"Areopagus/pkg/metrics"
)

func TestDecodeCandleTimestamps(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"seconds": `{"symbol":"BTC/USDT","timestamp":1714564800,"close":100}`,
		"millis":  `{"symbol":"BTC/USDT","timestamp":1714564800000,"close":100}`,
		"rfc3339": `{"symbol":"BTC/USDT","timestamp":"2024-05-01T12:00:00Z","close":100}`,
		"string":  `{"symbol":"BTC/USDT","timestamp":"1714564800","close":100}`,
	}
	for name, raw := range cases {
		c, err := DecodeCandle([]byte(raw))
		require.NoError(t, err, name)
		assert.True(t, want.Equal(c.Timestamp), "%s: %v", name, c.Timestamp)
		assert.Equal(t, 100.0, c.Close)
	}

	c, err := DecodeCandle([]byte(`{"symbol":"BTC/USDT","close":5,"volume":2}`))
	require.NoError(t, err)
	assert.True(t, c.Timestamp.IsZero())
	assert.Equal(t, 2.0, c.Volume)
}

func TestDecodeCandleRejects(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"close":1}`,
		`{"symbol":"X","close":0}`,
		`{"symbol":"X","close":1,"timestamp":"soon"}`,
	} {
		_, err := DecodeCandle([]byte(raw))
		assert.Error(t, err, raw)
	}
}

type tickerFunc func(ctx context.Context, symbol string, c models.Candle) (*TickResult, error)

func (f tickerFunc) Tick(ctx context.Context, symbol string, c models.Candle) (*TickResult, error) {
	return f(ctx, symbol, c)
}

func TestCandlesHandler(t *testing.T) {
	var got models.Candle
	h := NewCandlesHandler("candles", tickerFunc(func(_ context.Context, symbol string, c models.Candle) (*TickResult, error) {
		got = c
		return &TickResult{Symbol: symbol}, nil
	}), metrics.Nop{}, nil)

	assert.Equal(t, "candles", h.Topic())
	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"ETH/USDT","close":2000,"timestamp":1714564800}`)))
	assert.Equal(t, "ETH/USDT", got.Symbol)

	assert.Error(t, h.Handle(context.Background(), []byte(`{}`)))
}

func TestCandlesHandlerSwallowsEngineErrors(t *testing.T) {
	h := NewCandlesHandler("candles", tickerFunc(func(context.Context, string, models.Candle) (*TickResult, error) {
		return nil, ErrUnknownSymbol
	}), metrics.Nop{}, nil)
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"DOGE/USDT","close":1}`)))

	h = NewCandlesHandler("candles", tickerFunc(func(context.Context, string, models.Candle) (*TickResult, error) {
		return nil, context.Canceled
	}), metrics.Nop{}, nil)
	assert.True(t, errors.Is(h.Handle(context.Background(), []byte(`{"symbol":"DOGE/USDT","close":1}`)), context.Canceled))
}

type bookSink struct{ books []*models.OrderBook }

func (s *bookSink) Put(b *models.OrderBook) { s.books = append(s.books, b) }

func TestOrderBookHandler(t *testing.T) {
	sink := &bookSink{}
	h := NewOrderBookHandler("orderbooks", sink, metrics.Nop{})

	err := h.Handle(context.Background(), []byte(`{"symbol":"BTC/USDT","asks":[[101,2],[102,5]],"bids":[[100,1]]}`))
	require.NoError(t, err)
	require.Len(t, sink.books, 1)
	assert.Equal(t, models.Level{Price: 102, Volume: 5}, sink.books[0].Asks[1])

	assert.Error(t, h.Handle(context.Background(), []byte(`{"asks":[]}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"symbol":"X","asks":[[1]]}`)))
}

type settingsRecorder struct{ calls []map[string]float64 }

func (r *settingsRecorder) UpdateSettings(v map[string]float64) []string {
	r.calls = append(r.calls, v)
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	return keys
}

func TestSettingsWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	rec := &settingsRecorder{}
	w := NewSettingsWatcher(path, time.Second, rec, nil)

	applied, err := w.Reload()
	require.NoError(t, err)
	assert.Empty(t, applied)

	require.NoError(t, os.WriteFile(path, []byte(`{"MAX_POSITION_SIZE_PCT":0.02,"theme":"dark"}`), 0o644))
	applied, err = w.Reload()
	require.NoError(t, err)
	assert.Equal(t, []string{"MAX_POSITION_SIZE_PCT"}, applied)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, 0.02, rec.calls[0]["MAX_POSITION_SIZE_PCT"])

	_, err = w.Reload()
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1, "unchanged file is not re-applied")

	require.NoError(t, os.WriteFile(path, []byte(`{"STOP_LOSS_PCT":0.03, "TAKE_PROFIT_PCT":0.2}`), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	_, err = w.Reload()
	require.NoError(t, err)
	assert.Len(t, rec.calls, 2)
}

func TestSettingsWatcherBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err := NewSettingsWatcher(path, 0, &settingsRecorder{}, nil).Reload()
	assert.Error(t, err)
}

func TestSettingsWatcherRunStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w := NewSettingsWatcher(filepath.Join(t.TempDir(), "none.json"), 10*time.Millisecond, &settingsRecorder{}, nil)
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
