package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"Areopagus/internal/domain/models"
	domrepo "Areopagus/internal/domain/repository"
	pkgkafka "Areopagus/pkg/kafka"
	"Areopagus/pkg/logger"
	"Areopagus/pkg/util"
)

// Ticker runs one candle through the engine.
type Ticker interface {
	Tick(ctx context.Context, symbol string, candle models.Candle) (*TickResult, error)
}

// CandlesHandler consumes closed candles from Kafka and feeds them to the engine.
type CandlesHandler struct {
	topic   string
	engine  Ticker
	metrics domrepo.Metrics
	logger  *logger.Logger
}

var _ pkgkafka.MessageHandler = (*CandlesHandler)(nil)

func NewCandlesHandler(topic string, engine Ticker, metrics domrepo.Metrics, l *logger.Logger) *CandlesHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &CandlesHandler{topic: topic, engine: engine, metrics: metrics, logger: l}
}

func (h *CandlesHandler) Topic() string { return h.topic }

// Handle returns an error only for undecodable messages so they can be
// dead-lettered. Engine failures are logged: a tick has side effects on
// council state and must not be replayed by the consumer's retry loop.
func (h *CandlesHandler) Handle(ctx context.Context, b []byte) error {
	c, err := DecodeCandle(b)
	if err != nil {
		h.metrics.RecordError("candle_decode")
		return err
	}
	if !c.Timestamp.IsZero() {
		h.metrics.RecordLatency("candle_e2e", time.Since(c.Timestamp).Seconds())
	}

	res, err := h.engine.Tick(ctx, c.Symbol, c)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		h.logger.Error("tick failed", logger.String("symbol", c.Symbol), logger.Error(err))
		return nil
	}
	if res.Intent != nil {
		h.logger.Debug("tick produced intent", logger.String("symbol", c.Symbol), logger.String("intent_id", res.Intent.ID))
	}
	return nil
}

type wireCandle struct {
	Symbol    string          `json:"symbol"`
	Timestamp json.RawMessage `json:"timestamp"`
	Open      float64         `json:"open"`
	High      float64         `json:"high"`
	Low       float64         `json:"low"`
	Close     float64         `json:"close"`
	Volume    float64         `json:"volume"`
}

// DecodeCandle parses one candle message. The timestamp may be unix seconds,
// unix milliseconds or an RFC3339 string.
func DecodeCandle(b []byte) (models.Candle, error) {
	var w wireCandle
	if err := json.Unmarshal(b, &w); err != nil {
		return models.Candle{}, fmt.Errorf("decode candle: %w", err)
	}
	if w.Symbol == "" {
		return models.Candle{}, errors.New("decode candle: missing symbol")
	}
	if w.Close <= 0 {
		return models.Candle{}, fmt.Errorf("decode candle %s: close must be positive", w.Symbol)
	}
	c := models.Candle{
		Symbol: w.Symbol,
		Open:   w.Open,
		High:   w.High,
		Low:    w.Low,
		Close:  w.Close,
		Volume: w.Volume,
	}
	if raw := bytes.TrimSpace(w.Timestamp); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		ts, ok := util.ParseTime(strings.Trim(string(raw), `"`))
		if !ok {
			return models.Candle{}, fmt.Errorf("decode candle %s: bad timestamp %s", w.Symbol, raw)
		}
		c.Timestamp = ts
	}
	return c, nil
}
