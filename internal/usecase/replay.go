package usecase

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"Areopagus/pkg/logger"
)

// maxReplayLine bounds one JSON line of a replay file.
const maxReplayLine = 1 << 20

// ReplaySummary counts what a replay produced.
type ReplaySummary struct {
	Candles    int            `json:"candles"`
	Malformed  int            `json:"malformed"`
	Unrouted   int            `json:"unrouted"`
	Decisions  int            `json:"decisions"`
	Intents    int            `json:"intents"`
	Skipped    map[string]int `json:"skipped"`
	Rejections map[string]int `json:"rejections"`
}

// Replay feeds newline-delimited candles through the engine in file order.
// Undecodable lines and candles for symbols without a council are counted and skipped;
// any other engine error aborts the replay.
func Replay(ctx context.Context, engine *Engine, r io.Reader, l *logger.Logger) (*ReplaySummary, error) {
	if l == nil {
		l = logger.Nop()
	}
	sum := &ReplaySummary{Skipped: map[string]int{}, Rejections: map[string]int{}}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		candle, err := DecodeCandle(b)
		if err != nil {
			sum.Malformed++
			l.Warn("skipping malformed candle", logger.Int("line", line), logger.Error(err))
			continue
		}
		sum.Candles++

		res, err := engine.Tick(ctx, candle.Symbol, candle)
		if err != nil {
			if errors.Is(err, ErrUnknownSymbol) {
				sum.Unrouted++
				continue
			}
			return sum, fmt.Errorf("replay line %d: %w", line, err)
		}
		if res.Decision != nil {
			sum.Decisions++
		}
		if res.Intent != nil {
			sum.Intents++
		}
		if res.Skipped != "" {
			sum.Skipped[res.Skipped]++
		}
		if res.Verdict != nil && !res.Verdict.Approved {
			sum.Rejections[res.Verdict.Rule]++
		}
	}
	if err := sc.Err(); err != nil {
		return sum, fmt.Errorf("read replay input: %w", err)
	}
	return sum, nil
}
