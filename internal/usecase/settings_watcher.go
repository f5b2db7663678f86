package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"Areopagus/pkg/logger"
)

// SettingsTarget accepts runtime threshold updates.
type SettingsTarget interface {
	UpdateSettings(values map[string]float64) []string
}

// SettingsWatcher re-reads a JSON object of threshold overrides, e.g.
// {"MAX_POSITION_SIZE_PCT": 0.02}, and applies it whenever the file changes.
type SettingsWatcher struct {
	path     string
	interval time.Duration
	target   SettingsTarget
	logger   *logger.Logger

	modTime time.Time
	size    int64
}

func NewSettingsWatcher(path string, interval time.Duration, target SettingsTarget, l *logger.Logger) *SettingsWatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if l == nil {
		l = logger.Nop()
	}
	return &SettingsWatcher{path: path, interval: interval, target: target, logger: l}
}

// Reload applies the file if it changed since the last successful read and
// returns the keys that were applied. A missing file is not an error.
func (w *SettingsWatcher) Reload() ([]string, error) {
	info, err := os.Stat(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat settings: %w", err)
	}
	if info.ModTime().Equal(w.modTime) && info.Size() == w.size {
		return nil, nil
	}

	raw, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode settings %s: %w", w.path, err)
	}
	// the file may carry non-numeric keys for other consumers
	values := make(map[string]float64, len(doc))
	for k, v := range doc {
		if f, ok := v.(float64); ok {
			values[k] = f
		}
	}
	w.modTime, w.size = info.ModTime(), info.Size()

	applied := w.target.UpdateSettings(values)
	if len(applied) > 0 {
		w.logger.Info("runtime settings applied", logger.Strings("keys", applied), logger.String("file", w.path))
	}
	return applied, nil
}

// Run polls until ctx is done.
func (w *SettingsWatcher) Run(ctx context.Context) {
	if _, err := w.Reload(); err != nil {
		w.logger.Error("failed to load runtime settings", logger.Error(err))
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Reload(); err != nil {
				w.logger.Error("failed to load runtime settings", logger.Error(err))
			}
		}
	}
}
