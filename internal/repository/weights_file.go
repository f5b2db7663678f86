package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	domrepo "Areopagus/internal/domain/repository"
)

// FileWeightStore keeps the trust-weight snapshot in a JSON file. Writes go
// to a temp file in the same directory and are renamed into place.
type FileWeightStore struct {
	path string
}

var _ domrepo.WeightStore = (*FileWeightStore)(nil)

func NewFileWeightStore(path string) *FileWeightStore {
	return &FileWeightStore{path: path}
}

func (s *FileWeightStore) Path() string { return s.path }

func (s *FileWeightStore) Load(_ context.Context) (domrepo.WeightSnapshot, error) {
	var snap domrepo.WeightSnapshot
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return snap, domrepo.ErrWeightsNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("read weights file: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("decode weights file %s: %w", s.path, err)
	}
	return snap, nil
}

func (s *FileWeightStore) Save(_ context.Context, snap domrepo.WeightSnapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create weights dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".weights-*.json")
	if err != nil {
		return fmt.Errorf("create temp weights file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write weights: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close weights: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace weights file: %w", err)
	}
	return nil
}
