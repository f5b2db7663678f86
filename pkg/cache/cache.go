package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss is returned by Get for keys that are absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a keyed value store with expiry and advisory locks. Strings and
// byte slices are stored verbatim and everything else as JSON, so a
// MemoryStore and a RedisStore can be swapped under the same caller.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores value under key. A non-positive ttl never expires.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// TryLock takes key for ttl unless someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return json.Marshal(value)
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *[]byte:
		*d = append((*d)[:0], data...)
	case *string:
		*d = string(data)
	default:
		return json.Unmarshal(data, dest)
	}
	return nil
}
