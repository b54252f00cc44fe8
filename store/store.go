// Package store persists small JSON documents under string keys. Reads
// and writes never fail from the caller's point of view: corrupt or
// missing values load as the caller's default and write failures are
// logged.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pricecmp/config"
)

const (
	KeyHistory    = "search_history"
	KeyFavorites  = "favorites"
	KeyStatistics = "search_stats"
)

const opTimeout = 5 * time.Second

// Backend is a durable key-value area.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

type Store struct {
	backend Backend
	log     *slog.Logger
}

func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{backend: backend, log: logger}
}

// Open builds the backend selected by cfg.
func Open(cfg *config.StoreConfig, logger *slog.Logger) (*Store, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Driver {
	case config.StoreSQLite:
		b, err = OpenSQLite(cfg.Path)
	case config.StoreFile:
		b, err = NewFileBackend(cfg.Path)
	case config.StoreMemory:
		b = NewMemoryBackend()
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	logger.Info("store opened", "driver", cfg.Driver, "path", cfg.Path)
	return New(b, logger), nil
}

// Raw returns the stored bytes for key, or nil when absent or unreadable.
func (s *Store) Raw(key string) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.log.Warn("store read failed", "key", key, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	return data
}

// Save serializes v and writes it under key. Failures are logged only.
func (s *Store) Save(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("store marshal failed", "key", key, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.backend.Put(ctx, key, data); err != nil {
		s.log.Error("store write failed", "key", key, "err", err)
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Load returns the value stored under key, or def when the key is absent or
// the stored text does not decode into T.
func Load[T any](s *Store, key string, def T) T {
	data := s.Raw(key)
	if data == nil {
		return def
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.log.Warn("stored value is corrupt, using default", "key", key, "err", err)
		return def
	}
	return v
}
