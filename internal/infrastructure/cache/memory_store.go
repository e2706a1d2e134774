package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

// MemoryStore provides an in-memory key-value store using go-cache. When a snapshot
// path is configured every write is flushed to that file and the file is loaded at
// start, so values survive a process restart.
type MemoryStore struct {
	mu           sync.Mutex
	cache        *gocache.Cache
	snapshotPath string
	logger       *zap.Logger
}

// NewMemoryStore creates an in-memory store.
//
// Parameters:
//   - snapshotPath: File persisting the store; empty keeps values in memory only
//   - logger: Zap logger for store operations
//
// Returns:
//   - *MemoryStore: In-memory store
//   - error: Snapshot load error other than a missing file
func NewMemoryStore(snapshotPath string, logger *zap.Logger) (*MemoryStore, error) {
	store := &MemoryStore{
		cache:        gocache.New(gocache.NoExpiration, 0),
		snapshotPath: snapshotPath,
		logger:       logger,
	}

	if snapshotPath != "" {
		if err := os.MkdirAll(filepath.Dir(snapshotPath), 0o755); err != nil {
			return nil, err
		}

		if err := store.cache.LoadFile(snapshotPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		logger.Info("memory store snapshot loaded",
			zap.String("path", snapshotPath),
			zap.Int("items", store.cache.ItemCount()))
	}

	return store, nil
}

// Get retrieves a value by key.
//
// Returns:
//   - []byte: Stored value if found
//   - error: ports.ErrKeyNotFound if key is not present
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	tracer := otel.Tracer("store")
	_, span := tracer.Start(ctx, "MemoryStore.Get")

	defer span.End()

	span.SetAttributes(attribute.String("store.key", key))

	if value, found := m.cache.Get(key); found {
		span.SetAttributes(attribute.Bool("store.found", true))

		if data, ok := value.([]byte); ok {
			return data, nil
		}
	}

	span.SetAttributes(attribute.Bool("store.found", false))
	m.logger.Debug("memory store miss", zap.String("key", key))

	return nil, ports.ErrKeyNotFound
}

// Set stores a value under key and flushes the snapshot.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	tracer := otel.Tracer("store")
	_, span := tracer.Start(ctx, "MemoryStore.Set")

	defer span.End()

	span.SetAttributes(
		attribute.String("store.key", key),
		attribute.Int("store.value_size", len(value)),
	)

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Set(key, stored, gocache.NoExpiration)
	m.logger.Debug("memory store set", zap.String("key", key))

	return m.flushLocked()
}

// Delete removes a key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	tracer := otel.Tracer("store")
	_, span := tracer.Start(ctx, "MemoryStore.Delete")

	defer span.End()

	span.SetAttributes(attribute.String("store.key", key))

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Delete(key)

	return m.flushLocked()
}

// Clear removes every key.
func (m *MemoryStore) Clear(ctx context.Context) error {
	tracer := otel.Tracer("store")
	_, span := tracer.Start(ctx, "MemoryStore.Clear")

	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Flush()
	m.logger.Info("memory store cleared")

	return m.flushLocked()
}

func (m *MemoryStore) flushLocked() error {
	if m.snapshotPath == "" {
		return nil
	}

	tmp := m.snapshotPath + ".tmp"

	if err := m.cache.SaveFile(tmp); err != nil {
		return err
	}

	return os.Rename(tmp, m.snapshotPath)
}
