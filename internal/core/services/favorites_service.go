package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/observable"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

// FavoritesKey is the store key holding the JSON-encoded favorites list.
const FavoritesKey = "favorite_locations"

// Favorites keeps an ordered, durable set of locations unique by (name, country).
// Observers see a new list only after the durable write succeeded; a failed read
// or write leaves the published list unchanged.
type Favorites struct {
	mu     sync.Mutex
	store  ports.KeyValueStore
	list   *observable.Value[[]domain.Location]
	logger *zap.Logger
}

// NewFavorites creates the favorites service and loads the persisted list.
// An unreadable list starts the observable empty.
//
// Parameters:
//   - ctx: Context for the initial load
//   - store: Durable key-value store
//   - logger: Zap logger for storage failures
//
// Returns:
//   - *Favorites: Favorites service
func NewFavorites(ctx context.Context, store ports.KeyValueStore, logger *zap.Logger) *Favorites {
	f := &Favorites{
		store:  store,
		list:   observable.NewValue([]domain.Location{}),
		logger: logger,
	}

	if favorites, err := f.load(ctx); err != nil {
		logger.Warn("failed to load favorites, starting empty", zap.Error(err))
	} else {
		f.list.Set(favorites)
	}

	return f
}

// List returns the current favorites in insertion order.
func (f *Favorites) List() []domain.Location {
	return cloneLocations(f.list.Get())
}

// Subscribe streams the favorites list after every committed change.
func (f *Favorites) Subscribe(ctx context.Context) <-chan []domain.Location {
	return f.list.Subscribe(ctx)
}

// Contains reports whether a favorite with the same identity exists.
func (f *Favorites) Contains(location domain.Location) bool {
	for _, favorite := range f.list.Get() {
		if favorite.SameIdentity(location) {
			return true
		}
	}

	return false
}

// Add appends location unless a favorite with the same identity exists.
func (f *Favorites) Add(ctx context.Context, location domain.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	favorites, err := f.load(ctx)

	if err != nil {
		return err
	}

	for _, favorite := range favorites {
		if favorite.SameIdentity(location) {
			return nil
		}
	}

	return f.save(ctx, append(favorites, location))
}

// Remove deletes every favorite with the identity of location.
func (f *Favorites) Remove(ctx context.Context, location domain.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	favorites, err := f.load(ctx)

	if err != nil {
		return err
	}

	kept := make([]domain.Location, 0, len(favorites))

	for _, favorite := range favorites {
		if !favorite.SameIdentity(location) {
			kept = append(kept, favorite)
		}
	}

	if len(kept) == len(favorites) {
		return nil
	}

	return f.save(ctx, kept)
}

func (f *Favorites) load(ctx context.Context) ([]domain.Location, error) {
	data, err := f.store.Get(ctx, FavoritesKey)

	if errors.Is(err, ports.ErrKeyNotFound) {
		return []domain.Location{}, nil
	}

	if err != nil {
		f.logger.Error("favorites read failed", zap.Error(err))
		return nil, domain.NewStorageError("read", err)
	}

	var favorites []domain.Location

	if err := json.Unmarshal(data, &favorites); err != nil {
		f.logger.Error("favorites decode failed", zap.Error(err))
		return nil, domain.NewStorageError("decode", err)
	}

	if favorites == nil {
		favorites = []domain.Location{}
	}

	return favorites, nil
}

func (f *Favorites) save(ctx context.Context, favorites []domain.Location) error {
	data, err := json.Marshal(favorites)

	if err != nil {
		return domain.NewStorageError("encode", err)
	}

	if err := f.store.Set(ctx, FavoritesKey, data); err != nil {
		f.logger.Error("favorites write failed", zap.Error(err))
		return domain.NewStorageError("write", err)
	}

	f.list.Set(cloneLocations(favorites))
	f.logger.Debug("favorites updated", zap.Int("count", len(favorites)))

	return nil
}

func cloneLocations(locations []domain.Location) []domain.Location {
	cloned := make([]domain.Location, len(locations))
	copy(cloned, locations)

	return cloned
}
