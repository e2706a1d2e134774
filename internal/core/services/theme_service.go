package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/core/domain"
	"github.com/sean-rowe/best-bike-day/internal/core/observable"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
)

// ThemeKey is the store key holding the selected theme mode.
const ThemeKey = "theme_mode"

// ThemeSettings is the presentation theme configuration. It is constructed once
// and handed to presentation adapters; changes flow through its observable.
type ThemeSettings struct {
	mode   *observable.Value[domain.ThemeMode]
	store  ports.KeyValueStore
	logger *zap.Logger
}

// NewThemeSettings loads the persisted mode, defaulting to domain.ThemeSystem.
func NewThemeSettings(ctx context.Context, store ports.KeyValueStore, logger *zap.Logger) *ThemeSettings {
	mode := domain.ThemeSystem

	data, err := store.Get(ctx, ThemeKey)

	switch {
	case err == nil:
		if parsed, parseErr := domain.ParseThemeMode(string(data)); parseErr == nil {
			mode = parsed
		}
	case !errors.Is(err, ports.ErrKeyNotFound):
		logger.Warn("failed to load theme mode", zap.Error(err))
	}

	return &ThemeSettings{
		mode:   observable.NewValue(mode),
		store:  store,
		logger: logger,
	}
}

// Mode returns the current theme mode.
func (t *ThemeSettings) Mode() domain.ThemeMode {
	return t.mode.Get()
}

// Subscribe streams theme changes.
func (t *ThemeSettings) Subscribe(ctx context.Context) <-chan domain.ThemeMode {
	return t.mode.Subscribe(ctx)
}

// SetMode persists and publishes mode. The published mode changes only after the write.
func (t *ThemeSettings) SetMode(ctx context.Context, mode domain.ThemeMode) error {
	if _, err := domain.ParseThemeMode(string(mode)); err != nil {
		return err
	}

	if err := t.store.Set(ctx, ThemeKey, []byte(mode)); err != nil {
		t.logger.Error("failed to persist theme mode", zap.Error(err))
		return domain.NewStorageError("write", err)
	}

	t.mode.Set(mode)

	return nil
}
