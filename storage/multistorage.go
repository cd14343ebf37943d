package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/private-content-market/interfaces"
)

// MultiStorageBackend implements interfaces.ObjectStore over several backends.
// Writes must reach every backend; reads fall back through the list in order.
type MultiStorageBackend struct {
	backends []interfaces.ObjectStore
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend.
func NewMultiStorageBackend(backends []interfaces.ObjectStore, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Get returns the object from the first backend that has it.
// Returns ErrContentNotFound only if every backend answered not found.
func (m *MultiStorageBackend) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return interfaces.StoredObject{}, err
	}

	start := time.Now()
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key))
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		obj, err := backend.Get(ctx, key)
		if err == nil {
			m.log.Debug("Fetched object",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return obj, nil
		}
		if errors.Is(err, interfaces.ErrContentNotFound) {
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("key", key),
			"err", err)
	}

	if len(errs) == 0 {
		return interfaces.StoredObject{}, interfaces.ErrContentNotFound
	}

	m.log.Error("No backend could serve object",
		slog.String("key", key),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return interfaces.StoredObject{}, fmt.Errorf("%w: all backends failed to fetch %s: %v", interfaces.ErrBackendUnavailable, key, errors.Join(errs...))
}

// Put writes the object to every backend. A failure on any backend fails the write:
// a backend left behind would keep serving the previous cipher text through fallback.
func (m *MultiStorageBackend) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return err
	}
	if len(m.backends) == 0 {
		return fmt.Errorf("%w: no storage backends configured", interfaces.ErrBackendUnavailable)
	}

	start := time.Now()
	var errs []error

	for _, backend := range m.backends {
		if err := backend.Put(ctx, key, obj); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key),
				"err", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %d of %d backends failed to store %s: %v", interfaces.ErrBackendUnavailable, len(errs), len(m.backends), key, errors.Join(errs...))
	}

	m.log.Debug("Stored object",
		slog.String("key", key),
		slog.Int("backends", len(m.backends)),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Available checks if every backend is available, since writes need all of them.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	if len(m.backends) == 0 {
		return false
	}
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			return false
		}
	}
	return true
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns a combined location URI from all backends.
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
