package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/private-content-market/interfaces"
)

// MemoryBackend keeps objects in process memory. Useful for tests and local development.
type MemoryBackend struct {
	mu          sync.RWMutex
	objects     map[string]interfaces.StoredObject
	name        string
	log         *slog.Logger
	locationURI string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(name string, log *slog.Logger) *MemoryBackend {
	if name == "" {
		name = "default"
	}
	if log == nil {
		log = slog.Default()
	}
	return &MemoryBackend{
		objects:     make(map[string]interfaces.StoredObject),
		name:        name,
		log:         log,
		locationURI: fmt.Sprintf("memory://%s", name),
	}
}

// Get returns a copy of the object stored under key.
func (b *MemoryBackend) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return interfaces.StoredObject{}, err
	}

	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()

	if !ok {
		return interfaces.StoredObject{}, interfaces.ErrContentNotFound
	}
	return cloneObject(obj), nil
}

// Put replaces the object stored under key.
func (b *MemoryBackend) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return err
	}

	b.mu.Lock()
	b.objects[key] = cloneObject(obj)
	b.mu.Unlock()

	b.log.Debug("Stored object in memory",
		slog.String("backend", b.name),
		slog.String("key", key),
		slog.Int("size", len(obj.CipherText)))
	return nil
}

// Len returns the number of stored keys.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Available always reports true.
func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *MemoryBackend) Name() string {
	return fmt.Sprintf("memory-%s", b.name)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *MemoryBackend) LocationURI() string {
	return b.locationURI
}
