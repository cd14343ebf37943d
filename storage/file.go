package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/private-content-market/interfaces"
)

// FileBackend implements a storage backend using the local file system.
// Every key is one JSON file directly under the base directory.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file storage backend using the specified base directory.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Get reads the object stored under key.
// Returns ErrContentNotFound if the file doesn't exist.
func (b *FileBackend) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return interfaces.StoredObject{}, err
	}

	filePath := filepath.Join(b.baseDir, key)
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return interfaces.StoredObject{}, interfaces.ErrContentNotFound
	}
	if err != nil {
		return interfaces.StoredObject{}, fmt.Errorf("%w: failed to read file: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Fetched object from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return decodeObject(data)
}

// Put writes the object to a temporary file and renames it over key,
// so readers never observe a partially written object.
func (b *FileBackend) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return err
	}

	data, err := encodeObject(obj)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.baseDir, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temporary file: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write file: %v", interfaces.ErrBackendUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to write file: %v", interfaces.ErrBackendUnavailable, err)
	}

	filePath := filepath.Join(b.baseDir, key)
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("%w: failed to replace file: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored object in file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}
