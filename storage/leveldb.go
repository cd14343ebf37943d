package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ruteri/private-content-market/interfaces"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// objectKeyPrefix namespaces object records inside the database.
var objectKeyPrefix = []byte("obj:")

// LevelDBBackend implements a storage backend on an embedded LevelDB database.
type LevelDBBackend struct {
	db          *leveldb.DB
	dir         string
	log         *slog.Logger
	locationURI string
}

// NewLevelDBBackend opens or creates the database in dir.
func NewLevelDBBackend(dir string, log *slog.Logger) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{
		ErrorIfMissing: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", dir, err)
	}

	return &LevelDBBackend{
		db:          db,
		dir:         dir,
		log:         log,
		locationURI: fmt.Sprintf("leveldb://%s", dir),
	}, nil
}

// Get reads the object stored under key.
func (b *LevelDBBackend) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return interfaces.StoredObject{}, err
	}

	data, err := b.db.Get(b.dbKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return interfaces.StoredObject{}, interfaces.ErrContentNotFound
	}
	if err != nil {
		return interfaces.StoredObject{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	return decodeObject(data)
}

// Put replaces the object stored under key. Writes are synced to disk.
func (b *LevelDBBackend) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return err
	}

	data, err := encodeObject(obj)
	if err != nil {
		return err
	}

	if err := b.db.Put(b.dbKey(key), data, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored object in leveldb",
		slog.String("dir", b.dir),
		slog.String("key", key),
		slog.Int("size", len(data)))
	return nil
}

// Available reports whether the database is still open.
func (b *LevelDBBackend) Available(ctx context.Context) bool {
	if _, err := b.db.GetProperty("leveldb.num-files-at-level0"); err != nil {
		b.log.Debug("LevelDB backend unavailable", "err", err)
		return false
	}
	return true
}

// Close releases the database.
func (b *LevelDBBackend) Close() error {
	return b.db.Close()
}

// Name returns a unique identifier for this storage backend.
func (b *LevelDBBackend) Name() string {
	return fmt.Sprintf("leveldb-%s", filepath.Base(b.dir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *LevelDBBackend) LocationURI() string {
	return b.locationURI
}

func (b *LevelDBBackend) dbKey(key string) []byte {
	return append(append([]byte(nil), objectKeyPrefix...), key...)
}
