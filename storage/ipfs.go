package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/private-content-market/interfaces"
)

// IPFSBackend implements a storage backend on top of the IPFS mutable file system (MFS).
// MFS paths give key-addressed overwrite semantics while the blocks stay in IPFS.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	root        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates a new IPFS storage backend connected to the node API at host:port.
// Objects are written below root in the node's MFS.
func NewIPFSBackend(host, port, root string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	root = "/" + strings.Trim(root, "/")
	if root == "/" {
		root = "/private-content-market"
	}

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSBackend{
		shell:       sh,
		host:        host,
		port:        port,
		root:        root,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", apiURL, root, timeout),
	}, nil
}

// Get reads the object stored under key from MFS.
// Returns ErrContentNotFound if the path doesn't exist or ErrBackendUnavailable
// if the IPFS node is not accessible.
func (b *IPFSBackend) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return interfaces.StoredObject{}, err
	}

	start := time.Now()
	filePath := path.Join(b.root, key)

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return interfaces.StoredObject{}, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.FilesRead(ctx, filePath)
	if err != nil {
		if isIPFSNotFound(err) {
			b.log.Debug("Object not found in IPFS",
				slog.String("path", filePath),
				slog.Duration("duration", time.Since(start)))
			return interfaces.StoredObject{}, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to read from IPFS",
			slog.String("path", filePath),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return interfaces.StoredObject{}, fmt.Errorf("%w: failed to read from IPFS: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return interfaces.StoredObject{}, fmt.Errorf("%w: failed to read data from IPFS: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Fetched object from IPFS",
		slog.String("path", filePath),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return decodeObject(data)
}

// Put writes the object to its MFS path, truncating any previous content.
func (b *IPFSBackend) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return err
	}

	data, err := encodeObject(obj)
	if err != nil {
		return err
	}

	if !b.shell.IsUp() {
		return interfaces.ErrBackendUnavailable
	}

	filePath := path.Join(b.root, key)
	err = b.shell.FilesWrite(ctx, filePath, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return fmt.Errorf("%w: failed to write to IPFS: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored object in IPFS",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func isIPFSNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "no link named")
}
