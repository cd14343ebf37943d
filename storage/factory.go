package storage

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ruteri/private-content-market/interfaces"
)

// StorageBackendFactory creates object store backends from URI strings and manages
// multi-backend configurations for redundant storage.
type StorageBackendFactory struct {
	log         *slog.Logger
	certGetter  func() (tls.Certificate, error)
	memoryMu    *sync.Mutex
	memoryStore map[string]*MemoryBackend
}

// NewStorageBackendFactory creates a new factory instance that can create storage backends.
func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageBackendFactory{
		log:         logger,
		memoryMu:    &sync.Mutex{},
		memoryStore: make(map[string]*MemoryBackend),
	}
}

// WithTLSAuth returns a factory whose vault:// and https:// backends present the
// client certificate returned by getter.
func (sf *StorageBackendFactory) WithTLSAuth(getter func() (tls.Certificate, error)) interfaces.ObjectStoreFactory {
	clone := *sf
	clone.certGetter = getter
	return &clone
}

// StoreFor creates a storage backend from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - memory://name - In-process map, shared by name within this factory
//   - file:///path - Local directory, one file per key
//   - s3://[KEY:SECRET@]bucket/prefix?region=&endpoint=&path_style=&disable_ssl=&create_bucket=
//   - vault://host:port/mount/path?token=&tls=
//   - ipfs://host:port/root?timeout=30s - IPFS mutable file system
//   - leveldb:///path - Embedded LevelDB database
//   - http(s)://host:port - Object store HTTP service
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *StorageBackendFactory) StoreFor(location interfaces.StorageBackendLocation) (interfaces.ObjectStore, error) {
	u, err := url.Parse(location.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "memory":
		return sf.createMemoryBackend(u), nil
	case "file":
		return sf.createFileBackend(u)
	case "s3":
		return sf.createS3Backend(u)
	case "vault":
		return sf.createVaultBackend(u)
	case "ipfs":
		return sf.createIPFSBackend(u)
	case "leveldb":
		return sf.createLevelDBBackend(u)
	case "http", "https":
		return sf.createHTTPBackend(u)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiStore creates a multi-storage backend from a list of location URIs.
// Unlike a best-effort mirror, every URI must produce a backend: a silently dropped
// backend would miss writes that the others accept.
func (sf *StorageBackendFactory) CreateMultiStore(locationURIs []interfaces.StorageBackendLocation) (interfaces.ObjectStore, error) {
	if len(locationURIs) == 0 {
		return nil, fmt.Errorf("no storage backends configured")
	}

	backends := make([]interfaces.ObjectStore, 0, len(locationURIs))
	for _, loc := range locationURIs {
		backend, err := sf.StoreFor(loc)
		if err != nil {
			sf.log.Error("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", redactURI(loc.Raw)))
			return nil, fmt.Errorf("failed to create backend %s: %w", redactURI(loc.Raw), err)
		}
		backends = append(backends, backend)
	}

	if len(backends) == 1 {
		return backends[0], nil
	}
	return NewMultiStorageBackend(backends, sf.log), nil
}

// ParseLocations validates a list of raw URIs.
func ParseLocations(raw []string) ([]interfaces.StorageBackendLocation, error) {
	locations := make([]interfaces.StorageBackendLocation, 0, len(raw))
	for _, r := range raw {
		loc, err := interfaces.NewStorageBackendLocation(r)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// createMemoryBackend returns the shared in-memory backend for the URI host.
// URI format: memory://name
func (sf *StorageBackendFactory) createMemoryBackend(u *url.URL) *MemoryBackend {
	name := u.Host
	if name == "" {
		name = "default"
	}

	sf.memoryMu.Lock()
	defer sf.memoryMu.Unlock()

	if b, ok := sf.memoryStore[name]; ok {
		return b
	}
	b := NewMemoryBackend(name, sf.log)
	sf.memoryStore[name] = b
	return b
}

// createFileBackend creates a file system storage backend.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *StorageBackendFactory) createFileBackend(u *url.URL) (interfaces.ObjectStore, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", u.String()))

	path := localPath(u)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, u.String())
	}

	return NewFileBackend(path, sf.log)
}

// createLevelDBBackend opens an embedded database.
// URI format: leveldb:///absolute/path or leveldb://./relative/path
func (sf *StorageBackendFactory) createLevelDBBackend(u *url.URL) (interfaces.ObjectStore, error) {
	sf.log.Debug("Creating leveldb backend", slog.String("uri", u.String()))

	path := localPath(u)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in leveldb URI: %s", interfaces.ErrInvalidLocationURI, u.String())
	}

	return NewLevelDBBackend(path, sf.log)
}

// createS3Backend creates an S3 or S3-compatible storage backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix?region=us-west-2&endpoint=minio:9000&path_style=true
func (sf *StorageBackendFactory) createS3Backend(u *url.URL) (interfaces.ObjectStore, error) {
	sf.log.Debug("Creating S3 backend", slog.String("uri", redactURI(u.String())))

	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in s3 URI", interfaces.ErrInvalidLocationURI)
	}

	query := u.Query()
	cfg := S3Config{
		Bucket:       u.Host,
		Prefix:       strings.TrimPrefix(u.Path, "/"),
		Region:       query.Get("region"),
		Endpoint:     query.Get("endpoint"),
		PathStyle:    boolParam(query, "path_style"),
		DisableSSL:   boolParam(query, "disable_ssl"),
		CreateBucket: boolParam(query, "create_bucket"),
	}

	if u.User != nil {
		cfg.AccessKey = u.User.Username()
		cfg.SecretKey, _ = u.User.Password()
		sf.log.Debug("Using embedded credentials for write access")
	}

	return NewS3Backend(cfg, sf.log)
}

// createVaultBackend creates a Vault KV v2 backend.
// URI format: vault://vault.example.com:8200/secret/market?tls=true&token=...
// Without a token parameter the client falls back to VAULT_TOKEN.
func (sf *StorageBackendFactory) createVaultBackend(u *url.URL) (interfaces.ObjectStore, error) {
	sf.log.Debug("Creating Vault backend", slog.String("uri", redactURI(u.String())))

	query := u.Query()
	scheme := "http"
	if boolParam(query, "tls") || sf.certGetter != nil {
		scheme = "https"
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	cfg := VaultConfig{
		Address:   fmt.Sprintf("%s://%s", scheme, u.Host),
		MountPath: parts[0],
		Token:     query.Get("token"),
	}
	if len(parts) > 1 {
		cfg.DataPath = parts[1]
	}

	if sf.certGetter != nil {
		cert, err := sf.certGetter()
		if err != nil {
			return nil, fmt.Errorf("failed to get client certificate: %w", err)
		}
		cfg.ClientCert = &cert
	}

	return NewVaultBackend(cfg, sf.log)
}

// createIPFSBackend creates an IPFS MFS storage backend.
// URI format: ipfs://host:port/root?timeout=30s
func (sf *StorageBackendFactory) createIPFSBackend(u *url.URL) (interfaces.ObjectStore, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", u.String()))

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5001" // Default IPFS API port
	}

	timeout := 30 * time.Second
	if raw := u.Query().Get("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q: %v", interfaces.ErrInvalidLocationURI, raw, err)
		}
		timeout = parsed
	}

	return NewIPFSBackend(host, port, u.Path, timeout, sf.log)
}

// createHTTPBackend creates a client for the object store HTTP service.
// URI format: http://host:port or https://host:port
func (sf *StorageBackendFactory) createHTTPBackend(u *url.URL) (interfaces.ObjectStore, error) {
	sf.log.Debug("Creating HTTP backend", slog.String("uri", u.String()))

	base := fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, strings.TrimSuffix(u.Path, "/"))
	if u.Scheme == "https" && sf.certGetter != nil {
		cert, err := sf.certGetter()
		if err != nil {
			return nil, fmt.Errorf("failed to get client certificate: %w", err)
		}
		return NewHTTPSBackendWithCert(base, cert, sf.log), nil
	}

	return NewHTTPBackend(base, nil, sf.log), nil
}

func localPath(u *url.URL) string {
	path := u.Path
	if u.Host != "" {
		path = u.Host + "/" + strings.TrimPrefix(path, "/")
	}
	return path
}

func boolParam(query url.Values, name string) bool {
	value := query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// redactURI hides passwords and tokens before a URI is logged.
func redactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid uri>"
	}
	query := u.Query()
	if query.Has("token") {
		query.Set("token", "***")
		u.RawQuery = query.Encode()
	}
	return u.Redacted()
}
