package interfaces

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"regexp"
)

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	// Validate scheme is supported
	scheme := parsed.Scheme
	switch scheme {
	case "memory", "file", "s3", "ipfs", "vault", "leveldb", "http", "https":
		// Valid scheme
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme: %s", ErrInvalidLocationURI, scheme)
	}

	// Parse authentication info if present
	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var storageKeyRegex = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateStorageKey checks that a key is safe to use as a file name, object key or KV path.
func ValidateStorageKey(key string) error {
	if !storageKeyRegex.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// ObjectStore is the encrypted object store boundary.
// A Put with an existing key fully replaces the prior object; there is no merge.
type ObjectStore interface {
	// Put stores the object under key, overwriting any previous value.
	Put(ctx context.Context, key string, obj StoredObject) error

	// Get retrieves the object stored under key.
	// Returns ErrContentNotFound if the key has never been written.
	Get(ctx context.Context, key string) (StoredObject, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// ObjectStoreFactory creates object store backends.
type ObjectStoreFactory interface {
	// StoreFor creates backend from URI.
	// Supports memory://, file://, s3://, ipfs://, vault://, leveldb://, http(s)://
	StoreFor(locationURI StorageBackendLocation) (ObjectStore, error)

	// CreateMultiStore creates aggregated storage backend.
	CreateMultiStore(locationURIs []StorageBackendLocation) (ObjectStore, error)

	// WithTLSAuth configures TLS client authentication.
	WithTLSAuth(func() (tls.Certificate, error)) ObjectStoreFactory
}
