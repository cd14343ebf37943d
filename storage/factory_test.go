package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/private-content-market/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ interfaces.ObjectStoreFactory = (*StorageBackendFactory)(nil)

func TestStorageBackendFactory_StoreFor(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		uri      string
		wantType interface{}
		wantName string
	}{
		{name: "memory", uri: "memory://dev", wantType: &MemoryBackend{}, wantName: "memory-dev"},
		{name: "file", uri: "file://" + filepath.Join(dir, "objects"), wantType: &FileBackend{}, wantName: "file-objects"},
		{name: "leveldb", uri: "leveldb://" + filepath.Join(dir, "db"), wantType: &LevelDBBackend{}, wantName: "leveldb-db"},
		{name: "s3 minio", uri: "s3://minio:minio123@market/objects?endpoint=localhost:9000&path_style=true&disable_ssl=true", wantType: &S3Backend{}, wantName: "s3-market"},
		{name: "vault", uri: "vault://127.0.0.1:8200/secret/market?token=root", wantType: &VaultBackend{}, wantName: "vault-secret-market"},
		{name: "ipfs", uri: "ipfs://127.0.0.1:5001/market?timeout=5s", wantType: &IPFSBackend{}, wantName: "ipfs-127.0.0.1-5001"},
		{name: "http", uri: "http://objectstore:8080", wantType: &HTTPBackend{}, wantName: "http-objectstore:8080"},
	}

	factory := NewStorageBackendFactory(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := interfaces.NewStorageBackendLocation(tt.uri)
			require.NoError(t, err)

			backend, err := factory.StoreFor(loc)
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, backend)
			assert.Equal(t, tt.wantName, backend.Name())

			if closer, ok := backend.(*LevelDBBackend); ok {
				closer.Close()
			}
		})
	}
}

func TestStorageBackendFactory_S3LocationHidesSecret(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger())
	loc, err := interfaces.NewStorageBackendLocation("s3://minio:topsecret@market/objects?endpoint=localhost:9000")
	require.NoError(t, err)

	backend, err := factory.StoreFor(loc)
	require.NoError(t, err)
	assert.NotContains(t, backend.LocationURI(), "topsecret")
	assert.NotContains(t, redactURI("vault://h:8200/secret?token=abc"), "abc")
}

func TestStorageBackendFactory_MemoryIsSharedByName(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger())

	locs, err := ParseLocations([]string{"memory://shared", "memory://shared", "memory://other"})
	require.NoError(t, err)

	a, err := factory.StoreFor(locs[0])
	require.NoError(t, err)
	b, err := factory.StoreFor(locs[1])
	require.NoError(t, err)
	c, err := factory.StoreFor(locs[2])
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestStorageBackendFactory_Errors(t *testing.T) {
	_, err := interfaces.NewStorageBackendLocation("github://owner/repo")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	factory := NewStorageBackendFactory(testLogger())

	_, err = factory.StoreFor(interfaces.StorageBackendLocation{Raw: "ftp://host/path", Scheme: "ftp"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	loc, err := interfaces.NewStorageBackendLocation("ipfs://127.0.0.1:5001/?timeout=soon")
	require.NoError(t, err)
	_, err = factory.StoreFor(loc)
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = factory.CreateMultiStore(nil)
	assert.Error(t, err)

	// One bad location fails the whole multi store
	good, err := interfaces.NewStorageBackendLocation("memory://ok")
	require.NoError(t, err)
	_, err = factory.CreateMultiStore([]interfaces.StorageBackendLocation{good, loc})
	assert.Error(t, err)
}

func TestStorageBackendFactory_CreateMultiStore(t *testing.T) {
	factory := NewStorageBackendFactory(testLogger())

	locs, err := ParseLocations([]string{"memory://one"})
	require.NoError(t, err)
	single, err := factory.CreateMultiStore(locs)
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, single)

	locs, err = ParseLocations([]string{"memory://one", "memory://two"})
	require.NoError(t, err)
	multi, err := factory.CreateMultiStore(locs)
	require.NoError(t, err)
	assert.IsType(t, &MultiStorageBackend{}, multi)
}

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)))
	assert.True(t, isS3NotFound(awserr.NewRequestFailure(awserr.New("NotFound", "", nil), 404, "req-1")))
	assert.False(t, isS3NotFound(awserr.New("AccessDenied", "no", nil)))
	assert.False(t, isS3NotFound(errors.New("connection refused")))
}

func TestObjectFromVaultData(t *testing.T) {
	obj, err := objectFromVaultData(map[string]interface{}{
		"originalName": "a.pdf",
		"mimeType":     "application/pdf",
		"content":      "AQID",
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.StoredObject{OriginalName: "a.pdf", MimeType: "application/pdf", CipherText: []byte{1, 2, 3}}, obj)

	_, err = objectFromVaultData(map[string]interface{}{"content": 42})
	assert.Error(t, err)

	_, err = objectFromVaultData(map[string]interface{}{"content": "!!"})
	assert.Error(t, err)
}
