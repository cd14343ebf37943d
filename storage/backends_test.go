package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/private-content-market/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// localBackends returns every backend that runs without external services.
func localBackends(t *testing.T) map[string]interfaces.ObjectStore {
	t.Helper()

	fileBackend, err := NewFileBackend(filepath.Join(t.TempDir(), "objects"), testLogger())
	require.NoError(t, err)

	ldb, err := NewLevelDBBackend(filepath.Join(t.TempDir(), "db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { ldb.Close() })

	return map[string]interfaces.ObjectStore{
		"memory":  NewMemoryBackend("test", testLogger()),
		"file":    fileBackend,
		"leveldb": ldb,
	}
}

func TestBackends_ObjectStoreContract(t *testing.T) {
	ctx := context.Background()
	id := interfaces.ComputeAssetID([]byte("file1"))

	for name, backend := range localBackends(t) {
		t.Run(name, func(t *testing.T) {
			assert.True(t, backend.Available(ctx))

			_, err := backend.Get(ctx, id.ContentKey())
			assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

			first := interfaces.StoredObject{
				OriginalName: "report.pdf",
				MimeType:     "application/pdf",
				CipherText:   []byte{0x01, 0x02, 0x03, 0x00, 0xff},
			}
			require.NoError(t, backend.Put(ctx, id.ContentKey(), first))

			got, err := backend.Get(ctx, id.ContentKey())
			require.NoError(t, err)
			assert.Equal(t, first, got)

			// Overwrite fully replaces, with no merge of the previous fields
			second := interfaces.StoredObject{CipherText: []byte("short")}
			require.NoError(t, backend.Put(ctx, id.ContentKey(), second))

			got, err = backend.Get(ctx, id.ContentKey())
			require.NoError(t, err)
			assert.Equal(t, "", got.OriginalName)
			assert.Equal(t, "", got.MimeType)
			assert.Equal(t, []byte("short"), got.CipherText)

			// The key slot is independent of the content key
			_, err = backend.Get(ctx, id.PublicKeySlotKey())
			assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
		})
	}
}

func TestBackends_InvalidKeys(t *testing.T) {
	ctx := context.Background()

	for name, backend := range localBackends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "..", "a/b", "../escape", "with space", "ключ"} {
				err := backend.Put(ctx, key, interfaces.StoredObject{CipherText: []byte("x")})
				assert.ErrorIs(t, err, interfaces.ErrInvalidKey, key)

				_, err = backend.Get(ctx, key)
				assert.ErrorIs(t, err, interfaces.ErrInvalidKey, key)
			}
		})
	}
}

func TestMemoryBackend_Isolation(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend("iso", testLogger())

	payload := []byte("cipher")
	require.NoError(t, backend.Put(ctx, "k", interfaces.StoredObject{CipherText: payload}))
	payload[0] = 'X'

	got, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("cipher"), got.CipherText)

	got.CipherText[0] = 'Y'
	again, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("cipher"), again.CipherText)
	assert.Equal(t, 1, backend.Len())
}

func TestFileBackend_LeavesNoTemporaryFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewFileBackend(dir, testLogger())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, backend.Put(ctx, "abc", interfaces.StoredObject{CipherText: []byte{byte(i)}}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].Name())
}

func TestLevelDBBackend_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")

	backend, err := NewLevelDBBackend(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, "persist", interfaces.StoredObject{OriginalName: "a.txt", CipherText: []byte("ct")}))
	require.NoError(t, backend.Close())
	assert.False(t, backend.Available(ctx))

	reopened, err := NewLevelDBBackend(dir, testLogger())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persist")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.OriginalName)
	assert.Equal(t, []byte("ct"), got.CipherText)
}
