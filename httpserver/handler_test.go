package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ruteri/private-content-market/interfaces"
	"github.com/ruteri/private-content-market/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unavailableStore fails every operation.
type unavailableStore struct{}

func (unavailableStore) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	return interfaces.StoredObject{}, interfaces.ErrBackendUnavailable
}

func (unavailableStore) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	return interfaces.ErrBackendUnavailable
}

func (unavailableStore) Available(ctx context.Context) bool { return false }
func (unavailableStore) Name() string                       { return "unavailable" }
func (unavailableStore) LocationURI() string                { return "memory://unavailable" }

func newTestServer(t *testing.T, store interfaces.ObjectStore) *Server {
	t.Helper()
	srv, err := New(&HTTPServerConfig{
		ListenAddr:    "127.0.0.1:0",
		Log:           testLogger(),
		AllowedOrigin: "*",
	}, store)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, reader))
	return w.Result()
}

func TestObjectAPI_PutGet(t *testing.T) {
	store := storage.NewMemoryBackend("objects", testLogger())
	h := newTestServer(t, store).Handler()

	obj := interfaces.StoredObject{OriginalName: "file1.txt", MimeType: "text/plain", CipherText: []byte{0x01, 0xff, 0x00}}
	body, err := json.Marshal(obj)
	require.NoError(t, err)

	resp := do(t, h, http.MethodPut, "/api/objects/abc123", body)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, h, http.MethodGet, "/api/objects/abc123", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	var got interfaces.StoredObject
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, obj, got)

	// Overwrite replaces the whole object
	body, err = json.Marshal(interfaces.StoredObject{CipherText: []byte("new")})
	require.NoError(t, err)
	resp = do(t, h, http.MethodPut, "/api/objects/abc123", body)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	stored, err := store.Get(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, interfaces.StoredObject{CipherText: []byte("new")}, stored)
}

func TestObjectAPI_Errors(t *testing.T) {
	tests := []struct {
		name   string
		store  interfaces.ObjectStore
		method string
		target string
		body   string
		want   int
	}{
		{name: "missing object", method: http.MethodGet, target: "/api/objects/missing", want: http.StatusNotFound},
		{name: "invalid key on get", method: http.MethodGet, target: "/api/objects/a$b", want: http.StatusBadRequest},
		{name: "invalid key on put", method: http.MethodPut, target: "/api/objects/a$b", body: `{}`, want: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPut, target: "/api/objects/abc", body: `{"content": 12`, want: http.StatusBadRequest},
		{name: "store down on get", store: unavailableStore{}, method: http.MethodGet, target: "/api/objects/abc", want: http.StatusServiceUnavailable},
		{name: "store down on put", store: unavailableStore{}, method: http.MethodPut, target: "/api/objects/abc", body: `{}`, want: http.StatusServiceUnavailable},
		{name: "malformed upload", method: http.MethodPost, target: "/api/upload/abc", body: `nope`, want: http.StatusBadRequest},
		{name: "missing upload", method: http.MethodGet, target: "/api/upload/missing", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			if store == nil {
				store = storage.NewMemoryBackend("errors", testLogger())
			}

			var body []byte
			if tt.body != "" {
				body = []byte(tt.body)
			}
			resp := do(t, newTestServer(t, store).Handler(), tt.method, tt.target, body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestUploadAPI(t *testing.T) {
	store := storage.NewMemoryBackend("upload", testLogger())
	h := newTestServer(t, store).Handler()

	upload := `{"originalname":"photo.png","type":"image/png","content":"b64-cipher-text"}`
	resp := do(t, h, http.MethodPost, "/api/upload/0a1b2c", []byte(upload))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Len(t, ack.ETag, 32)

	resp = do(t, h, http.MethodGet, "/api/upload/0a1b2c", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got UploadRequest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, UploadRequest{OriginalName: "photo.png", Type: "image/png", Content: "b64-cipher-text"}, got)

	// Both APIs address the same objects
	obj, err := store.Get(context.Background(), "0a1b2c")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.MimeType)
	assert.Equal(t, []byte("b64-cipher-text"), obj.CipherText)
}

func TestHTTPBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t, storage.NewMemoryBackend("remote", testLogger()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := storage.NewHTTPBackend(ts.URL, ts.Client(), testLogger())
	assert.True(t, client.Available(ctx))

	id := interfaces.ComputeAssetID([]byte("file1"))
	obj := interfaces.StoredObject{OriginalName: "file1", MimeType: "text/plain", CipherText: []byte("sealed")}
	require.NoError(t, client.Put(ctx, id.ContentKey(), obj))

	got, err := client.Get(ctx, id.ContentKey())
	require.NoError(t, err)
	assert.Equal(t, obj, got)

	_, err = client.Get(ctx, id.PublicKeySlotKey())
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	// Draining makes the backend report itself unavailable
	do(t, srv.Handler(), http.MethodGet, "/drain", nil)
	assert.False(t, client.Available(ctx))
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryBackend("health", testLogger()))
	h := srv.Handler()

	status := func(path string) (int, string) {
		resp := do(t, h, http.MethodGet, path, nil)
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, strings.TrimSpace(string(body))
	}

	code, _ := status("/livez")
	assert.Equal(t, http.StatusOK, code)

	code, _ = status("/readyz")
	assert.Equal(t, http.StatusOK, code)

	_, body := status("/drain")
	assert.Equal(t, `{"status":"draining"}`, body)
	_, body = status("/drain")
	assert.Equal(t, `{"status":"already draining"}`, body)
	code, _ = status("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	_, body = status("/undrain")
	assert.Equal(t, `{"status":"ready"}`, body)
	_, body = status("/undrain")
	assert.Equal(t, `{"status":"already ready"}`, body)

	down := newTestServer(t, unavailableStore{}).Handler()
	resp := do(t, down, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMiddleware(t *testing.T) {
	h := newTestServer(t, storage.NewMemoryBackend("mw", testLogger())).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/objects/abc", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "fixed-id", w.Header().Get(RequestIDHeader))
}

func TestObjectMetricsRecorded(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryBackend("metrics", testLogger()))
	h := srv.Handler()

	do(t, h, http.MethodPut, "/api/objects/abc", []byte(`{"content":"AQID"}`))
	do(t, h, http.MethodGet, "/api/objects/abc", nil)
	do(t, h, http.MethodGet, "/api/objects/missing", nil)

	resp := do(t, srv.metricsSrv.Handler(), http.MethodGet, "/metrics", nil)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `content_market_object_writes_total{result="ok"} 1`)
	assert.Contains(t, string(body), `content_market_object_reads_total{result="not_found"} 1`)
	assert.Contains(t, string(body), "content_market_object_written_bytes_total 3")
}
