package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/private-content-market/interfaces"
)

// ObjectsAPIPath is the route prefix served by the object store HTTP service.
const ObjectsAPIPath = "/api/objects/"

// maxObjectResponseSize bounds how much of a response body is read.
const maxObjectResponseSize = 64 << 20

// HTTPBackend is a client for the object store HTTP service.
type HTTPBackend struct {
	baseURL     string
	client      *http.Client
	log         *slog.Logger
	locationURI string
}

// NewHTTPBackend creates a client for the service at baseURL (e.g. http://localhost:8080).
// A nil client gets a default one with a 30 second timeout.
func NewHTTPBackend(baseURL string, client *http.Client, log *slog.Logger) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &HTTPBackend{
		baseURL:     baseURL,
		client:      client,
		log:         log,
		locationURI: baseURL,
	}
}

// NewHTTPSBackendWithCert creates a client that authenticates with a TLS client certificate.
func NewHTTPSBackendWithCert(baseURL string, cert tls.Certificate, log *slog.Logger) *HTTPBackend {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		},
	}
	return NewHTTPBackend(baseURL, client, log)
}

// Get fetches the object stored under key.
func (b *HTTPBackend) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return interfaces.StoredObject{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.objectURL(key), nil)
	if err != nil {
		return interfaces.StoredObject{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return interfaces.StoredObject{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return interfaces.StoredObject{}, interfaces.ErrContentNotFound
	case http.StatusBadRequest:
		return interfaces.StoredObject{}, fmt.Errorf("%w: %s", interfaces.ErrInvalidKey, readErrorBody(resp.Body))
	default:
		return interfaces.StoredObject{}, fmt.Errorf("%w: object store returned status %d: %s", interfaces.ErrBackendUnavailable, resp.StatusCode, readErrorBody(resp.Body))
	}

	var obj interfaces.StoredObject
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxObjectResponseSize)).Decode(&obj); err != nil {
		return interfaces.StoredObject{}, fmt.Errorf("%w: failed to decode response: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Fetched object over HTTP",
		slog.String("url", b.baseURL),
		slog.String("key", key),
		slog.Int("size", len(obj.CipherText)))

	return obj, nil
}

// Put uploads the object under key.
func (b *HTTPBackend) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return err
	}

	data, err := encodeObject(obj)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", interfaces.ErrInvalidKey, readErrorBody(resp.Body))
	default:
		return fmt.Errorf("%w: object store returned status %d: %s", interfaces.ErrBackendUnavailable, resp.StatusCode, readErrorBody(resp.Body))
	}
}

// Available checks the service readiness endpoint.
func (b *HTTPBackend) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/readyz", nil)
	if err != nil {
		return false
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug("Object store service unavailable", "err", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// Name returns a unique identifier for this storage backend.
func (b *HTTPBackend) Name() string {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return "http"
	}
	return fmt.Sprintf("http-%s", u.Host)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *HTTPBackend) LocationURI() string {
	return b.locationURI
}

func (b *HTTPBackend) objectURL(key string) string {
	return b.baseURL + ObjectsAPIPath + url.PathEscape(key)
}

func readErrorBody(body io.Reader) string {
	msg, _ := io.ReadAll(io.LimitReader(body, 1024))
	return strings.TrimSpace(string(msg))
}
