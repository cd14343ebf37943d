package httpserver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/private-content-market/interfaces"
	"github.com/ruteri/private-content-market/metrics"
)

const (
	// maxBodySize is the maximum allowed request body size (8MB).
	// The first deployment accepted around 5MB of encoded content.
	maxBodySize = 8 * 1024 * 1024
)

// UploadRequest is the body of POST /api/upload/{key}.
type UploadRequest struct {
	OriginalName string `json:"originalname"`
	Type         string `json:"type"`
	Content      string `json:"content"`
}

// UploadResponse acknowledges an upload.
type UploadResponse struct {
	ETag string `json:"etag"`
}

// Handler serves stored objects from a storage backend.
type Handler struct {
	store   interfaces.ObjectStore
	metrics *metrics.ObjectMetrics
	log     *slog.Logger
}

// NewHandler creates a handler over store. m may be nil to disable metrics.
func NewHandler(store interfaces.ObjectStore, m *metrics.ObjectMetrics, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store:   store,
		metrics: m,
		log:     log,
	}
}

// RegisterRoutes mounts the object and legacy upload routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Put("/api/objects/{key}", h.HandlePutObject)
	r.Get("/api/objects/{key}", h.HandleGetObject)
	r.Post("/api/upload/{key}", h.HandleUpload)
	r.Get("/api/upload/{key}", h.HandleDownload)
}

// HandlePutObject stores a JSON encoded stored object, replacing any previous one.
//
// URL format: PUT /api/objects/{key}
func (h *Handler) HandlePutObject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var obj interfaces.StoredObject
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&obj); err != nil {
		h.log.Debug("Invalid object body", "err", err, "key", key)
		h.metrics.ObserveWrite(metrics.ResultInvalid, 0)
		http.Error(w, "Invalid object body", http.StatusBadRequest)
		return
	}

	if !h.put(w, r, key, obj) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetObject returns the stored object under key.
//
// URL format: GET /api/objects/{key}
func (h *Handler) HandleGetObject(w http.ResponseWriter, r *http.Request) {
	obj, ok := h.get(w, r, r.PathValue("key"))
	if !ok {
		return
	}
	writeJSON(w, h.log, obj)
}

// HandleUpload stores content uploaded in the original upload shape.
// The content string is stored verbatim as the object payload.
//
// URL format: POST /api/upload/{key}
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req UploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		h.log.Debug("Invalid upload body", "err", err, "key", key)
		h.metrics.ObserveWrite(metrics.ResultInvalid, 0)
		http.Error(w, "Invalid upload body", http.StatusBadRequest)
		return
	}

	obj := interfaces.StoredObject{
		OriginalName: req.OriginalName,
		MimeType:     req.Type,
		CipherText:   []byte(req.Content),
	}
	if !h.put(w, r, key, obj) {
		return
	}

	sum := sha256.Sum256(obj.CipherText)
	writeJSON(w, h.log, UploadResponse{ETag: hex.EncodeToString(sum[:16])})
}

// HandleDownload returns an object in the original upload shape.
//
// URL format: GET /api/upload/{key}
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	obj, ok := h.get(w, r, r.PathValue("key"))
	if !ok {
		return
	}
	writeJSON(w, h.log, UploadRequest{
		OriginalName: obj.OriginalName,
		Type:         obj.MimeType,
		Content:      string(obj.CipherText),
	})
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request, key string, obj interfaces.StoredObject) bool {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		h.metrics.ObserveWrite(metrics.ResultInvalid, 0)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}

	if err := h.store.Put(r.Context(), key, obj); err != nil {
		h.log.Error("Failed to store object", "err", err, "key", key, "backend", h.store.Name())
		h.metrics.ObserveWrite(metrics.ResultError, 0)
		http.Error(w, "Failed to store object", http.StatusServiceUnavailable)
		return false
	}

	h.metrics.ObserveWrite(metrics.ResultOK, len(obj.CipherText))
	h.log.Debug("Stored object", "key", key, "size", len(obj.CipherText))
	return true
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, key string) (interfaces.StoredObject, bool) {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		h.metrics.ObserveRead(metrics.ResultInvalid)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return interfaces.StoredObject{}, false
	}

	obj, err := h.store.Get(r.Context(), key)
	switch {
	case err == nil:
		h.metrics.ObserveRead(metrics.ResultOK)
		return obj, true
	case errors.Is(err, interfaces.ErrContentNotFound):
		h.metrics.ObserveRead(metrics.ResultNotFound)
		http.Error(w, "Object not found", http.StatusNotFound)
	default:
		h.log.Error("Failed to fetch object", "err", err, "key", key, "backend", h.store.Name())
		h.metrics.ObserveRead(metrics.ResultError)
		http.Error(w, "Failed to fetch object", http.StatusServiceUnavailable)
	}
	return interfaces.StoredObject{}, false
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
