package storage

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/private-content-market/interfaces"
)

// VaultConfig holds connection settings for a HashiCorp Vault KV v2 mount.
type VaultConfig struct {
	Address   string
	MountPath string
	DataPath  string
	Token     string
	// ClientCert enables TLS client certificate authentication when set.
	ClientCert *tls.Certificate
}

// VaultBackend implements a storage backend using the HashiCorp Vault KV v2 engine.
// Each key is one secret at {mount}/data/{path}/{key}.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a new Vault storage backend.
func NewVaultBackend(cfg VaultConfig, log *slog.Logger) (*VaultBackend, error) {
	transport := &http.Transport{}
	if cfg.ClientCert != nil {
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{*cfg.ClientCert},
		}
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.HttpClient = &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	// Ensure paths are properly formatted
	mountPath := strings.Trim(cfg.MountPath, "/")
	if mountPath == "" {
		mountPath = "secret"
	}
	dataPath := strings.Trim(cfg.DataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(cfg.Address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Get reads the secret stored under key.
func (b *VaultBackend) Get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return interfaces.StoredObject{}, err
	}

	start := time.Now()
	path := b.secretPath(key)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return interfaces.StoredObject{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		b.log.Debug("Object not found in Vault", slog.String("path", path))
		return interfaces.StoredObject{}, interfaces.ErrContentNotFound
	}

	// KV v2 nests the payload under "data"; deleted versions carry nil data
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		return interfaces.StoredObject{}, interfaces.ErrContentNotFound
	}

	obj, err := objectFromVaultData(data)
	if err != nil {
		b.log.Error("Invalid data format in Vault response",
			slog.String("path", path),
			"err", err)
		return interfaces.StoredObject{}, err
	}

	b.log.Debug("Fetched object from Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return obj, nil
}

// Put writes a new version of the secret under key.
func (b *VaultBackend) Put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	if err := interfaces.ValidateStorageKey(key); err != nil {
		return err
	}

	start := time.Now()
	path := b.secretPath(key)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"originalName": obj.OriginalName,
			"mimeType":     obj.MimeType,
			"content":      base64.StdEncoding.EncodeToString(obj.CipherText),
		},
	}

	_, err := b.client.Logical().WriteWithContext(ctx, path, secretData)
	if err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored object in Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Available checks if the Vault backend is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) secretPath(key string) string {
	if b.dataPath == "" {
		return fmt.Sprintf("%s/data/%s", b.mountPath, key)
	}
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, key)
}

func objectFromVaultData(data map[string]interface{}) (interfaces.StoredObject, error) {
	content, ok := data["content"].(string)
	if !ok {
		return interfaces.StoredObject{}, fmt.Errorf("content key not found in Vault data")
	}

	cipherText, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return interfaces.StoredObject{}, fmt.Errorf("invalid content encoding in Vault data: %w", err)
	}

	name, _ := data["originalName"].(string)
	mimeType, _ := data["mimeType"].(string)

	return interfaces.StoredObject{
		OriginalName: name,
		MimeType:     mimeType,
		CipherText:   cipherText,
	}, nil
}
