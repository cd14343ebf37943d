package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/private-content-market/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ledger:
  rpc_url: https://rpc.example.org
  registry: "0x00000000000000000000000000000000000000aa"
  start_height: 2862418
storage:
  - s3://market-objects/prod?region=eu-west-1
  - file:///var/lib/market
keys:
  curve: p256
identity:
  account_file: /tmp/account
  poll_interval: 250ms
log:
  debug: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.org", cfg.Ledger.RPCURL)
	assert.Equal(t, uint64(2862418), cfg.Ledger.StartHeight)
	assert.Equal(t, uint64(1337), cfg.Ledger.ChainID)
	assert.Equal(t, 2*time.Minute, cfg.Ledger.Timeout)
	assert.Len(t, cfg.Storage, 2)
	assert.Equal(t, cryptoutils.CurveP256, cfg.Keys.Curve)
	assert.Equal(t, cryptoutils.DefaultKeyConfig().Salt, cfg.Keys.Salt)
	assert.Equal(t, uint32(64*1024), cfg.Keys.MemoryKiB)
	assert.Equal(t, 250*time.Millisecond, cfg.Identity.PollInterval)
	assert.True(t, cfg.Log.Debug)

	require.NoError(t, cfg.Validate())
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "assetctl.yaml")

	cfg := DefaultConfig()
	cfg.Ledger.Registry = "0x00000000000000000000000000000000000000aa"
	cfg.Identity.PrivateKey = "0xdeadbeef"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Ledger.Registry = "0x00000000000000000000000000000000000000aa"
		cfg.Identity.AccountFile = "/tmp/account"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing registry", mutate: func(c *Config) { c.Ledger.Registry = "" }, wantErr: "ledger.registry"},
		{name: "no storage", mutate: func(c *Config) { c.Storage = nil }, wantErr: "storage location"},
		{name: "no identity", mutate: func(c *Config) { c.Identity.AccountFile = "" }, wantErr: "exactly one"},
		{name: "two identities", mutate: func(c *Config) { c.Identity.PrivateKey = "0x01" }, wantErr: "exactly one"},
		{name: "bad curve", mutate: func(c *Config) { c.Keys.Curve = "ed448" }, wantErr: "keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
