// Package config loads the client configuration of assetctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/private-content-market/cryptoutils"
	"github.com/ruteri/private-content-market/session"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Ledger   LedgerConfig          `yaml:"ledger"`
	Storage  []string              `yaml:"storage"`
	Keys     cryptoutils.KeyConfig `yaml:"keys"`
	Identity IdentityConfig        `yaml:"identity"`
	Log      LogConfig             `yaml:"log"`
}

type LedgerConfig struct {
	RPCURL   string `yaml:"rpc_url"`
	ChainID  uint64 `yaml:"chain_id"`
	Registry string `yaml:"registry"`
	// StartHeight is where provenance scans begin, normally the registry deployment block.
	StartHeight uint64 `yaml:"start_height"`
	// Timeout bounds a single ledger call, including waiting for a transaction to be mined.
	Timeout time.Duration `yaml:"timeout"`
}

// IdentityConfig selects where the active identity comes from.
// Exactly one of PrivateKey, Keystore or AccountFile is expected.
type IdentityConfig struct {
	PrivateKey       string        `yaml:"private_key"`
	Keystore         string        `yaml:"keystore"`
	KeystorePassword string        `yaml:"keystore_password"`
	AccountFile      string        `yaml:"account_file"`
	PollInterval     time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Debug bool `yaml:"debug"`
	JSON  bool `yaml:"json"`
}

// DefaultConfig returns a Config struct with default values
func DefaultConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			RPCURL:  "http://127.0.0.1:8545",
			ChainID: 1337,
			Timeout: 2 * time.Minute,
		},
		Storage: []string{"http://127.0.0.1:8080"},
		Keys:    cryptoutils.DefaultKeyConfig(),
		Identity: IdentityConfig{
			PollInterval: session.DefaultPollInterval,
		},
	}
}

// DefaultPath returns the config location under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "assetctl.yaml"
	}
	return filepath.Join(dir, "private-content-market", "assetctl.yaml")
}

// Load reads configuration from path on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.Ledger.Timeout <= 0 {
		cfg.Ledger.Timeout = defaults.Ledger.Timeout
	}
	if cfg.Identity.PollInterval <= 0 {
		cfg.Identity.PollInterval = defaults.Identity.PollInterval
	}
	if cfg.Keys.Curve == "" {
		cfg.Keys.Curve = defaults.Keys.Curve
	}
	if cfg.Keys.Salt == "" {
		cfg.Keys.Salt = defaults.Keys.Salt
	}
	if cfg.Keys.Time == 0 {
		cfg.Keys.Time = defaults.Keys.Time
	}
	if cfg.Keys.MemoryKiB == 0 {
		cfg.Keys.MemoryKiB = defaults.Keys.MemoryKiB
	}
	if cfg.Keys.Threads == 0 {
		cfg.Keys.Threads = defaults.Keys.Threads
	}

	return cfg, nil
}

// Save persists the configuration to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold a private key
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the settings needed to talk to a ledger and a store.
func (c *Config) Validate() error {
	var errs []error

	if c.Ledger.RPCURL == "" {
		errs = append(errs, errors.New("ledger.rpc_url is required"))
	}
	if !common.IsHexAddress(c.Ledger.Registry) {
		errs = append(errs, fmt.Errorf("ledger.registry %q is not an address", c.Ledger.Registry))
	}
	if len(c.Storage) == 0 {
		errs = append(errs, errors.New("at least one storage location is required"))
	}

	sources := 0
	for _, set := range []bool{c.Identity.PrivateKey != "", c.Identity.Keystore != "", c.Identity.AccountFile != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		errs = append(errs, errors.New("exactly one of identity.private_key, identity.keystore or identity.account_file is required"))
	}

	if _, err := cryptoutils.NewKeyManager(c.Keys); err != nil {
		errs = append(errs, fmt.Errorf("keys: %w", err))
	}

	return errors.Join(errs...)
}
