package session

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/private-content-market/interfaces"
)

// Source reports the identity currently selected by the user.
type Source interface {
	Identity(ctx context.Context) (interfaces.Identity, error)
}

// Signer is a source that can also authorize transactions for its identity.
type Signer interface {
	Source
	TransactOpts() *bind.TransactOpts
}

// StaticSource always reports the same address.
type StaticSource common.Address

// Identity implements Source.
func (s StaticSource) Identity(ctx context.Context) (interfaces.Identity, error) {
	return common.Address(s), nil
}

// KeySource is backed by a private key held in memory.
type KeySource struct {
	address common.Address
	auth    *bind.TransactOpts
}

// NewKeySource parses a hex encoded secp256k1 private key, with or without 0x prefix.
func NewKeySource(hexKey string, chainID *big.Int) (*KeySource, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return newKeySource(key, chainID)
}

// NewKeystoreSource decrypts a go-ethereum keystore file with password.
func NewKeystoreSource(path, password string, chainID *big.Int) (*KeySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore file: %w", err)
	}

	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore file: %w", err)
	}
	return newKeySource(key.PrivateKey, chainID)
}

func newKeySource(key *ecdsa.PrivateKey, chainID *big.Int) (*KeySource, error) {
	if chainID == nil {
		return nil, errors.New("chain id is required to sign transactions")
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	return &KeySource{
		address: crypto.PubkeyToAddress(key.PublicKey),
		auth:    auth,
	}, nil
}

// Identity implements Source.
func (s *KeySource) Identity(ctx context.Context) (interfaces.Identity, error) {
	return s.address, nil
}

// TransactOpts implements Signer.
func (s *KeySource) TransactOpts() *bind.TransactOpts {
	return s.auth
}

// FileSource reads the selected address from a file on every poll, so switching
// accounts is a matter of rewriting the file.
type FileSource string

// Identity implements Source. An empty file means no identity is selected.
func (s FileSource) Identity(ctx context.Context) (interfaces.Identity, error) {
	data, err := os.ReadFile(string(s))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read account file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("account file %s does not hold an address", string(s))
	}
	return common.HexToAddress(raw), nil
}
