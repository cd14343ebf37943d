package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ruteri/private-content-market/interfaces"
	"golang.org/x/crypto/argon2"
)

// Curve selects the asymmetric scheme keypairs are derived on.
type Curve string

const (
	// CurveSecp256k1 derives secp256k1 keys and seals with go-ethereum ECIES.
	CurveSecp256k1 Curve = "secp256k1"
	// CurveP256 derives NIST P-256 keys and seals with ECDH, SHA-256 and AES-GCM.
	CurveP256 Curve = "p256"
)

// seedSize is the Argon2id output length used as private scalar material.
const seedSize = 32

// maxDeriveAttempts bounds rehashing when a seed falls outside the curve order.
const maxDeriveAttempts = 16

// ErrEmptyPassphrase is returned when deriving from an empty passphrase.
var ErrEmptyPassphrase = errors.New("passphrase must not be empty")

// KeyConfig makes the derivation algorithm parameters explicit.
// Changing any field changes every derived keypair.
type KeyConfig struct {
	Curve     Curve  `yaml:"curve"`
	Salt      string `yaml:"salt"`
	Time      uint32 `yaml:"time"`
	MemoryKiB uint32 `yaml:"memory_kib"`
	Threads   uint8  `yaml:"threads"`
}

// DefaultKeyConfig returns the Argon2id parameters used unless configured otherwise.
func DefaultKeyConfig() KeyConfig {
	return KeyConfig{
		Curve:     CurveSecp256k1,
		Salt:      "private-content-market/keypair/v1",
		Time:      1,
		MemoryKiB: 64 * 1024,
		Threads:   4,
	}
}

// PublicKey is an uncompressed SEC1 encoded public key.
type PublicKey []byte

// Keypair is passphrase-derived key material. It is never persisted.
type Keypair struct {
	Public  PublicKey
	private *ecdsa.PrivateKey
	curve   Curve
}

// Curve returns the curve the keypair lives on.
func (kp *Keypair) Curve() Curve {
	return kp.curve
}

// scheme is one curve plus the hybrid encryption built on it.
type scheme interface {
	id() byte
	toPrivate(seed []byte) (*ecdsa.PrivateKey, error)
	marshalPublic(pub *ecdsa.PublicKey) []byte
	parsePublic(data []byte) (*ecdsa.PublicKey, error)
	seal(pub *ecdsa.PublicKey, plaintext []byte) ([]byte, error)
	open(priv *ecdsa.PrivateKey, body []byte) ([]byte, error)
}

// KeyManager derives keypairs from passphrases and encrypts or decrypts with them.
// It keeps no state between calls.
type KeyManager struct {
	cfg    KeyConfig
	scheme scheme
}

// NewKeyManager validates cfg and returns a manager for the configured curve.
func NewKeyManager(cfg KeyConfig) (*KeyManager, error) {
	var s scheme
	switch cfg.Curve {
	case CurveSecp256k1, "":
		cfg.Curve = CurveSecp256k1
		s = secp256k1Scheme{}
	case CurveP256:
		s = p256Scheme{}
	default:
		return nil, fmt.Errorf("unsupported curve: %s", cfg.Curve)
	}

	if cfg.Time == 0 || cfg.MemoryKiB == 0 || cfg.Threads == 0 {
		return nil, errors.New("argon2 time, memory and threads must be positive")
	}
	if cfg.Salt == "" {
		return nil, errors.New("key derivation salt must not be empty")
	}

	return &KeyManager{cfg: cfg, scheme: s}, nil
}

// DeriveKeypair computes the keypair for passphrase. The same passphrase and
// configuration always yield the same keypair.
func (km *KeyManager) DeriveKeypair(passphrase string) (*Keypair, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	seed := argon2.IDKey([]byte(passphrase), []byte(km.cfg.Salt), km.cfg.Time, km.cfg.MemoryKiB, km.cfg.Threads, seedSize)

	for attempt := 0; attempt < maxDeriveAttempts; attempt++ {
		priv, err := km.scheme.toPrivate(seed)
		if err == nil {
			return &Keypair{
				Public:  km.scheme.marshalPublic(&priv.PublicKey),
				private: priv,
				curve:   km.cfg.Curve,
			}, nil
		}

		// Out of range for the curve order, rehash and retry
		next := sha256.Sum256(append(seed, byte(attempt)))
		seed = next[:]
	}

	return nil, errors.New("could not derive a valid private key")
}

// ParsePublicKey validates a public key received from another party.
func (km *KeyManager) ParsePublicKey(data []byte) (PublicKey, error) {
	if _, err := km.scheme.parsePublic(data); err != nil {
		return nil, fmt.Errorf("invalid %s public key: %w", km.cfg.Curve, err)
	}
	return PublicKey(data), nil
}

// Encrypt seals plaintext for the holder of pub.
// The result is self-describing: [scheme id (1 byte)][scheme body].
func (km *KeyManager) Encrypt(plaintext []byte, pub PublicKey) ([]byte, error) {
	pk, err := km.scheme.parsePublic(pub)
	if err != nil {
		return nil, fmt.Errorf("invalid %s public key: %w", km.cfg.Curve, err)
	}

	body, err := km.scheme.seal(pk, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("failed to encrypt: empty cipher text")
	}

	return append([]byte{km.scheme.id()}, body...), nil
}

// Decrypt opens cipherText with kp. Any mismatch between key and cipher text,
// including tampering or a bundle sealed under another scheme,
// is reported as interfaces.ErrDecryptionFailure.
func (km *KeyManager) Decrypt(cipherText []byte, kp *Keypair) ([]byte, error) {
	if kp == nil || kp.private == nil {
		return nil, errors.New("no key material provided")
	}
	if len(cipherText) < 2 {
		return nil, fmt.Errorf("%w: cipher text too short", interfaces.ErrDecryptionFailure)
	}
	if cipherText[0] != km.scheme.id() || kp.curve != km.cfg.Curve {
		return nil, fmt.Errorf("%w: cipher text scheme %d not supported by %s keys", interfaces.ErrDecryptionFailure, cipherText[0], kp.curve)
	}

	plaintext, err := km.scheme.open(kp.private, cipherText[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrDecryptionFailure, err)
	}
	return plaintext, nil
}
