package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

const secp256k1SchemeID byte = 0x01

// secp256k1MessageHeader leads every sealed message.
const secp256k1MessageHeader byte = 0x01

// secp256k1Scheme uses the same curve as ledger identities and go-ethereum's
// ECIES (ECDH, NIST SP 800-56 concatenation KDF, AES-128-CTR, HMAC-SHA-256).
type secp256k1Scheme struct{}

func (secp256k1Scheme) id() byte { return secp256k1SchemeID }

func (secp256k1Scheme) toPrivate(seed []byte) (*ecdsa.PrivateKey, error) {
	// ToECDSA rejects zero and scalars not below the group order
	return crypto.ToECDSA(seed)
}

func (secp256k1Scheme) marshalPublic(pub *ecdsa.PublicKey) []byte {
	return crypto.FromECDSAPub(pub)
}

func (secp256k1Scheme) parsePublic(data []byte) (*ecdsa.PublicKey, error) {
	return crypto.UnmarshalPubkey(data)
}

// seal prefixes the plaintext with secp256k1MessageHeader. ecies.Encrypt
// returns no cipher text and no error for an empty message.
func (secp256k1Scheme) seal(pub *ecdsa.PublicKey, plaintext []byte) ([]byte, error) {
	message := make([]byte, 0, 1+len(plaintext))
	message = append(message, secp256k1MessageHeader)
	message = append(message, plaintext...)
	return ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), message, nil, nil)
}

func (secp256k1Scheme) open(priv *ecdsa.PrivateKey, body []byte) ([]byte, error) {
	message, err := ecies.ImportECDSA(priv).Decrypt(body, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(message) == 0 || message[0] != secp256k1MessageHeader {
		return nil, errors.New("missing message header")
	}
	return message[1:], nil
}
