// Package cryptoutils derives content keypairs from passphrases and provides
// the hybrid encryption used to protect asset content.
//
// A keypair is a pure function of the passphrase and the KeyConfig: Argon2id
// stretches the passphrase with the configured salt into a 32 byte seed that
// becomes the private scalar. Nothing is persisted; knowing the passphrase is
// owning the key.
//
// Two schemes are supported:
//
//   - secp256k1: go-ethereum ECIES (ECDH, concatenation KDF, AES-128-CTR, HMAC-SHA-256)
//     over a one byte message header, so empty content still seals
//   - p256: ECDH on NIST P-256, SHA-256 of the shared secret, AES-GCM
//
// Both use a fresh ephemeral key for every encryption.
//
// # Encryption Format
//
// Every cipher text carries the scheme it was sealed with:
//
//	[scheme id (1 byte)][scheme body]
//
// with the p256 body laid out as
//
//	[ephemeral key length (2 bytes)][ephemeral key][iv (12 bytes)][ciphertext]
//
// Opening with the wrong key, a tampered body or a bundle sealed under another
// scheme fails with interfaces.ErrDecryptionFailure.
package cryptoutils
