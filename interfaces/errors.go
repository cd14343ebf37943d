package interfaces

import "errors"

var (
	// ErrPreconditionViolation is returned when a registry transition is attempted
	// from the wrong state or by the wrong caller. The ledger state is unchanged.
	ErrPreconditionViolation = errors.New("registry precondition violated")

	// ErrCollision is returned when registering content whose fingerprint
	// is already owned by a different identity.
	ErrCollision = errors.New("content fingerprint already owned by another identity")

	// ErrDecryptionFailure is returned when cipher text does not open under the
	// supplied key material, typically a wrong passphrase.
	ErrDecryptionFailure = errors.New("decryption failed: passphrase does not match")

	// ErrStorageUnavailable is returned by flows when the object store could not
	// complete a read or write. Retrying the whole flow is safe.
	ErrStorageUnavailable = errors.New("object store unavailable")

	// ErrLedgerUnavailable is returned by flows when the ledger could not be
	// queried or a transaction could not be submitted. Retrying is safe.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrContentNotFound is returned when a requested key is absent from the object store.
	ErrContentNotFound = errors.New("content not found")

	// ErrAssetNotFound is returned when the registry has no record for an asset ID.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrInvalidKey is returned when a storage key contains characters outside [A-Za-z0-9._-].
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrHandoffKeyMismatch is returned during confirmation when the public key slot
	// was not published by the asset's pending buyer.
	ErrHandoffKeyMismatch = errors.New("handoff public key does not belong to pending buyer")

	// ErrNoActiveIdentity is returned when no caller identity is available.
	ErrNoActiveIdentity = errors.New("no active identity")
)

// IsTransient reports whether err is a storage or ledger outage after which
// the user action can be retried from its first step.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrLedgerUnavailable) ||
		errors.Is(err, ErrBackendUnavailable)
}
