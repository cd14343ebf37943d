// Package interfaces defines the core interfaces and types for the private
// content market, separating interface definitions from implementations.
//
// # Registry Interfaces
//
// AssetRegistry: the ledger-resident ownership state machine. Transitions are
// authenticated as the calling identity and either apply atomically or fail
// with ErrPreconditionViolation.
//
// LedgerReader: raw, append-only block history used to replay ownership
// transfers. It is read by the provenance scanner.
//
// # Storage Interfaces
//
// ObjectStore: key/value storage for encrypted content and handoff public keys
// across multiple backend types (memory, file, S3, Vault, IPFS, LevelDB, HTTP).
//
// ObjectStoreFactory: creates stores from parsed locations and combines them
// into a redundant multi-backend store.
//
// # Types
//
//   - AssetID: truncated SHA-256 fingerprint of a registered file
//   - Identity: ledger address of a party
//   - Asset: registry record with owner, status, price and pending buyer
//   - StoredObject: encrypted payload with its original name and MIME type
//   - TransferRecord and OwnershipEvent: recovered transfer history
//
// # Errors
//
// Every failure a caller is expected to distinguish is a sentinel in this package,
// wrapped with context by the implementations and matched with errors.Is.
package interfaces
