// Package storage provides the encrypted object store with pluggable backends.
//
// Objects are addressed by caller-chosen keys restricted to [A-Za-z0-9._-].
// Every content key is an asset fingerprint in hex; the handoff public key slot
// is the same fingerprint with a "pk" suffix. A write always replaces the whole
// object and the last writer wins. The store never sees plaintext.
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - memory://dev
//   - file:///var/lib/market/objects
//   - s3://KEY:SECRET@market-objects/prefix?endpoint=minio:9000&path_style=true&disable_ssl=true&create_bucket=true
//   - vault://vault.example.com:8200/secret/market?tls=true
//   - ipfs://127.0.0.1:5001/market?timeout=30s
//   - leveldb:///var/lib/market/db
//   - http://objectstore.internal:8080
//
// # Wire Form
//
// Backends that hold opaque bytes (file, S3, IPFS, LevelDB) store the JSON form
// of interfaces.StoredObject:
//
//	{"originalName": "...", "mimeType": "...", "content": "<base64 cipher text>"}
//
// Vault stores the same three fields inside the KV v2 data map.
//
// # Redundancy
//
// MultiStorageBackend writes to every configured backend and fails the write if
// any backend fails, so no backend keeps serving stale cipher text after an
// overwrite. Reads return from the first backend that has the key.
package storage
