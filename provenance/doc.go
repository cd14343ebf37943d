// Package provenance recovers the ownership history of an asset from raw ledger history.
//
// The scanner walks every block from a configured start height up to the head
// observed when the scan begins, and keeps transactions sent to the registry whose
// input is exactly the encoded completeSale call for the asset. Reverted calls are
// skipped. The cost of a scan is linear in the number of blocks walked.
//
// EthReader adapts an Ethereum JSON-RPC client; registry.LocalLedger serves the
// same interface in process.
package provenance
