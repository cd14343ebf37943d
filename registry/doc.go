// Package registry implements the asset ownership state machine and the ways of
// reaching it.
//
// Every asset moves between three states:
//
//	OnHold --initiateSale--> OnSale --offer--> Offered --completeSale--> OnHold (new owner)
//	   ^                        |                 |
//	   +-------cancelSale-------+-----------------+
//
// A transition attempted from the wrong state or by the wrong caller fails with
// interfaces.ErrPreconditionViolation and changes nothing. Offers escrow a payment
// that must equal the asking price; completing the sale releases it to the former
// owner and cancelling refunds it to the pending buyer.
//
// # Implementations
//
//   - AssetBook: the state machine itself, with no I/O.
//   - LocalLedger: an in-process ledger that ABI-encodes every call, mines one
//     block per transaction and records reverted calls as failed. It also serves
//     raw history to the provenance scanner.
//   - OnchainRegistryClient: talks to the Properties contract on an Ethereum chain
//     through a bound contract over the handwritten ABI in abi.go.
//   - MockRegistry: testify mock for flow tests.
//
// TransferCallData returns the exact completeSale input that history scans match on.
package registry
