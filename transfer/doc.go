// Package transfer implements the user flows of the content market on top of
// the asset registry, the encrypted object store and passphrase derived keys.
//
// Each flow is a strict sequence and stops at the first failing step:
//
//	Register: fingerprint, GetOwner, derive, encrypt, Put(id), Register
//	Offer:    GetAsset, derive, Put(id+"pk"), Offer
//	Confirm:  GetAsset, Get(id), decrypt, Get(id+"pk"), encrypt, Put(id), CompleteSale
//	View:     Get(id), decrypt
//
// When racing offers leave the handoff slot holding the key of a buyer the
// registry rejected, the pending buyer calls RepublishKey, which rewrites the
// slot without a ledger call, and the seller confirms again.
//
// The registry transition always comes last, so a storage failure never leaves
// the ledger ahead of the store and the whole flow can be retried. Plaintext only
// exists in the memory of the seller and the buyer.
package transfer
