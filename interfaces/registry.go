package interfaces

import (
	"context"
	"math/big"
)

// AssetRegistry is the ledger-resident ownership state machine.
// Every transition is an atomically applied transaction authenticated as the caller;
// a transition from the wrong state or caller fails with ErrPreconditionViolation
// and leaves the state unchanged.
type AssetRegistry interface {
	// Register creates the asset owned by caller in OnHold, or keeps it if caller already owns it.
	Register(ctx context.Context, caller Identity, name, description string, id AssetID) (*TxReceipt, error)

	// InitiateSale puts an OnHold asset on sale at price.
	InitiateSale(ctx context.Context, caller Identity, id AssetID, price *big.Int) (*TxReceipt, error)

	// CancelSale returns an OnSale or Offered asset to OnHold, refunding any escrow.
	CancelSale(ctx context.Context, caller Identity, id AssetID) (*TxReceipt, error)

	// Offer escrows payment for an OnSale asset and records caller as pending buyer.
	Offer(ctx context.Context, caller Identity, id AssetID, payment *big.Int) (*TxReceipt, error)

	// CompleteSale hands the asset to the pending buyer and releases escrow to the owner.
	CompleteSale(ctx context.Context, caller Identity, id AssetID) (*TxReceipt, error)

	// GetOwner returns the current owner, or the zero identity if id is unregistered.
	GetOwner(ctx context.Context, id AssetID) (Identity, error)

	// GetAsset returns the full record. Returns ErrAssetNotFound if id is unregistered.
	GetAsset(ctx context.Context, id AssetID) (*Asset, error)

	// ListAllMyProperties returns every asset currently owned by caller.
	ListAllMyProperties(ctx context.Context, caller Identity) ([]*Asset, error)

	// ListAllBuyableProperties returns every asset currently on sale.
	ListAllBuyableProperties(ctx context.Context) ([]*Asset, error)
}
