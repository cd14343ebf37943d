package registry

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/private-content-market/interfaces"
)

// Settlement is a value movement released by a transition.
type Settlement struct {
	To     interfaces.Identity
	Amount *big.Int
}

// AssetBook is the ownership state machine. It performs no I/O and is not safe
// for concurrent use; callers serialize transitions the way a ledger orders transactions.
// A transition that returns an error leaves the book unchanged.
type AssetBook struct {
	assets map[interfaces.AssetID]*bookEntry
	order  []interfaces.AssetID
}

type bookEntry struct {
	asset  interfaces.Asset
	escrow *big.Int
}

// NewAssetBook creates an empty book.
func NewAssetBook() *AssetBook {
	return &AssetBook{
		assets: make(map[interfaces.AssetID]*bookEntry),
	}
}

func violation(op string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", interfaces.ErrPreconditionViolation, op, fmt.Sprintf(format, args...))
}

// Register creates the asset owned by caller in OnHold. Registering an asset the
// caller already holds is accepted and changes nothing.
func (b *AssetBook) Register(caller interfaces.Identity, name, description string, id interfaces.AssetID) error {
	if caller == (common.Address{}) {
		return violation(MethodRegister, "caller must not be the zero identity")
	}

	if entry, ok := b.assets[id]; ok {
		if entry.asset.Owner != caller {
			return violation(MethodRegister, "asset %s is owned by %s", id, entry.asset.Owner.Hex())
		}
		if entry.asset.Status != interfaces.OnHold {
			return violation(MethodRegister, "asset %s is %s", id, entry.asset.Status)
		}
		return nil
	}

	b.assets[id] = &bookEntry{
		asset: interfaces.Asset{
			ID:          id,
			Name:        name,
			Description: description,
			Owner:       caller,
			Status:      interfaces.OnHold,
		},
	}
	b.order = append(b.order, id)
	return nil
}

// InitiateSale puts an OnHold asset on sale at price.
func (b *AssetBook) InitiateSale(caller interfaces.Identity, id interfaces.AssetID, price *big.Int) error {
	entry, err := b.ownedEntry(MethodInitiateSale, caller, id)
	if err != nil {
		return err
	}
	if entry.asset.Status != interfaces.OnHold {
		return violation(MethodInitiateSale, "asset %s is %s", id, entry.asset.Status)
	}
	if price == nil || price.Sign() <= 0 {
		return violation(MethodInitiateSale, "price must be positive")
	}

	entry.asset.Status = interfaces.OnSale
	entry.asset.Price = new(big.Int).Set(price)
	return nil
}

// CancelSale returns an OnSale or Offered asset to OnHold. Any escrowed payment
// is released back to the pending buyer.
func (b *AssetBook) CancelSale(caller interfaces.Identity, id interfaces.AssetID) (*Settlement, error) {
	entry, err := b.ownedEntry(MethodCancelSale, caller, id)
	if err != nil {
		return nil, err
	}
	if entry.asset.Status != interfaces.OnSale && entry.asset.Status != interfaces.Offered {
		return nil, violation(MethodCancelSale, "asset %s is %s", id, entry.asset.Status)
	}

	var refund *Settlement
	if entry.asset.Status == interfaces.Offered && entry.escrow != nil {
		refund = &Settlement{To: entry.asset.PendingBuyer, Amount: entry.escrow}
	}

	entry.asset.Status = interfaces.OnHold
	entry.asset.Price = nil
	entry.asset.PendingBuyer = common.Address{}
	entry.escrow = nil
	return refund, nil
}

// Offer escrows payment for an OnSale asset and records caller as pending buyer.
// The payment must equal the asking price exactly.
func (b *AssetBook) Offer(caller interfaces.Identity, id interfaces.AssetID, payment *big.Int) error {
	entry, ok := b.assets[id]
	if !ok {
		return violation(MethodOffer, "asset %s is not registered", id)
	}
	if caller == (common.Address{}) {
		return violation(MethodOffer, "caller must not be the zero identity")
	}
	if entry.asset.Status != interfaces.OnSale {
		return violation(MethodOffer, "asset %s is %s", id, entry.asset.Status)
	}
	if entry.asset.Owner == caller {
		return violation(MethodOffer, "owner cannot offer on own asset")
	}
	if payment == nil || payment.Cmp(entry.asset.Price) != 0 {
		return violation(MethodOffer, "payment %v does not match price %v", payment, entry.asset.Price)
	}

	entry.asset.Status = interfaces.Offered
	entry.asset.PendingBuyer = caller
	entry.escrow = new(big.Int).Set(payment)
	return nil
}

// CompleteSale hands an Offered asset to its pending buyer and releases the
// escrowed payment to the former owner.
func (b *AssetBook) CompleteSale(caller interfaces.Identity, id interfaces.AssetID) (*Settlement, error) {
	entry, err := b.ownedEntry(MethodCompleteSale, caller, id)
	if err != nil {
		return nil, err
	}
	if entry.asset.Status != interfaces.Offered {
		return nil, violation(MethodCompleteSale, "asset %s is %s", id, entry.asset.Status)
	}

	payout := &Settlement{To: entry.asset.Owner, Amount: entry.escrow}
	if payout.Amount == nil {
		payout.Amount = new(big.Int)
	}

	entry.asset.Owner = entry.asset.PendingBuyer
	entry.asset.Status = interfaces.OnHold
	entry.asset.Price = nil
	entry.asset.PendingBuyer = common.Address{}
	entry.escrow = nil
	return payout, nil
}

// Owner returns the current owner, or the zero identity for an unknown asset.
func (b *AssetBook) Owner(id interfaces.AssetID) interfaces.Identity {
	if entry, ok := b.assets[id]; ok {
		return entry.asset.Owner
	}
	return common.Address{}
}

// Asset returns a copy of the record for id.
func (b *AssetBook) Asset(id interfaces.AssetID) (*interfaces.Asset, bool) {
	entry, ok := b.assets[id]
	if !ok {
		return nil, false
	}
	return copyAsset(&entry.asset), true
}

// Escrow returns the payment held for id.
func (b *AssetBook) Escrow(id interfaces.AssetID) *big.Int {
	if entry, ok := b.assets[id]; ok && entry.escrow != nil {
		return new(big.Int).Set(entry.escrow)
	}
	return new(big.Int)
}

// OwnedBy lists assets owned by owner in registration order.
func (b *AssetBook) OwnedBy(owner interfaces.Identity) []*interfaces.Asset {
	return b.filter(func(a *interfaces.Asset) bool { return a.Owner == owner })
}

// Buyable lists assets currently on sale in registration order.
func (b *AssetBook) Buyable() []*interfaces.Asset {
	return b.filter(func(a *interfaces.Asset) bool { return a.Buyable() })
}

func (b *AssetBook) filter(keep func(*interfaces.Asset) bool) []*interfaces.Asset {
	result := []*interfaces.Asset{}
	for _, id := range b.order {
		entry := b.assets[id]
		if keep(&entry.asset) {
			result = append(result, copyAsset(&entry.asset))
		}
	}
	return result
}

func (b *AssetBook) ownedEntry(op string, caller interfaces.Identity, id interfaces.AssetID) (*bookEntry, error) {
	entry, ok := b.assets[id]
	if !ok {
		return nil, violation(op, "asset %s is not registered", id)
	}
	if entry.asset.Owner != caller {
		return nil, violation(op, "caller %s is not the owner", caller.Hex())
	}
	return entry, nil
}

func copyAsset(a *interfaces.Asset) *interfaces.Asset {
	c := *a
	if a.Price != nil {
		c.Price = new(big.Int).Set(a.Price)
	}
	return &c
}
