package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/private-content-market/cryptoutils"
	"github.com/ruteri/private-content-market/interfaces"
)

// PublicKeyMimeType tags the stored object holding a buyer's handoff public key.
const PublicKeyMimeType = "application/vnd.content-market.public-key"

// IdentityProvider supplies the identity every flow acts as.
type IdentityProvider interface {
	ActiveIdentity(ctx context.Context) (interfaces.Identity, error)
}

// KeyManager derives passphrase keypairs and encrypts content with them.
// It is satisfied by *cryptoutils.KeyManager.
type KeyManager interface {
	DeriveKeypair(passphrase string) (*cryptoutils.Keypair, error)
	ParsePublicKey(data []byte) (cryptoutils.PublicKey, error)
	Encrypt(plaintext []byte, pub cryptoutils.PublicKey) ([]byte, error)
	Decrypt(cipherText []byte, kp *cryptoutils.Keypair) ([]byte, error)
}

// HistoryScanner recovers the ownership history of an asset from the ledger.
// It is satisfied by *provenance.Scanner.
type HistoryScanner interface {
	History(ctx context.Context, id interfaces.AssetID) ([]interfaces.OwnershipEvent, error)
}

// ErrHistoryUnavailable is returned by History when no scanner is configured.
var ErrHistoryUnavailable = errors.New("provenance scanner not configured")

// Orchestrator sequences key derivation and object store access around registry
// transitions. In every flow the registry transition is the last step, so a
// failed storage step never leaves the ledger ahead of the store.
type Orchestrator struct {
	registry interfaces.AssetRegistry
	store    interfaces.ObjectStore
	keys     KeyManager
	identity IdentityProvider
	history  HistoryScanner
	log      *slog.Logger
}

// NewOrchestrator creates an orchestrator. history may be nil, in which case
// History reports ErrHistoryUnavailable.
func NewOrchestrator(registry interfaces.AssetRegistry, store interfaces.ObjectStore, keys KeyManager, identity IdentityProvider, history HistoryScanner, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		registry: registry,
		store:    store,
		keys:     keys,
		identity: identity,
		history:  history,
		log:      log,
	}
}

// Register encrypts file under the passphrase key of the active identity,
// stores it under its fingerprint and records the asset in the registry.
// Content already owned by another identity fails with interfaces.ErrCollision
// before anything is written.
func (o *Orchestrator) Register(ctx context.Context, name, description string, file interfaces.File, passphrase string) (interfaces.AssetID, error) {
	id := interfaces.ComputeAssetID(file.Content)

	caller, err := o.caller(ctx)
	if err != nil {
		return id, err
	}

	owner, err := o.registry.GetOwner(ctx, id)
	if err != nil {
		return id, ledgerError("register", err)
	}

	switch owner {
	case common.Address{}:
	case caller:
		// Re-registering is only valid while the asset is not for sale,
		// check before the stored content is replaced
		asset, err := o.registry.GetAsset(ctx, id)
		if err != nil {
			return id, ledgerError("register", err)
		}
		if asset.Status != interfaces.OnHold {
			return id, fmt.Errorf("%w: register: asset %s is %s", interfaces.ErrPreconditionViolation, id, asset.Status)
		}
	default:
		return id, fmt.Errorf("%w: %s is owned by %s", interfaces.ErrCollision, id, owner.Hex())
	}

	kp, err := o.keys.DeriveKeypair(passphrase)
	if err != nil {
		return id, fmt.Errorf("could not derive keypair: %w", err)
	}

	cipherText, err := o.keys.Encrypt(file.Content, kp.Public)
	if err != nil {
		return id, fmt.Errorf("could not encrypt content: %w", err)
	}

	err = o.put(ctx, id.ContentKey(), interfaces.StoredObject{
		OriginalName: file.Name,
		MimeType:     file.MimeType,
		CipherText:   cipherText,
	})
	if err != nil {
		return id, err
	}

	receipt, err := o.registry.Register(ctx, caller, name, description, id)
	if err != nil {
		return id, ledgerError("register", err)
	}

	o.log.Info("Registered asset",
		slog.String("asset_id", id.String()),
		slog.String("owner", caller.Hex()),
		slog.String("tx_hash", receipt.TxHash.Hex()))

	return id, nil
}

// Sell puts an asset of the active identity on sale at price.
func (o *Orchestrator) Sell(ctx context.Context, id interfaces.AssetID, price *big.Int) (*interfaces.TxReceipt, error) {
	caller, err := o.caller(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := o.registry.InitiateSale(ctx, caller, id, price)
	if err != nil {
		return nil, ledgerError("initiate sale", err)
	}

	o.log.Info("Asset put on sale",
		slog.String("asset_id", id.String()),
		slog.String("price", price.String()))
	return receipt, nil
}

// CancelSale takes an asset of the active identity off the market.
func (o *Orchestrator) CancelSale(ctx context.Context, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	caller, err := o.caller(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := o.registry.CancelSale(ctx, caller, id)
	if err != nil {
		return nil, ledgerError("cancel sale", err)
	}

	o.log.Info("Sale cancelled", slog.String("asset_id", id.String()))
	return receipt, nil
}

// Offer publishes the public key derived from passphrase at the handoff slot
// of id and then offers payment for the asset. A nil payment pays the asking price.
// The offer is checked against the current listing first so a doomed offer never
// replaces the key of a pending buyer.
func (o *Orchestrator) Offer(ctx context.Context, id interfaces.AssetID, passphrase string, payment *big.Int) (*interfaces.TxReceipt, error) {
	caller, err := o.caller(ctx)
	if err != nil {
		return nil, err
	}

	asset, err := o.registry.GetAsset(ctx, id)
	if err != nil {
		return nil, ledgerError("offer", err)
	}
	if asset.Status != interfaces.OnSale {
		return nil, fmt.Errorf("%w: offer: asset %s is %s", interfaces.ErrPreconditionViolation, id, asset.Status)
	}
	if asset.Owner == caller {
		return nil, fmt.Errorf("%w: offer: owner cannot buy own asset", interfaces.ErrPreconditionViolation)
	}
	if payment == nil {
		payment = asset.Price
	}
	if asset.Price == nil || payment.Cmp(asset.Price) != 0 {
		return nil, fmt.Errorf("%w: offer: payment %v does not match price %v", interfaces.ErrPreconditionViolation, payment, asset.Price)
	}

	if err := o.publishKey(ctx, id, caller, passphrase); err != nil {
		return nil, err
	}

	receipt, err := o.registry.Offer(ctx, caller, id, payment)
	if err != nil {
		return nil, ledgerError("offer", err)
	}

	o.log.Info("Offer submitted",
		slog.String("asset_id", id.String()),
		slog.String("buyer", caller.Hex()),
		slog.String("payment", payment.String()))
	return receipt, nil
}

// RepublishKey writes the handoff key of the pending buyer again without touching
// the registry. Two offers racing on the same listing can both pass the listing
// check, and the losing one may replace the key of the buyer the registry accepted.
func (o *Orchestrator) RepublishKey(ctx context.Context, id interfaces.AssetID, passphrase string) error {
	caller, err := o.caller(ctx)
	if err != nil {
		return err
	}

	asset, err := o.registry.GetAsset(ctx, id)
	if err != nil {
		return ledgerError("republish key", err)
	}
	if asset.Status != interfaces.Offered {
		return fmt.Errorf("%w: republish key: asset %s is %s", interfaces.ErrPreconditionViolation, id, asset.Status)
	}
	if asset.PendingBuyer != caller {
		return fmt.Errorf("%w: republish key: caller %s is not the pending buyer", interfaces.ErrPreconditionViolation, caller.Hex())
	}

	if err := o.publishKey(ctx, id, caller, passphrase); err != nil {
		return err
	}

	o.log.Info("Handoff key republished",
		slog.String("asset_id", id.String()),
		slog.String("buyer", caller.Hex()))
	return nil
}

// publishKey writes the passphrase public key of buyer to the handoff slot of id.
func (o *Orchestrator) publishKey(ctx context.Context, id interfaces.AssetID, buyer interfaces.Identity, passphrase string) error {
	kp, err := o.keys.DeriveKeypair(passphrase)
	if err != nil {
		return fmt.Errorf("could not derive keypair: %w", err)
	}

	return o.put(ctx, id.PublicKeySlotKey(), interfaces.StoredObject{
		OriginalName: buyer.Hex(),
		MimeType:     PublicKeyMimeType,
		CipherText:   kp.Public,
	})
}

// Confirm completes the sale of an offered asset. The content is decrypted with
// the owner's passphrase key, re-encrypted under the public key the pending buyer
// published and written back before the registry hands the asset over.
func (o *Orchestrator) Confirm(ctx context.Context, id interfaces.AssetID, passphrase string) (*interfaces.TxReceipt, error) {
	caller, err := o.caller(ctx)
	if err != nil {
		return nil, err
	}

	asset, err := o.registry.GetAsset(ctx, id)
	if err != nil {
		return nil, ledgerError("confirm", err)
	}
	if asset.Owner != caller {
		return nil, fmt.Errorf("%w: confirm: caller %s is not the owner", interfaces.ErrPreconditionViolation, caller.Hex())
	}
	if asset.Status != interfaces.Offered {
		return nil, fmt.Errorf("%w: confirm: asset %s is %s", interfaces.ErrPreconditionViolation, id, asset.Status)
	}

	content, err := o.get(ctx, id.ContentKey())
	if err != nil {
		return nil, err
	}

	kp, err := o.keys.DeriveKeypair(passphrase)
	if err != nil {
		return nil, fmt.Errorf("could not derive keypair: %w", err)
	}

	plaintext, err := o.keys.Decrypt(content.CipherText, kp)
	if err != nil {
		return nil, err
	}

	slot, err := o.get(ctx, id.PublicKeySlotKey())
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(slot.OriginalName) || common.HexToAddress(slot.OriginalName) != asset.PendingBuyer {
		return nil, fmt.Errorf("%w: slot published by %q, pending buyer %s must republish", interfaces.ErrHandoffKeyMismatch, slot.OriginalName, asset.PendingBuyer.Hex())
	}

	buyerKey, err := o.keys.ParsePublicKey(slot.CipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrHandoffKeyMismatch, err)
	}

	cipherText, err := o.keys.Encrypt(plaintext, buyerKey)
	if err != nil {
		return nil, fmt.Errorf("could not encrypt content: %w", err)
	}

	err = o.put(ctx, id.ContentKey(), interfaces.StoredObject{
		OriginalName: content.OriginalName,
		MimeType:     content.MimeType,
		CipherText:   cipherText,
	})
	if err != nil {
		return nil, err
	}

	receipt, err := o.registry.CompleteSale(ctx, caller, id)
	if err != nil {
		// The content is already sealed for the buyer at this point
		o.log.Warn("Content handed off but sale completion failed",
			slog.String("asset_id", id.String()),
			"err", err)
		return nil, ledgerError("complete sale", err)
	}

	o.log.Info("Sale completed",
		slog.String("asset_id", id.String()),
		slog.String("seller", caller.Hex()),
		slog.String("buyer", asset.PendingBuyer.Hex()),
		slog.String("tx_hash", receipt.TxHash.Hex()))
	return receipt, nil
}

// View decrypts the content of id with the passphrase key.
// A wrong passphrase fails with interfaces.ErrDecryptionFailure.
func (o *Orchestrator) View(ctx context.Context, id interfaces.AssetID, passphrase string) (*interfaces.File, error) {
	obj, err := o.get(ctx, id.ContentKey())
	if err != nil {
		return nil, err
	}

	kp, err := o.keys.DeriveKeypair(passphrase)
	if err != nil {
		return nil, fmt.Errorf("could not derive keypair: %w", err)
	}

	plaintext, err := o.keys.Decrypt(obj.CipherText, kp)
	if err != nil {
		return nil, err
	}

	return &interfaces.File{
		Name:     obj.OriginalName,
		MimeType: obj.MimeType,
		Content:  plaintext,
	}, nil
}

// History returns the ownership changes of id, oldest first.
func (o *Orchestrator) History(ctx context.Context, id interfaces.AssetID) ([]interfaces.OwnershipEvent, error) {
	if o.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return o.history.History(ctx, id)
}

// MyAssets lists the assets owned by the active identity.
func (o *Orchestrator) MyAssets(ctx context.Context) ([]*interfaces.Asset, error) {
	caller, err := o.caller(ctx)
	if err != nil {
		return nil, err
	}

	assets, err := o.registry.ListAllMyProperties(ctx, caller)
	if err != nil {
		return nil, ledgerError("list owned assets", err)
	}
	return assets, nil
}

// Market lists every asset currently on sale.
func (o *Orchestrator) Market(ctx context.Context) ([]*interfaces.Asset, error) {
	assets, err := o.registry.ListAllBuyableProperties(ctx)
	if err != nil {
		return nil, ledgerError("list market", err)
	}
	return assets, nil
}

func (o *Orchestrator) caller(ctx context.Context) (interfaces.Identity, error) {
	caller, err := o.identity.ActiveIdentity(ctx)
	if err != nil {
		if errors.Is(err, interfaces.ErrNoActiveIdentity) {
			return common.Address{}, err
		}
		return common.Address{}, fmt.Errorf("%w: %v", interfaces.ErrNoActiveIdentity, err)
	}
	if caller == (common.Address{}) {
		return common.Address{}, interfaces.ErrNoActiveIdentity
	}
	return caller, nil
}

func (o *Orchestrator) get(ctx context.Context, key string) (interfaces.StoredObject, error) {
	obj, err := o.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrContentNotFound) {
			return interfaces.StoredObject{}, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, key)
		}
		return interfaces.StoredObject{}, fmt.Errorf("%w: failed to read %s: %v", interfaces.ErrStorageUnavailable, key, err)
	}

	o.log.Debug("Read stored object", slog.String("key", key), slog.String("backend", o.store.Name()))
	return obj, nil
}

func (o *Orchestrator) put(ctx context.Context, key string, obj interfaces.StoredObject) error {
	if err := o.store.Put(ctx, key, obj); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", interfaces.ErrStorageUnavailable, key, err)
	}

	o.log.Debug("Wrote stored object", slog.String("key", key), slog.String("backend", o.store.Name()))
	return nil
}

// ledgerError keeps registry verdicts and maps anything else to a ledger outage.
func ledgerError(op string, err error) error {
	for _, kind := range []error{
		interfaces.ErrPreconditionViolation,
		interfaces.ErrAssetNotFound,
		interfaces.ErrLedgerUnavailable,
		interfaces.ErrNoActiveIdentity,
	} {
		if errors.Is(err, kind) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", interfaces.ErrLedgerUnavailable, op, err)
}
