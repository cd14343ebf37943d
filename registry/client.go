package registry

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/private-content-market/interfaces"
)

// ErrNoTransactOpts is returned when a transaction is attempted for a caller
// without a registered signer.
var ErrNoTransactOpts = fmt.Errorf("%w: no authorized transactor available", interfaces.ErrNoActiveIdentity)

// OnchainRegistryClient implements interfaces.AssetRegistry against a Properties
// contract deployed on an Ethereum chain.
type OnchainRegistryClient struct {
	contract *bind.BoundContract
	client   bind.ContractBackend
	backend  bind.DeployBackend
	address  common.Address
	log      *slog.Logger

	mu      sync.RWMutex
	signers map[common.Address]*bind.TransactOpts
}

// NewOnchainRegistryClient creates a new client for the registry contract at address.
// It requires a ContractBackend for calls and submissions and a DeployBackend for
// waiting on receipts.
func NewOnchainRegistryClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address, log *slog.Logger) (*OnchainRegistryClient, error) {
	if log == nil {
		log = slog.Default()
	}

	return &OnchainRegistryClient{
		contract: bind.NewBoundContract(address, propertiesABI, client, client, client),
		client:   client,
		backend:  backend,
		address:  address,
		log:      log,
		signers:  make(map[common.Address]*bind.TransactOpts),
	}, nil
}

// Address returns the registry contract address.
func (c *OnchainRegistryClient) Address() common.Address {
	return c.address
}

// SetTransactOpts registers the signer for auth.From.
// Every identity that submits transitions needs its own signer.
func (c *OnchainRegistryClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signers[auth.From] = auth
}

// VerifyDeployed checks that contract code exists at the registry address.
// A call to an address without code succeeds silently, so clients should
// verify once before submitting transitions.
func (c *OnchainRegistryClient) VerifyDeployed(ctx context.Context) error {
	code, err := c.backend.CodeAt(ctx, c.address, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no registry contract deployed at %s", c.address.Hex())
	}
	return nil
}

// Register implements interfaces.AssetRegistry.
func (c *OnchainRegistryClient) Register(ctx context.Context, caller interfaces.Identity, name, description string, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	return c.transact(ctx, caller, nil, MethodRegister, name, description, id.Big())
}

// InitiateSale implements interfaces.AssetRegistry.
func (c *OnchainRegistryClient) InitiateSale(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID, price *big.Int) (*interfaces.TxReceipt, error) {
	if price == nil {
		price = new(big.Int)
	}
	return c.transact(ctx, caller, nil, MethodInitiateSale, id.Big(), price)
}

// CancelSale implements interfaces.AssetRegistry.
func (c *OnchainRegistryClient) CancelSale(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	return c.transact(ctx, caller, nil, MethodCancelSale, id.Big())
}

// Offer implements interfaces.AssetRegistry. The payment is sent as transaction value.
func (c *OnchainRegistryClient) Offer(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID, payment *big.Int) (*interfaces.TxReceipt, error) {
	return c.transact(ctx, caller, payment, MethodOffer, id.Big())
}

// CompleteSale implements interfaces.AssetRegistry.
func (c *OnchainRegistryClient) CompleteSale(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	return c.transact(ctx, caller, nil, MethodCompleteSale, id.Big())
}

// GetOwner implements interfaces.AssetRegistry.
func (c *OnchainRegistryClient) GetOwner(ctx context.Context, id interfaces.AssetID) (interfaces.Identity, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetOwner, id.Big()); err != nil {
		return common.Address{}, fmt.Errorf("%w: getOwner: %v", interfaces.ErrLedgerUnavailable, err)
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("%w: getOwner: unexpected result", interfaces.ErrLedgerUnavailable)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// GetAsset implements interfaces.AssetRegistry.
func (c *OnchainRegistryClient) GetAsset(ctx context.Context, id interfaces.AssetID) (*interfaces.Asset, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, MethodGetProperty, id.Big()); err != nil {
		return nil, fmt.Errorf("%w: getProperty: %v", interfaces.ErrLedgerUnavailable, err)
	}
	return assetFromProperty(id, out)
}

// ListAllMyProperties implements interfaces.AssetRegistry.
func (c *OnchainRegistryClient) ListAllMyProperties(ctx context.Context, caller interfaces.Identity) ([]*interfaces.Asset, error) {
	return c.listAssets(ctx, &bind.CallOpts{Context: ctx, From: caller}, MethodListAllMyProperties)
}

// ListAllBuyableProperties implements interfaces.AssetRegistry.
func (c *OnchainRegistryClient) ListAllBuyableProperties(ctx context.Context) ([]*interfaces.Asset, error) {
	return c.listAssets(ctx, &bind.CallOpts{Context: ctx}, MethodListAllBuyableProperties)
}

func (c *OnchainRegistryClient) listAssets(ctx context.Context, opts *bind.CallOpts, method string) ([]*interfaces.Asset, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, method); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrLedgerUnavailable, method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s: unexpected result", interfaces.ErrLedgerUnavailable, method)
	}

	ids := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	assets := make([]*interfaces.Asset, 0, len(ids))
	for _, raw := range ids {
		id, err := interfaces.NewAssetIDFromBig(raw)
		if err != nil {
			c.log.Warn("Skipping out of range asset id", slog.String("method", method), slog.String("id", raw.String()))
			continue
		}
		asset, err := c.GetAsset(ctx, id)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

// transact submits method as caller and waits until it is mined.
func (c *OnchainRegistryClient) transact(ctx context.Context, caller interfaces.Identity, value *big.Int, method string, args ...interface{}) (*interfaces.TxReceipt, error) {
	c.mu.RLock()
	auth, ok := c.signers[caller]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoTransactOpts, caller.Hex())
	}

	opts := *auth
	opts.Context = ctx
	opts.Value = value

	tx, err := c.contract.Transact(&opts, method, args...)
	if err != nil {
		c.log.Debug("Registry transaction rejected",
			slog.String("method", method),
			slog.String("caller", caller.Hex()),
			"err", err)
		return nil, classifySubmitError(method, err)
	}

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: waiting for %s: %v", interfaces.ErrLedgerUnavailable, method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s: transaction %s reverted", interfaces.ErrPreconditionViolation, method, tx.Hash().Hex())
	}

	c.log.Debug("Registry transaction mined",
		slog.String("method", method),
		slog.String("caller", caller.Hex()),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("block", receipt.BlockNumber.Uint64()))

	return &interfaces.TxReceipt{TxHash: tx.Hash(), BlockNumber: receipt.BlockNumber.Uint64()}, nil
}

// classifySubmitError separates contract reverts, which surface during gas
// estimation, from transport failures.
func classifySubmitError(method string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "execution reverted"),
		strings.Contains(msg, "revert"),
		strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %s: %v", interfaces.ErrPreconditionViolation, method, err)
	default:
		return fmt.Errorf("%w: %s: %v", interfaces.ErrLedgerUnavailable, method, err)
	}
}

func assetFromProperty(id interfaces.AssetID, out []interface{}) (*interfaces.Asset, error) {
	if len(out) != 6 {
		return nil, fmt.Errorf("%w: getProperty: unexpected result length %d", interfaces.ErrLedgerUnavailable, len(out))
	}

	owner := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAssetNotFound, id)
	}

	asset := &interfaces.Asset{
		ID:           id,
		Owner:        owner,
		Name:         *abi.ConvertType(out[1], new(string)).(*string),
		Description:  *abi.ConvertType(out[2], new(string)).(*string),
		Status:       interfaces.AssetStatus(*abi.ConvertType(out[3], new(uint8)).(*uint8)),
		PendingBuyer: *abi.ConvertType(out[5], new(common.Address)).(*common.Address),
	}
	if price := *abi.ConvertType(out[4], new(*big.Int)).(**big.Int); price != nil && price.Sign() > 0 {
		asset.Price = price
	}
	return asset, nil
}
