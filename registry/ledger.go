package registry

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/private-content-market/interfaces"
)

// LocalLedger is an in-process ledger running the registry contract semantics.
// Every submitted transaction is ABI-encoded exactly as it would be on chain and
// mined into its own block; reverted transactions are kept in history with a
// failed status. It implements both interfaces.AssetRegistry and interfaces.LedgerReader
// and is meant for development, tests and demos without an Ethereum node.
type LocalLedger struct {
	mu       sync.RWMutex
	book     *AssetBook
	address  common.Address
	blocks   []*interfaces.LedgerBlock
	failed   map[common.Hash]bool
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	clock    func() time.Time
	log      *slog.Logger
}

// LedgerOption configures a LocalLedger.
type LedgerOption func(*LocalLedger)

// WithClock overrides the block timestamp source.
func WithClock(clock func() time.Time) LedgerOption {
	return func(l *LocalLedger) { l.clock = clock }
}

// WithLogger sets the logger used for transaction traces.
func WithLogger(log *slog.Logger) LedgerOption {
	return func(l *LocalLedger) { l.log = log }
}

// WithContractAddress sets the address transactions are sent to.
func WithContractAddress(address common.Address) LedgerOption {
	return func(l *LocalLedger) { l.address = address }
}

// DefaultLocalContractAddress is the registry address of a LocalLedger unless configured.
var DefaultLocalContractAddress = crypto.CreateAddress(common.Address{}, 0)

// NewLocalLedger creates a ledger holding only a genesis block.
func NewLocalLedger(opts ...LedgerOption) *LocalLedger {
	l := &LocalLedger{
		book:     NewAssetBook(),
		address:  DefaultLocalContractAddress,
		failed:   make(map[common.Hash]bool),
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		clock:    time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.blocks = []*interfaces.LedgerBlock{{Number: 0, Timestamp: l.clock()}}
	return l
}

// Address returns the registry contract address.
func (l *LocalLedger) Address() common.Address {
	return l.address
}

// Fund credits amount to account.
func (l *LocalLedger) Fund(account interfaces.Identity, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, amount)
}

// BalanceOf returns the spendable balance of account.
func (l *LocalLedger) BalanceOf(account interfaces.Identity) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Escrow returns the payment currently held for id.
func (l *LocalLedger) Escrow(id interfaces.AssetID) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.Escrow(id)
}

// Register implements interfaces.AssetRegistry.
func (l *LocalLedger) Register(ctx context.Context, caller interfaces.Identity, name, description string, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	return l.submit(ctx, MethodRegister, caller, RegisterCallData(name, description, id), nil, func() error {
		return l.book.Register(caller, name, description, id)
	})
}

// InitiateSale implements interfaces.AssetRegistry.
func (l *LocalLedger) InitiateSale(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID, price *big.Int) (*interfaces.TxReceipt, error) {
	if price == nil {
		price = new(big.Int)
	}
	return l.submit(ctx, MethodInitiateSale, caller, InitiateSaleCallData(id, price), nil, func() error {
		return l.book.InitiateSale(caller, id, price)
	})
}

// CancelSale implements interfaces.AssetRegistry.
func (l *LocalLedger) CancelSale(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	return l.submit(ctx, MethodCancelSale, caller, CancelSaleCallData(id), nil, func() error {
		refund, err := l.book.CancelSale(caller, id)
		if err != nil {
			return err
		}
		if refund != nil {
			l.credit(refund.To, refund.Amount)
		}
		return nil
	})
}

// Offer implements interfaces.AssetRegistry.
func (l *LocalLedger) Offer(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID, payment *big.Int) (*interfaces.TxReceipt, error) {
	return l.submit(ctx, MethodOffer, caller, OfferCallData(id), payment, func() error {
		return l.book.Offer(caller, id, payment)
	})
}

// CompleteSale implements interfaces.AssetRegistry.
func (l *LocalLedger) CompleteSale(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	return l.submit(ctx, MethodCompleteSale, caller, TransferCallData(id), nil, func() error {
		payout, err := l.book.CompleteSale(caller, id)
		if err != nil {
			return err
		}
		l.credit(payout.To, payout.Amount)
		return nil
	})
}

// GetOwner implements interfaces.AssetRegistry.
func (l *LocalLedger) GetOwner(ctx context.Context, id interfaces.AssetID) (interfaces.Identity, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.Owner(id), nil
}

// GetAsset implements interfaces.AssetRegistry.
func (l *LocalLedger) GetAsset(ctx context.Context, id interfaces.AssetID) (*interfaces.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	asset, ok := l.book.Asset(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAssetNotFound, id)
	}
	return asset, nil
}

// ListAllMyProperties implements interfaces.AssetRegistry.
func (l *LocalLedger) ListAllMyProperties(ctx context.Context, caller interfaces.Identity) ([]*interfaces.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.OwnedBy(caller), nil
}

// ListAllBuyableProperties implements interfaces.AssetRegistry.
func (l *LocalLedger) ListAllBuyableProperties(ctx context.Context) ([]*interfaces.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.Buyable(), nil
}

// HeadHeight implements interfaces.LedgerReader.
func (l *LocalLedger) HeadHeight(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.blocks) - 1), nil
}

// BlockAt implements interfaces.LedgerReader.
func (l *LocalLedger) BlockAt(ctx context.Context, number uint64) (*interfaces.LedgerBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	if number >= uint64(len(l.blocks)) {
		return nil, fmt.Errorf("block %d not found", number)
	}

	block := *l.blocks[number]
	block.Transactions = append([]interfaces.LedgerTransaction(nil), block.Transactions...)
	return &block, nil
}

// Succeeded implements interfaces.LedgerReader.
func (l *LocalLedger) Succeeded(ctx context.Context, tx interfaces.LedgerTransaction) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.failed[tx.Hash], nil
}

// submit mines one transaction. The transition runs under the ledger lock, which
// stands in for block ordering: concurrent submissions are applied one at a time.
func (l *LocalLedger) submit(ctx context.Context, method string, caller interfaces.Identity, input []byte, value *big.Int, apply func() error) (*interfaces.TxReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if value != nil && value.Sign() > 0 {
		if bal := l.balances[caller]; bal == nil || bal.Cmp(value) < 0 {
			// Rejected before inclusion, nothing is recorded
			return nil, fmt.Errorf("%w: %s: insufficient funds for value %v", interfaces.ErrPreconditionViolation, method, value)
		}
	}

	nonce := l.nonces[caller]
	l.nonces[caller] = nonce + 1

	hash := txHash(caller, nonce, input)
	to := l.address
	tx := interfaces.LedgerTransaction{
		Hash:  hash,
		From:  caller,
		To:    &to,
		Input: input,
	}
	if value != nil {
		tx.Value = new(big.Int).Set(value)
	}

	block := &interfaces.LedgerBlock{
		Number:       uint64(len(l.blocks)),
		Timestamp:    l.clock(),
		Transactions: []interfaces.LedgerTransaction{tx},
	}
	l.blocks = append(l.blocks, block)

	if err := apply(); err != nil {
		l.failed[hash] = true
		l.log.Debug("Registry transaction reverted",
			slog.String("method", method),
			slog.String("caller", caller.Hex()),
			slog.Uint64("block", block.Number),
			"err", err)
		return nil, err
	}

	if value != nil && value.Sign() > 0 {
		l.balances[caller] = new(big.Int).Sub(l.balances[caller], value)
	}

	l.log.Debug("Registry transaction applied",
		slog.String("method", method),
		slog.String("caller", caller.Hex()),
		slog.Uint64("block", block.Number),
		slog.String("tx_hash", hash.Hex()))

	return &interfaces.TxReceipt{TxHash: hash, BlockNumber: block.Number}, nil
}

func (l *LocalLedger) credit(account interfaces.Identity, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	bal := l.balances[account]
	if bal == nil {
		bal = new(big.Int)
	}
	l.balances[account] = new(big.Int).Add(bal, amount)
}

func txHash(sender interfaces.Identity, nonce uint64, input []byte) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256Hash(sender.Bytes(), n[:], input)
}
