package interfaces

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerTransaction is one submitted call as recorded in a block.
type LedgerTransaction struct {
	Hash  common.Hash
	From  Identity
	To    *common.Address // nil for contract creation
	Input []byte
	Value *big.Int
}

// LedgerBlock is one block of the append-only ledger.
type LedgerBlock struct {
	Number       uint64
	Timestamp    time.Time
	Transactions []LedgerTransaction
}

// LedgerReader gives read access to raw ledger history.
type LedgerReader interface {
	// HeadHeight returns the number of the latest block.
	HeadHeight(ctx context.Context) (uint64, error)

	// BlockAt returns the block with the given number, including its transactions.
	BlockAt(ctx context.Context, number uint64) (*LedgerBlock, error)

	// Succeeded reports whether the transaction was applied rather than reverted.
	Succeeded(ctx context.Context, tx LedgerTransaction) (bool, error)
}
