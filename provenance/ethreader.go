package provenance

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/private-content-market/interfaces"
)

// ChainClient is the subset of ethclient.Client the reader needs.
// The simulated backend client satisfies it as well.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthReader implements interfaces.LedgerReader over an Ethereum JSON-RPC client.
// Receipts are fetched only for transactions the scanner asks about.
type EthReader struct {
	client ChainClient

	mu     sync.Mutex
	signer types.Signer
}

// NewEthReader wraps client.
func NewEthReader(client ChainClient) *EthReader {
	return &EthReader{client: client}
}

// HeadHeight implements interfaces.LedgerReader.
func (r *EthReader) HeadHeight(ctx context.Context) (uint64, error) {
	return r.client.BlockNumber(ctx)
}

// BlockAt implements interfaces.LedgerReader. Senders are recovered from signatures.
func (r *EthReader) BlockAt(ctx context.Context, number uint64) (*interfaces.LedgerBlock, error) {
	signer, err := r.chainSigner(ctx)
	if err != nil {
		return nil, err
	}

	block, err := r.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %d: %w", number, err)
	}

	result := &interfaces.LedgerBlock{
		Number:       block.NumberU64(),
		Timestamp:    time.Unix(int64(block.Time()), 0).UTC(),
		Transactions: make([]interfaces.LedgerTransaction, 0, len(block.Transactions())),
	}

	for _, tx := range block.Transactions() {
		from, err := types.Sender(signer, tx)
		if err != nil {
			return nil, fmt.Errorf("failed to recover sender of %s: %w", tx.Hash().Hex(), err)
		}

		result.Transactions = append(result.Transactions, interfaces.LedgerTransaction{
			Hash:  tx.Hash(),
			From:  from,
			To:    tx.To(),
			Input: tx.Data(),
			Value: tx.Value(),
		})
	}

	return result, nil
}

// Succeeded implements interfaces.LedgerReader.
func (r *EthReader) Succeeded(ctx context.Context, tx interfaces.LedgerTransaction) (bool, error) {
	receipt, err := r.client.TransactionReceipt(ctx, tx.Hash)
	if err != nil {
		return false, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	return receipt.Status == types.ReceiptStatusSuccessful, nil
}

func (r *EthReader) chainSigner(ctx context.Context) (types.Signer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.signer != nil {
		return r.signer, nil
	}

	chainID, err := r.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain id: %w", err)
	}
	r.signer = types.LatestSignerForChainID(chainID)
	return r.signer, nil
}
