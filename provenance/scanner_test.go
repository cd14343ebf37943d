package provenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/private-content-market/interfaces"
	"github.com/ruteri/private-content-market/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

var _ interfaces.LedgerReader = (*EthReader)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger() *registry.LocalLedger {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int64
	return registry.NewLocalLedger(
		registry.WithLogger(testLogger()),
		registry.WithClock(func() time.Time {
			n++
			return base.Add(time.Duration(n) * time.Minute)
		}),
	)
}

// sell runs a full sale of id from seller to buyer at price.
func sell(t *testing.T, ledger *registry.LocalLedger, seller, buyer interfaces.Identity, id interfaces.AssetID, price int64) {
	t.Helper()
	ctx := context.Background()
	ledger.Fund(buyer, big.NewInt(price))
	_, err := ledger.InitiateSale(ctx, seller, id, big.NewInt(price))
	require.NoError(t, err)
	_, err = ledger.Offer(ctx, buyer, id, big.NewInt(price))
	require.NoError(t, err)
	_, err = ledger.CompleteSale(ctx, seller, id)
	require.NoError(t, err)
}

func TestScanner_TwoTransfers(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger()
	id := interfaces.ComputeAssetID([]byte("file1"))
	other := interfaces.ComputeAssetID([]byte("file2"))

	_, err := ledger.Register(ctx, alice, "doc", "desc", id)
	require.NoError(t, err)
	_, err = ledger.Register(ctx, alice, "other", "", other)
	require.NoError(t, err)

	sell(t, ledger, alice, bob, id, 100)

	// A sale of another asset and a reverted completeSale must be ignored
	sell(t, ledger, alice, carol, other, 5)
	_, err = ledger.CompleteSale(ctx, carol, id)
	require.ErrorIs(t, err, interfaces.ErrPreconditionViolation)

	sell(t, ledger, bob, carol, id, 200)

	scanner := NewScanner(ledger, Config{Registry: ledger.Address()}, testLogger())

	records, err := scanner.Scan(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, alice, records[0].Sender)
	assert.Equal(t, uint64(5), records[0].BlockNumber)
	assert.Equal(t, bob, records[1].Sender)
	assert.Equal(t, uint64(12), records[1].BlockNumber)
	assert.True(t, records[0].Timestamp.Before(records[1].Timestamp))
	assert.NotEqual(t, records[0].TxHash, records[1].TxHash)

	history, err := scanner.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, alice, history[0].PreviousOwner)
	assert.Equal(t, bob, history[0].NewOwner)
	assert.Equal(t, bob, history[1].PreviousOwner)
	assert.Equal(t, carol, history[1].NewOwner)

	owner, err := ledger.GetOwner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, history[len(history)-1].NewOwner, owner)
}

func TestScanner_CancelledOfferIsNotTheBuyer(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger()
	id := interfaces.ComputeAssetID([]byte("file1"))

	_, err := ledger.Register(ctx, alice, "doc", "", id)
	require.NoError(t, err)

	ledger.Fund(carol, big.NewInt(10))
	_, err = ledger.InitiateSale(ctx, alice, id, big.NewInt(10))
	require.NoError(t, err)
	_, err = ledger.Offer(ctx, carol, id, big.NewInt(10))
	require.NoError(t, err)
	_, err = ledger.CancelSale(ctx, alice, id)
	require.NoError(t, err)

	sell(t, ledger, alice, bob, id, 10)

	history, err := NewScanner(ledger, Config{Registry: ledger.Address()}, testLogger()).History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, bob, history[0].NewOwner)
}

func TestScanner_EmptyResults(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger()
	id := interfaces.ComputeAssetID([]byte("file1"))

	_, err := ledger.Register(ctx, alice, "doc", "", id)
	require.NoError(t, err)

	t.Run("never sold", func(t *testing.T) {
		records, err := NewScanner(ledger, Config{Registry: ledger.Address()}, testLogger()).Scan(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	sell(t, ledger, alice, bob, id, 1)

	t.Run("start past head", func(t *testing.T) {
		records, err := NewScanner(ledger, Config{Registry: ledger.Address(), StartHeight: 1000}, testLogger()).Scan(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("start after the sale", func(t *testing.T) {
		records, err := NewScanner(ledger, Config{Registry: ledger.Address(), StartHeight: 5}, testLogger()).Scan(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("other registry address", func(t *testing.T) {
		records, err := NewScanner(ledger, Config{Registry: common.HexToAddress("0x1234")}, testLogger()).Scan(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

// growingReader mines a new matching block every time a block is read.
type growingReader struct {
	registry common.Address
	input    []byte
	blocks   []*interfaces.LedgerBlock
	fail     map[string]error
}

func newGrowingReader(id interfaces.AssetID) *growingReader {
	r := &growingReader{
		registry: common.HexToAddress("0xfeed"),
		input:    registry.TransferCallData(id),
		fail:     map[string]error{},
	}
	r.blocks = []*interfaces.LedgerBlock{{Number: 0}}
	r.mine()
	r.mine()
	return r
}

func (r *growingReader) mine() {
	to := r.registry
	n := uint64(len(r.blocks))
	r.blocks = append(r.blocks, &interfaces.LedgerBlock{
		Number:    n,
		Timestamp: time.Unix(int64(n), 0),
		Transactions: []interfaces.LedgerTransaction{
			{Hash: common.BigToHash(big.NewInt(int64(n))), From: alice, To: &to, Input: r.input},
			{Hash: common.BigToHash(big.NewInt(int64(n + 1000))), From: alice, To: nil, Input: r.input},
		},
	})
}

func (r *growingReader) HeadHeight(ctx context.Context) (uint64, error) {
	if err := r.fail["head"]; err != nil {
		return 0, err
	}
	return uint64(len(r.blocks) - 1), nil
}

func (r *growingReader) BlockAt(ctx context.Context, number uint64) (*interfaces.LedgerBlock, error) {
	if err := r.fail["block"]; err != nil {
		return nil, err
	}
	block := r.blocks[number]
	r.mine()
	return block, nil
}

func (r *growingReader) Succeeded(ctx context.Context, tx interfaces.LedgerTransaction) (bool, error) {
	if err := r.fail["receipt"]; err != nil {
		return false, err
	}
	return true, nil
}

func TestScanner_HeadSnapshot(t *testing.T) {
	id := interfaces.ComputeAssetID([]byte("file1"))
	reader := newGrowingReader(id)

	records, err := NewScanner(reader, Config{Registry: reader.registry}, testLogger()).Scan(context.Background(), id)
	require.NoError(t, err)

	// Blocks 1 and 2 existed when the scan started
	require.Len(t, records, 2)
	assert.Equal(t, uint64(1), records[0].BlockNumber)
	assert.Equal(t, uint64(2), records[1].BlockNumber)
	assert.Greater(t, len(reader.blocks), 3)
}

func TestScanner_LedgerErrors(t *testing.T) {
	id := interfaces.ComputeAssetID([]byte("file1"))

	for _, stage := range []string{"head", "block", "receipt"} {
		t.Run(stage, func(t *testing.T) {
			reader := newGrowingReader(id)
			reader.fail[stage] = errors.New("connection refused")

			_, err := NewScanner(reader, Config{Registry: reader.registry}, testLogger()).Scan(context.Background(), id)
			assert.ErrorIs(t, err, interfaces.ErrLedgerUnavailable)
		})
	}

	t.Run("cancelled context", func(t *testing.T) {
		reader := newGrowingReader(id)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewScanner(reader, Config{Registry: reader.registry}, testLogger()).History(ctx, id)
		assert.ErrorIs(t, err, interfaces.ErrLedgerUnavailable)
	})
}
