package registry

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ruteri/private-content-market/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ interfaces.AssetRegistry = (*OnchainRegistryClient)(nil)
var _ interfaces.AssetRegistry = (*MockRegistry)(nil)

func TestCallData_MatchesContractEncoding(t *testing.T) {
	id := interfaces.ComputeAssetID([]byte("file1"))

	padded := common.LeftPadBytes(id.Bytes(), 32)
	want := append(crypto.Keccak256([]byte("completeSale(uint256)"))[:4], padded...)
	assert.Equal(t, want, TransferCallData(id))

	wantOffer := append(crypto.Keccak256([]byte("offer(uint256)"))[:4], padded...)
	assert.Equal(t, wantOffer, OfferCallData(id))

	assert.NotEqual(t, TransferCallData(id), TransferCallData(interfaces.ComputeAssetID([]byte("file2"))))
	assert.NotEqual(t, TransferCallData(id), CancelSaleCallData(id))

	// Every method of the contract is present in the ABI
	for _, name := range []string{
		MethodRegister, MethodInitiateSale, MethodCancelSale, MethodOffer, MethodCompleteSale,
		MethodGetOwner, MethodGetProperty, MethodListAllMyProperties, MethodListAllBuyableProperties,
	} {
		_, ok := ContractABI().Methods[name]
		assert.True(t, ok, name)
	}
	assert.True(t, ContractABI().Methods[MethodOffer].IsPayable())
}

func TestClassifySubmitError(t *testing.T) {
	assert.ErrorIs(t, classifySubmitError(MethodOffer, errors.New("execution reverted: offer: payment does not match price")), interfaces.ErrPreconditionViolation)
	assert.ErrorIs(t, classifySubmitError(MethodOffer, errors.New("insufficient funds for gas * price + value")), interfaces.ErrPreconditionViolation)
	assert.ErrorIs(t, classifySubmitError(MethodOffer, errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")), interfaces.ErrLedgerUnavailable)
}

func TestAssetFromProperty(t *testing.T) {
	id := interfaces.ComputeAssetID([]byte("file1"))

	asset, err := assetFromProperty(id, []interface{}{alice, "doc", "desc", uint8(2), big.NewInt(10), bob})
	require.NoError(t, err)
	assert.Equal(t, &interfaces.Asset{
		ID:           id,
		Name:         "doc",
		Description:  "desc",
		Owner:        alice,
		Status:       interfaces.Offered,
		Price:        big.NewInt(10),
		PendingBuyer: bob,
	}, asset)

	_, err = assetFromProperty(id, []interface{}{common.Address{}, "", "", uint8(0), big.NewInt(0), common.Address{}})
	assert.ErrorIs(t, err, interfaces.ErrAssetNotFound)

	_, err = assetFromProperty(id, []interface{}{alice})
	assert.ErrorIs(t, err, interfaces.ErrLedgerUnavailable)
}

func TestOnchainRegistryClient_WithoutContract(t *testing.T) {
	backend, auth, _, err := SetupTestChain()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registryAddr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	regClient, err := NewOnchainRegistryClient(backend.Client(), backend.Client(), registryAddr, logger)
	require.NoError(t, err)
	assert.Equal(t, registryAddr, regClient.Address())

	// Nothing deployed at the address
	assert.Error(t, regClient.VerifyDeployed(ctx))

	_, err = regClient.GetOwner(ctx, interfaces.ComputeAssetID([]byte("file1")))
	assert.ErrorIs(t, err, interfaces.ErrLedgerUnavailable)

	// Transitions need a signer for the caller
	_, err = regClient.CompleteSale(ctx, auth.From, interfaces.ComputeAssetID([]byte("file1")))
	assert.ErrorIs(t, err, ErrNoTransactOpts)

	regClient.SetTransactOpts(auth)
	_, err = regClient.CompleteSale(ctx, bob, interfaces.ComputeAssetID([]byte("file1")))
	assert.ErrorIs(t, err, ErrNoTransactOpts)
}

// SetupTestChain creates a simulated blockchain for testing purposes.
// It returns:
// - The simulated backend for direct control (commit blocks, etc.)
// - The transaction auth with the funded account
// - The private key for the funded account
func SetupTestChain() (*simulated.Backend, *bind.TransactOpts, *ecdsa.PrivateKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, nil, err
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, big.NewInt(1337))
	if err != nil {
		return nil, nil, nil, err
	}

	balance := new(big.Int)
	balance.SetString("10000000000000000000", 10) // 10 ETH

	genesisAlloc := map[common.Address]types.Account{
		auth.From: {
			Balance: balance,
		},
	}

	blockGasLimit := uint64(8000000)
	backend := simulated.NewBackend(genesisAlloc, simulated.WithBlockGasLimit(blockGasLimit))

	return backend, auth, privateKey, nil
}
