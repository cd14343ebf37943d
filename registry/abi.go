package registry

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ruteri/private-content-market/interfaces"
)

// Contract method names.
const (
	MethodRegister                 = "register"
	MethodInitiateSale             = "initiateSale"
	MethodCancelSale               = "cancelSale"
	MethodOffer                    = "offer"
	MethodCompleteSale             = "completeSale"
	MethodGetOwner                 = "getOwner"
	MethodGetProperty              = "getProperty"
	MethodListAllMyProperties      = "listAllMyProperties"
	MethodListAllBuyableProperties = "listAllBuyableProperties"
)

// PropertiesABI is the ABI of the Properties registry contract (contracts/Properties.sol).
const PropertiesABI = `[
	{"type":"function","name":"register","stateMutability":"nonpayable",
	 "inputs":[{"name":"name","type":"string"},{"name":"description","type":"string"},{"name":"id","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"initiateSale","stateMutability":"nonpayable",
	 "inputs":[{"name":"id","type":"uint256"},{"name":"price","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"cancelSale","stateMutability":"nonpayable",
	 "inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"offer","stateMutability":"payable",
	 "inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"completeSale","stateMutability":"nonpayable",
	 "inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getOwner","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getProperty","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[{"name":"owner","type":"address"},{"name":"name","type":"string"},{"name":"description","type":"string"},
	            {"name":"status","type":"uint8"},{"name":"price","type":"uint256"},{"name":"pendingBuyer","type":"address"}]},
	{"type":"function","name":"listAllMyProperties","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"listAllBuyableProperties","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256[]"}]}
]`

var propertiesABI = mustParseABI(PropertiesABI)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid registry ABI: %v", err))
	}
	return parsed
}

// ContractABI returns the parsed registry ABI.
func ContractABI() abi.ABI {
	return propertiesABI
}

// TransferCallData returns the exact transaction input of completeSale(id).
// The provenance scanner matches history against it byte for byte.
func TransferCallData(id interfaces.AssetID) []byte {
	return mustPack(MethodCompleteSale, id.Big())
}

// OfferCallData returns the exact transaction input of offer(id).
func OfferCallData(id interfaces.AssetID) []byte {
	return mustPack(MethodOffer, id.Big())
}

// CancelSaleCallData returns the exact transaction input of cancelSale(id).
func CancelSaleCallData(id interfaces.AssetID) []byte {
	return mustPack(MethodCancelSale, id.Big())
}

// RegisterCallData returns the transaction input of register(name, description, id).
func RegisterCallData(name, description string, id interfaces.AssetID) []byte {
	return mustPack(MethodRegister, name, description, id.Big())
}

// InitiateSaleCallData returns the transaction input of initiateSale(id, price).
func InitiateSaleCallData(id interfaces.AssetID, price *big.Int) []byte {
	return mustPack(MethodInitiateSale, id.Big(), price)
}

// mustPack panics on argument mismatches, which are programming errors
// given the fixed argument lists above.
func mustPack(method string, args ...interface{}) []byte {
	data, err := propertiesABI.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("failed to pack %s: %v", method, err))
	}
	return data
}
