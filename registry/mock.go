package registry

import (
	"context"
	"math/big"

	"github.com/ruteri/private-content-market/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockRegistry mocks the AssetRegistry interface
type MockRegistry struct {
	mock.Mock
}

// Register mocks the Register method
func (m *MockRegistry) Register(ctx context.Context, caller interfaces.Identity, name, description string, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	args := m.Called(ctx, caller, name, description, id)
	return receiptArg(args, 0), args.Error(1)
}

// InitiateSale mocks the InitiateSale method
func (m *MockRegistry) InitiateSale(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID, price *big.Int) (*interfaces.TxReceipt, error) {
	args := m.Called(ctx, caller, id, price)
	return receiptArg(args, 0), args.Error(1)
}

// CancelSale mocks the CancelSale method
func (m *MockRegistry) CancelSale(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	args := m.Called(ctx, caller, id)
	return receiptArg(args, 0), args.Error(1)
}

// Offer mocks the Offer method
func (m *MockRegistry) Offer(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID, payment *big.Int) (*interfaces.TxReceipt, error) {
	args := m.Called(ctx, caller, id, payment)
	return receiptArg(args, 0), args.Error(1)
}

// CompleteSale mocks the CompleteSale method
func (m *MockRegistry) CompleteSale(ctx context.Context, caller interfaces.Identity, id interfaces.AssetID) (*interfaces.TxReceipt, error) {
	args := m.Called(ctx, caller, id)
	return receiptArg(args, 0), args.Error(1)
}

// GetOwner mocks the GetOwner method
func (m *MockRegistry) GetOwner(ctx context.Context, id interfaces.AssetID) (interfaces.Identity, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.Identity), args.Error(1)
}

// GetAsset mocks the GetAsset method
func (m *MockRegistry) GetAsset(ctx context.Context, id interfaces.AssetID) (*interfaces.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Asset), args.Error(1)
}

// ListAllMyProperties mocks the ListAllMyProperties method
func (m *MockRegistry) ListAllMyProperties(ctx context.Context, caller interfaces.Identity) ([]*interfaces.Asset, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*interfaces.Asset), args.Error(1)
}

// ListAllBuyableProperties mocks the ListAllBuyableProperties method
func (m *MockRegistry) ListAllBuyableProperties(ctx context.Context) ([]*interfaces.Asset, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*interfaces.Asset), args.Error(1)
}

func receiptArg(args mock.Arguments, i int) *interfaces.TxReceipt {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*interfaces.TxReceipt)
}
