package interfaces

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssetIDSize is the number of digest bytes kept in an asset fingerprint.
const AssetIDSize = 16

// PublicKeySlotSuffix marks the transient storage slot holding a buyer's public key.
const PublicKeySlotSuffix = "pk"

// Identity is the ledger address of a party.
type Identity = common.Address

// AssetID is the truncated SHA-256 fingerprint of the registered file bytes.
type AssetID [AssetIDSize]byte

// ComputeAssetID calculates the asset fingerprint from raw file bytes.
func ComputeAssetID(content []byte) AssetID {
	hash := sha256.Sum256(content)
	var id AssetID
	copy(id[:], hash[:AssetIDSize])
	return id
}

// NewAssetIDFromBytes creates an asset ID from a byte slice of the exact size.
func NewAssetIDFromBytes(source []byte) (AssetID, error) {
	if len(source) != AssetIDSize {
		return AssetID{}, errors.New("invalid AssetID conversion from bytes: incorrect length")
	}

	var id AssetID
	copy(id[:], source)
	return id, nil
}

// NewAssetIDFromHex parses the hex form returned by String, with or without a 0x prefix.
func NewAssetIDFromHex(source string) (AssetID, error) {
	// Remove 0x prefix if present
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 2*AssetIDSize {
		return AssetID{}, fmt.Errorf("invalid asset ID length: hex string must be %d characters", 2*AssetIDSize)
	}

	idBytes, err := hex.DecodeString(clean)
	if err != nil {
		return AssetID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewAssetIDFromBytes(idBytes)
}

// NewAssetIDFromBig converts a ledger uint256 back into an asset ID.
func NewAssetIDFromBig(value *big.Int) (AssetID, error) {
	if value == nil || value.Sign() < 0 || value.BitLen() > 8*AssetIDSize {
		return AssetID{}, errors.New("invalid asset ID: value out of range")
	}

	var id AssetID
	value.FillBytes(id[:])
	return id, nil
}

// String returns hex representation.
func (id AssetID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw fingerprint bytes.
func (id AssetID) Bytes() []byte {
	return id[:]
}

// Big returns the fingerprint as the unsigned integer used in ledger calls.
func (id AssetID) Big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// Equal compares two asset IDs.
func (id AssetID) Equal(other AssetID) bool {
	return bytes.Equal(id[:], other[:])
}

// ContentKey is the storage key of the asset's encrypted content.
func (id AssetID) ContentKey() string {
	return id.String()
}

// PublicKeySlotKey is the storage key where a prospective buyer publishes a public key.
func (id AssetID) PublicKeySlotKey() string {
	return id.String() + PublicKeySlotSuffix
}

// AssetStatus is the sale state of an asset.
type AssetStatus uint8

const (
	// OnHold is the resting state; the owner keeps the asset.
	OnHold AssetStatus = iota
	// OnSale means the owner asks a price.
	OnSale
	// Offered means a buyer has escrowed the price and awaits confirmation.
	Offered
)

// String returns status name.
func (s AssetStatus) String() string {
	switch s {
	case OnHold:
		return "on-hold"
	case OnSale:
		return "on-sale"
	case Offered:
		return "offered"
	default:
		return "unknown"
	}
}

// Asset is the registry record of a unit of ownership.
type Asset struct {
	ID           AssetID     `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Owner        Identity    `json:"owner"`
	Status       AssetStatus `json:"status"`
	Price        *big.Int    `json:"price,omitempty"`
	PendingBuyer Identity    `json:"pending_buyer,omitempty"`
}

// Buyable reports whether the asset currently accepts offers.
func (a *Asset) Buyable() bool {
	return a.Status == OnSale
}

// StoredObject is the encrypted payload for an asset's content, or a handoff public key.
type StoredObject struct {
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	CipherText   []byte `json:"content"`
}

// File is a decrypted document as handed back to its holder.
type File struct {
	Name     string
	MimeType string
	Content  []byte
}

// TransferRecord is a raw ownership transfer call recovered from ledger history.
type TransferRecord struct {
	Sender      Identity    `json:"sender"`
	Timestamp   time.Time   `json:"timestamp"`
	BlockNumber uint64      `json:"block_number"`
	TxHash      common.Hash `json:"tx_hash"`
}

// OwnershipEvent is a derived view of one change of owner.
type OwnershipEvent struct {
	PreviousOwner Identity    `json:"previous_owner"`
	NewOwner      Identity    `json:"new_owner"`
	Timestamp     time.Time   `json:"timestamp"`
	BlockNumber   uint64      `json:"block_number"`
	TxHash        common.Hash `json:"tx_hash"`
}

// TxReceipt identifies an applied registry transaction.
type TxReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
}
