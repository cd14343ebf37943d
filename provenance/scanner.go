package provenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/private-content-market/interfaces"
	"github.com/ruteri/private-content-market/registry"
)

// progressInterval is how many blocks pass between debug progress lines.
const progressInterval = 10000

// Config selects which ledger history the scanner replays.
type Config struct {
	// Registry is the address of the registry contract.
	Registry common.Address
	// StartHeight is the first block examined, normally the deployment block of the registry.
	StartHeight uint64
}

// Scanner replays raw ledger history to recover the transfer history of an asset.
// Every scan is linear in the number of blocks between StartHeight and the head;
// there is no index.
type Scanner struct {
	reader interfaces.LedgerReader
	cfg    Config
	log    *slog.Logger
}

// NewScanner creates a scanner over reader.
func NewScanner(reader interfaces.LedgerReader, cfg Config, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{
		reader: reader,
		cfg:    cfg,
		log:    log,
	}
}

// Scan returns one record per successful completeSale call on id, oldest first.
// The head height is read once when the scan starts; blocks mined during the
// scan are not included. A start height past the head yields an empty result.
func (s *Scanner) Scan(ctx context.Context, id interfaces.AssetID) ([]interfaces.TransferRecord, error) {
	records := []interfaces.TransferRecord{}

	err := s.walk(ctx, id, func(block *interfaces.LedgerBlock, tx interfaces.LedgerTransaction, method string) {
		if method != registry.MethodCompleteSale {
			return
		}
		records = append(records, interfaces.TransferRecord{
			Sender:      tx.From,
			Timestamp:   block.Timestamp,
			BlockNumber: block.Number,
			TxHash:      tx.Hash,
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// History pairs every transfer with the buyer it went to. The buyer of a sale is
// the sender of the last successful offer since the previous sale or cancellation.
func (s *Scanner) History(ctx context.Context, id interfaces.AssetID) ([]interfaces.OwnershipEvent, error) {
	events := []interfaces.OwnershipEvent{}
	var pendingBuyer interfaces.Identity

	err := s.walk(ctx, id, func(block *interfaces.LedgerBlock, tx interfaces.LedgerTransaction, method string) {
		switch method {
		case registry.MethodOffer:
			pendingBuyer = tx.From
		case registry.MethodCancelSale:
			pendingBuyer = common.Address{}
		case registry.MethodCompleteSale:
			events = append(events, interfaces.OwnershipEvent{
				PreviousOwner: tx.From,
				NewOwner:      pendingBuyer,
				Timestamp:     block.Timestamp,
				BlockNumber:   block.Number,
				TxHash:        tx.Hash,
			})
			pendingBuyer = common.Address{}
		}
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

// walk visits every successful offer, cancelSale and completeSale call on id
// between the start height and the head snapshot, in ledger order.
func (s *Scanner) walk(ctx context.Context, id interfaces.AssetID, visit func(*interfaces.LedgerBlock, interfaces.LedgerTransaction, string)) error {
	start := time.Now()

	head, err := s.reader.HeadHeight(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to read head height: %v", interfaces.ErrLedgerUnavailable, err)
	}

	if s.cfg.StartHeight > head {
		s.log.Debug("Scan start is past the head",
			slog.Uint64("start", s.cfg.StartHeight),
			slog.Uint64("head", head))
		return nil
	}

	targets := map[string]string{
		string(registry.TransferCallData(id)):   registry.MethodCompleteSale,
		string(registry.OfferCallData(id)):      registry.MethodOffer,
		string(registry.CancelSaleCallData(id)): registry.MethodCancelSale,
	}

	matched := 0
	for n := s.cfg.StartHeight; n <= head; n++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: scan interrupted at block %d: %v", interfaces.ErrLedgerUnavailable, n, err)
		}

		block, err := s.reader.BlockAt(ctx, n)
		if err != nil {
			return fmt.Errorf("%w: failed to read block %d: %v", interfaces.ErrLedgerUnavailable, n, err)
		}

		for _, tx := range block.Transactions {
			if tx.To == nil || *tx.To != s.cfg.Registry {
				continue
			}

			method, ok := targets[string(tx.Input)]
			if !ok {
				continue
			}

			succeeded, err := s.reader.Succeeded(ctx, tx)
			if err != nil {
				return fmt.Errorf("%w: failed to read receipt of %s: %v", interfaces.ErrLedgerUnavailable, tx.Hash.Hex(), err)
			}
			if !succeeded {
				s.log.Debug("Skipping reverted transaction",
					slog.String("tx_hash", tx.Hash.Hex()),
					slog.String("method", method),
					slog.Uint64("block", n))
				continue
			}

			matched++
			visit(block, tx, method)
		}

		if n > s.cfg.StartHeight && (n-s.cfg.StartHeight)%progressInterval == 0 {
			s.log.Debug("Scan progress",
				slog.String("asset_id", id.String()),
				slog.Uint64("block", n),
				slog.Uint64("head", head))
		}

		if n == head {
			// Avoid overflow when head is the maximum height
			break
		}
	}

	s.log.Debug("Scanned ledger history",
		slog.String("asset_id", id.String()),
		slog.Uint64("from", s.cfg.StartHeight),
		slog.Uint64("to", head),
		slog.Int("matched", matched),
		slog.Duration("duration", time.Since(start)))

	return nil
}
