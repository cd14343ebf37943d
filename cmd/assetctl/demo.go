package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/private-content-market/cmd/flags"
	"github.com/ruteri/private-content-market/cryptoutils"
	"github.com/ruteri/private-content-market/interfaces"
	"github.com/ruteri/private-content-market/provenance"
	"github.com/ruteri/private-content-market/registry"
	"github.com/ruteri/private-content-market/session"
	"github.com/ruteri/private-content-market/storage"
	"github.com/ruteri/private-content-market/transfer"
	"github.com/urfave/cli/v2"
)

// demoAction sells one document from a seller to a buyer against an
// in-process ledger and memory store, then prints the recovered history.
func demoAction(cCtx *cli.Context) error {
	log := flags.SetupLogger(cCtx)
	ctx := cCtx.Context

	cfg, err := loadConfig(cCtx)
	if err != nil {
		return err
	}
	keys, err := cryptoutils.NewKeyManager(cfg.Keys)
	if err != nil {
		return err
	}

	ledger := registry.NewLocalLedger(registry.WithLogger(log))
	store := storage.NewMemoryBackend("demo", log)
	scanner := provenance.NewScanner(ledger, provenance.Config{Registry: ledger.Address()}, log)

	party := func(name string) (interfaces.Identity, *transfer.Orchestrator, error) {
		key, err := crypto.GenerateKey()
		if err != nil {
			return interfaces.Identity{}, nil, err
		}
		identity := crypto.PubkeyToAddress(key.PublicKey)
		sess, err := session.NewSession(ctx, session.StaticSource(identity), session.Options{Log: log.With("party", name)})
		if err != nil {
			return interfaces.Identity{}, nil, err
		}
		return identity, transfer.NewOrchestrator(ledger, store, keys, sess, scanner, log.With("party", name)), nil
	}

	seller, sellerMarket, err := party("seller")
	if err != nil {
		return err
	}
	buyer, buyerMarket, err := party("buyer")
	if err != nil {
		return err
	}

	price := big.NewInt(1000)
	ledger.Fund(buyer, price)

	file := interfaces.File{Name: "deed.txt", MimeType: "text/plain", Content: []byte("Lot 42, held in private")}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"seller registers", func(ctx context.Context) error {
			_, err := sellerMarket.Register(ctx, "deed", "demo document", file, "seller passphrase")
			return err
		}},
		{"seller puts on sale", func(ctx context.Context) error {
			_, err := sellerMarket.Sell(ctx, interfaces.ComputeAssetID(file.Content), price)
			return err
		}},
		{"buyer offers", func(ctx context.Context) error {
			_, err := buyerMarket.Offer(ctx, interfaces.ComputeAssetID(file.Content), "buyer passphrase", nil)
			return err
		}},
		{"seller confirms", func(ctx context.Context) error {
			_, err := sellerMarket.Confirm(ctx, interfaces.ComputeAssetID(file.Content), "seller passphrase")
			return err
		}},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			log.Error("Demo step failed", "step", step.name, "err", err)
			return fmt.Errorf("%s: %w", step.name, err)
		}
		log.Info("Demo step done", slog.String("step", step.name))
	}

	id := interfaces.ComputeAssetID(file.Content)
	viewed, err := buyerMarket.View(ctx, id, "buyer passphrase")
	if err != nil {
		return err
	}
	events, err := buyerMarket.History(ctx, id)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"asset_id":       id.String(),
		"seller":         seller.Hex(),
		"buyer":          buyer.Hex(),
		"seller_balance": ledger.BalanceOf(seller).String(),
		"content":        string(viewed.Content),
		"history":        events,
	})
}
