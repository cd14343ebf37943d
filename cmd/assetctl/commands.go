package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ruteri/private-content-market/interfaces"
	"github.com/urfave/cli/v2"
)

func assetArg(cCtx *cli.Context, index int) (interfaces.AssetID, error) {
	raw := cCtx.Args().Get(index)
	if raw == "" {
		return interfaces.AssetID{}, errors.New("asset id argument is required")
	}
	return interfaces.NewAssetIDFromHex(raw)
}

func weiArg(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", raw)
	}
	return value, nil
}

func printReceipt(id interfaces.AssetID, receipt *interfaces.TxReceipt) error {
	return printJSON(map[string]any{
		"asset_id":     id.String(),
		"tx_hash":      receipt.TxHash.Hex(),
		"block_number": receipt.BlockNumber,
	})
}

func registerAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	path := cCtx.Args().First()
	if path == "" {
		return errors.New("file argument is required")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	file := interfaces.File{
		Name:     filepath.Base(path),
		MimeType: cCtx.String("type"),
		Content:  content,
	}
	if file.MimeType == "" {
		file.MimeType = http.DetectContentType(content)
	}

	name := cCtx.String("name")
	if name == "" {
		name = file.Name
	}

	id, err := m.orch.Register(ctx, name, cCtx.String("description"), file, cCtx.String(flagPassphrase.Name))
	if err != nil {
		m.log.Error("Failed to register asset", "err", err)
		return err
	}
	return printJSON(map[string]string{"asset_id": id.String()})
}

func sellAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	id, err := assetArg(cCtx, 0)
	if err != nil {
		return err
	}
	price, err := weiArg(cCtx.Args().Get(1))
	if err != nil {
		return err
	}

	receipt, err := m.orch.Sell(ctx, id, price)
	if err != nil {
		m.log.Error("Failed to put asset on sale", "err", err)
		return err
	}
	return printReceipt(id, receipt)
}

func cancelAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	id, err := assetArg(cCtx, 0)
	if err != nil {
		return err
	}

	receipt, err := m.orch.CancelSale(ctx, id)
	if err != nil {
		m.log.Error("Failed to cancel sale", "err", err)
		return err
	}
	return printReceipt(id, receipt)
}

func offerAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	id, err := assetArg(cCtx, 0)
	if err != nil {
		return err
	}

	var payment *big.Int
	if raw := cCtx.String("payment"); raw != "" {
		if payment, err = weiArg(raw); err != nil {
			return err
		}
	}

	receipt, err := m.orch.Offer(ctx, id, cCtx.String(flagPassphrase.Name), payment)
	if err != nil {
		m.log.Error("Failed to place offer", "err", err)
		return err
	}
	return printReceipt(id, receipt)
}

func republishAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	id, err := assetArg(cCtx, 0)
	if err != nil {
		return err
	}

	if err := m.orch.RepublishKey(ctx, id, cCtx.String(flagPassphrase.Name)); err != nil {
		m.log.Error("Failed to republish handoff key", "err", err)
		return err
	}
	return printJSON(map[string]string{"asset_id": id.String()})
}

func confirmAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	id, err := assetArg(cCtx, 0)
	if err != nil {
		return err
	}

	receipt, err := m.orch.Confirm(ctx, id, cCtx.String(flagPassphrase.Name))
	if err != nil {
		m.log.Error("Failed to confirm sale", "err", err)
		return err
	}
	return printReceipt(id, receipt)
}

func viewAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	id, err := assetArg(cCtx, 0)
	if err != nil {
		return err
	}

	file, err := m.orch.View(ctx, id, cCtx.String(flagPassphrase.Name))
	if err != nil {
		m.log.Error("Failed to view asset", "err", err)
		return err
	}

	out := cCtx.String("out")
	if out == "" {
		_, err = os.Stdout.Write(file.Content)
		return err
	}
	if err := os.WriteFile(out, file.Content, 0o600); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return printJSON(map[string]string{"name": file.Name, "mime_type": file.MimeType, "path": out})
}

func historyAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	id, err := assetArg(cCtx, 0)
	if err != nil {
		return err
	}

	events, err := m.orch.History(ctx, id)
	if err != nil {
		m.log.Error("Failed to scan history", "err", err)
		return err
	}
	return printJSON(events)
}

func mineAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	assets, err := m.orch.MyAssets(ctx)
	if err != nil {
		m.log.Error("Failed to list assets", "err", err)
		return err
	}
	return printJSON(assets)
}

func marketAction(ctx context.Context, cCtx *cli.Context, m *market) error {
	assets, err := m.orch.Market(ctx)
	if err != nil {
		m.log.Error("Failed to list market", "err", err)
		return err
	}
	return printJSON(assets)
}

func whoamiAction(cCtx *cli.Context) error {
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return err
	}
	source, err := identitySource(cfg)
	if err != nil {
		return err
	}
	identity, err := source.Identity(cCtx.Context)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"identity": identity.Hex()})
}

func initConfigAction(cCtx *cli.Context) error {
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return err
	}
	path := cCtx.String(flagConfig.Name)
	if err := cfg.Save(path); err != nil {
		return err
	}
	return printJSON(map[string]string{"config": path})
}
