package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/private-content-market/cmd/flags"
	"github.com/ruteri/private-content-market/config"
	"github.com/ruteri/private-content-market/cryptoutils"
	"github.com/ruteri/private-content-market/interfaces"
	"github.com/ruteri/private-content-market/provenance"
	"github.com/ruteri/private-content-market/registry"
	"github.com/ruteri/private-content-market/session"
	"github.com/ruteri/private-content-market/storage"
	"github.com/ruteri/private-content-market/transfer"
	"github.com/urfave/cli/v2"
)

// market is the wired client for one command invocation.
type market struct {
	cfg     *config.Config
	log     *slog.Logger
	session *session.Session
	orch    *transfer.Orchestrator
	close   func()
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cCtx.String(flagConfig.Name))
	if err != nil {
		return nil, err
	}

	if v := cCtx.String(flags.RpcAddrFlag.Name); v != "" {
		cfg.Ledger.RPCURL = v
	}
	if v := cCtx.String(flagRegistry.Name); v != "" {
		cfg.Ledger.Registry = v
	}
	if v := cCtx.StringSlice(flags.StorageFlag.Name); len(v) > 0 {
		cfg.Storage = v
	}

	// Identity flags replace the configured source as a whole
	if cCtx.IsSet(flagPrivateKey.Name) || cCtx.IsSet(flagKeystore.Name) || cCtx.IsSet(flagAccountFile.Name) {
		cfg.Identity.PrivateKey = cCtx.String(flagPrivateKey.Name)
		cfg.Identity.Keystore = cCtx.String(flagKeystore.Name)
		cfg.Identity.AccountFile = cCtx.String(flagAccountFile.Name)
	}
	if v := cCtx.String(flagKeystorePassword.Name); v != "" {
		cfg.Identity.KeystorePassword = v
	}

	if cCtx.Bool(flags.LogDebugFlag.Name) {
		cfg.Log.Debug = true
	}
	if cCtx.Bool(flags.LogJsonFlag.Name) {
		cfg.Log.JSON = true
	}
	return cfg, nil
}

func identitySource(cfg *config.Config) (session.Source, error) {
	chainID := new(big.Int).SetUint64(cfg.Ledger.ChainID)
	switch {
	case cfg.Identity.PrivateKey != "":
		return session.NewKeySource(cfg.Identity.PrivateKey, chainID)
	case cfg.Identity.Keystore != "":
		return session.NewKeystoreSource(cfg.Identity.Keystore, cfg.Identity.KeystorePassword, chainID)
	case cfg.Identity.AccountFile != "":
		return session.FileSource(cfg.Identity.AccountFile), nil
	default:
		return nil, errors.New("no identity source configured")
	}
}

func newMarket(cCtx *cli.Context) (*market, error) {
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return nil, err
	}
	log := flags.SetupLogger(cCtx)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	keys, err := cryptoutils.NewKeyManager(cfg.Keys)
	if err != nil {
		return nil, err
	}

	locations, err := storage.ParseLocations(cfg.Storage)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStorageBackendFactory(log).CreateMultiStore(locations)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	source, err := identitySource(cfg)
	if err != nil {
		return nil, err
	}
	sess, err := session.NewSession(cCtx.Context, source, session.Options{
		PollInterval: cfg.Identity.PollInterval,
		Log:          log,
	})
	if err != nil {
		return nil, err
	}

	client, err := ethclient.Dial(cfg.Ledger.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}

	registryAddr := common.HexToAddress(cfg.Ledger.Registry)
	registryClient, err := registry.NewOnchainRegistryClient(client, client, registryAddr, log)
	if err != nil {
		client.Close()
		return nil, err
	}
	if signer, ok := source.(session.Signer); ok {
		registryClient.SetTransactOpts(signer.TransactOpts())
	}

	scanner := provenance.NewScanner(provenance.NewEthReader(client), provenance.Config{
		Registry:    registryAddr,
		StartHeight: cfg.Ledger.StartHeight,
	}, log)

	sess.Start()
	return &market{
		cfg:     cfg,
		log:     log,
		session: sess,
		orch:    transfer.NewOrchestrator(registryClient, store, keys, sess, scanner, log),
		close: func() {
			sess.Close()
			client.Close()
		},
	}, nil
}

// withMarket wires a market for the duration of action, bounded by the ledger timeout.
func withMarket(action func(context.Context, *cli.Context, *market) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		m, err := newMarket(cCtx)
		if err != nil {
			return err
		}
		defer m.close()

		ctx, cancel := context.WithTimeout(cCtx.Context, m.cfg.Ledger.Timeout)
		defer cancel()

		return action(ctx, cCtx, m)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
