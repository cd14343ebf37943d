package main

import (
	"log"
	"os"

	"github.com/ruteri/private-content-market/cmd/flags"
	"github.com/ruteri/private-content-market/config"
	"github.com/urfave/cli/v2"
)

var (
	flagConfig = &cli.StringFlag{
		Name:    "config",
		Value:   config.DefaultPath(),
		Usage:   "path to the YAML client configuration",
		EnvVars: []string{"ASSETCTL_CONFIG"},
	}
	flagRegistry = &cli.StringFlag{
		Name:  "registry",
		Usage: "registry contract address, overrides the config file",
	}
	flagPrivateKey = &cli.StringFlag{
		Name:    "private-key",
		Usage:   "hex encoded private key of the active identity",
		EnvVars: []string{"ASSETCTL_PRIVATE_KEY"},
	}
	flagKeystore = &cli.StringFlag{
		Name:  "keystore",
		Usage: "path to an encrypted keystore file holding the active identity",
	}
	flagKeystorePassword = &cli.StringFlag{
		Name:    "keystore-password",
		Usage:   "password of the keystore file",
		EnvVars: []string{"ASSETCTL_KEYSTORE_PASSWORD"},
	}
	flagAccountFile = &cli.StringFlag{
		Name:  "account-file",
		Usage: "file holding the active address, re-read while running",
	}
	flagPassphrase = &cli.StringFlag{
		Name:     "passphrase",
		Usage:    "passphrase the content keypair is derived from",
		EnvVars:  []string{"ASSETCTL_PASSPHRASE"},
		Required: true,
	}
)

func main() {
	app := &cli.App{
		Name:  "assetctl",
		Usage: "Register, trade and view private content assets",
		Flags: append([]cli.Flag{
			flagConfig,
			flags.RpcAddrFlag,
			flagRegistry,
			flags.StorageFlag,
			flagPrivateKey,
			flagKeystore,
			flagKeystorePassword,
			flagAccountFile,
			flags.LogServiceFlagFn("assetctl"),
		}, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "Encrypt a file, store it and register it as an asset",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "asset name, defaults to the file name"},
					&cli.StringFlag{Name: "description", Usage: "asset description"},
					&cli.StringFlag{Name: "type", Usage: "MIME type, detected from content when empty"},
					flagPassphrase,
				},
				Action: withMarket(registerAction),
			},
			{
				Name:      "sell",
				Usage:     "Put an owned asset on sale",
				ArgsUsage: "<asset-id> <price-wei>",
				Action:    withMarket(sellAction),
			},
			{
				Name:      "cancel",
				Usage:     "Withdraw an asset from sale, refunding any pending offer",
				ArgsUsage: "<asset-id>",
				Action:    withMarket(cancelAction),
			},
			{
				Name:      "offer",
				Usage:     "Escrow payment for an asset on sale",
				ArgsUsage: "<asset-id>",
				Flags: []cli.Flag{
					flagPassphrase,
					&cli.StringFlag{Name: "payment", Usage: "payment in wei, defaults to the asking price"},
				},
				Action: withMarket(offerAction),
			},
			{
				Name:      "republish",
				Usage:     "Rewrite the handoff key of the pending buyer when a racing offer replaced it",
				ArgsUsage: "<asset-id>",
				Flags:     []cli.Flag{flagPassphrase},
				Action:    withMarket(republishAction),
			},
			{
				Name:      "confirm",
				Usage:     "Re-encrypt an offered asset for its buyer and complete the sale",
				ArgsUsage: "<asset-id>",
				Flags:     []cli.Flag{flagPassphrase},
				Action:    withMarket(confirmAction),
			},
			{
				Name:      "view",
				Usage:     "Decrypt an owned asset",
				ArgsUsage: "<asset-id>",
				Flags: []cli.Flag{
					flagPassphrase,
					&cli.StringFlag{Name: "out", Usage: "write the content to this path instead of stdout"},
				},
				Action: withMarket(viewAction),
			},
			{
				Name:      "history",
				Usage:     "Replay ledger history for the ownership changes of an asset",
				ArgsUsage: "<asset-id>",
				Action:    withMarket(historyAction),
			},
			{
				Name:   "mine",
				Usage:  "List assets owned by the active identity",
				Action: withMarket(mineAction),
			},
			{
				Name:   "market",
				Usage:  "List assets on sale",
				Action: withMarket(marketAction),
			},
			{
				Name:   "whoami",
				Usage:  "Print the active identity",
				Action: whoamiAction,
			},
			{
				Name:   "init-config",
				Usage:  "Write the effective configuration to the config path",
				Action: initConfigAction,
			},
			{
				Name:   "demo",
				Usage:  "Run a full sale between two parties on an in-process ledger and store",
				Action: demoAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
