package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/private-content-market/cmd/flags"
	"github.com/ruteri/private-content-market/httpserver"
	"github.com/ruteri/private-content-market/storage"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"OBJECTSTORE_LISTEN_ADDR"},
}

var flagAllowedOrigin = &cli.StringFlag{
	Name:  "allowed-origin",
	Usage: "enable CORS for this origin, '*' for any",
}

func main() {
	app := &cli.App{
		Name:  "objectstore",
		Usage: "Serve encrypted content objects over HTTP",
		Flags: append([]cli.Flag{
			flagListenAddr,
			flagAllowedOrigin,
			flags.StorageFlag,
			flags.LogServiceFlagFn("objectstore"),
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			uris := cCtx.StringSlice(flags.StorageFlag.Name)
			if len(uris) == 0 {
				logger.Error("At least one storage location is required")
				return errors.New("--storage is required")
			}

			locations, err := storage.ParseLocations(uris)
			if err != nil {
				logger.Error("Invalid storage location", "err", err)
				return err
			}

			store, err := storage.NewStorageBackendFactory(logger).CreateMultiStore(locations)
			if err != nil {
				logger.Error("Failed to create storage backends", "err", err)
				return err
			}
			logger.Info("Storage configured", "backend", store.Name(), "location", store.LocationURI())

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))
			cfg.AllowedOrigin = cCtx.String(flagAllowedOrigin.Name)

			server, err := httpserver.New(cfg, store)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
