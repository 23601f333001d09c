// Command chainledger folds a normalized crypto transaction history into a
// provenance-tracked chunk ledger and derives capital-gains tax rows.
//
// Usage:
//
//	chainledger setup                  (interactive config wizard)
//	chainledger --config config.yaml
//	chainledger (uses CLI arguments)
//
// Historical prices are fetched from public exchange endpoints, so no API
// keys are required.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vadiminshakov/chainledger/config"
	"github.com/vadiminshakov/chainledger/internal"
	"github.com/vadiminshakov/chainledger/internal/setup"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := internal.NewApp(cfg, logger)
	if err := app.Run(ctx); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}
