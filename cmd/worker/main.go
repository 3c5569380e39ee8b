package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/navid-fn/margincore/configs"
	"github.com/navid-fn/margincore/internal/app"
	"github.com/navid-fn/margincore/internal/dispatcher"
	"github.com/navid-fn/margincore/internal/liquidation"
	"github.com/navid-fn/margincore/internal/matching"
	"github.com/navid-fn/margincore/internal/notify"
	"github.com/navid-fn/margincore/internal/storage"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to run lanes for (default: all trade symbols)")
	flag.Parse()

	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	stopProfiler := app.StartProfiler("margincore.worker", cfg.PyroscopeServer, logger)
	defer stopProfiler()

	lanes := cfg.Feed.Symbols
	if *symbolsFlag != "" {
		lanes = nil
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				lanes = append(lanes, s)
			}
		}
	}
	if len(lanes) == 0 {
		logger.Fatal("No symbols to run")
	}

	store := app.OpenStore(cfg.Redis, logger)
	defer store.Close()

	journal := app.OpenJournal(cfg.Kafka, logger)
	if journal != nil {
		defer journal.Close()
	}
	publisher := notify.NewPublisher(store, journal, logger)

	liquidator := liquidation.NewEngine(store, publisher, liquidation.Config{
		Symbols:       cfg.Feed.Symbols,
		QuoteAsset:    cfg.Engine.QuoteAsset,
		CrossInterval: cfg.Engine.CrossCheckInterval,
	}, logger)
	engine := matching.NewEngine(store, liquidator, publisher, logger)

	prober := storage.NewProber(store, storage.DefaultMaxProbeFailures, logger)

	tasks := make([]app.Task, 0, len(lanes)+1)
	tasks = append(tasks, func(ctx context.Context) error {
		return prober.Run(ctx, cfg.Feed.HealthCheckInterval)
	})
	for _, sym := range lanes {
		d := dispatcher.New(store, engine, sym, cfg.Engine.DispatchInterval, logger)
		tasks = append(tasks, func(ctx context.Context) error { return d.Run(ctx) })
	}

	logger.WithField("symbols", lanes).Info("Worker starting")
	if err := app.RunWithGracefulShutdown(logger, tasks...); err != nil {
		logger.WithError(err).Error("Worker stopped with error")
		os.Exit(1)
	}
}
