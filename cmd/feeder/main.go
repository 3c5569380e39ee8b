package main

import (
	"os"

	"github.com/navid-fn/margincore/configs"
	"github.com/navid-fn/margincore/internal/app"
	"github.com/navid-fn/margincore/internal/feed"
	"github.com/navid-fn/margincore/internal/notify"
	"github.com/navid-fn/margincore/internal/storage"
)

func main() {
	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	stopProfiler := app.StartProfiler("margincore.feeder", cfg.PyroscopeServer, logger)
	defer stopProfiler()

	store := app.OpenStore(cfg.Redis, logger)
	defer store.Close()

	journal := app.OpenJournal(cfg.Kafka, logger)
	if journal != nil {
		defer journal.Close()
	}
	reconciler := notify.NewReconciler(store, notify.NewPublisher(store, journal, logger), logger)
	prober := storage.NewProber(store, storage.DefaultMaxProbeFailures, logger)

	handlers := feed.NewHandlers(store, reconciler, feed.HandlerConfig{
		Symbols:    cfg.Feed.AllSymbols(),
		QuoteAsset: cfg.Engine.QuoteAsset,
	}, logger)

	dialer := feed.NewWebSocketDialer(feed.Endpoints{
		Spot:    cfg.Feed.SpotURL,
		Futures: cfg.Feed.FuturesURL,
	})

	manager := feed.NewManager(dialer, handlers, feed.ManagerConfig{
		Streams:             feed.Streams(cfg.Feed.Symbols),
		HealthCheckInterval: cfg.Feed.HealthCheckInterval,
		StartDelay:          cfg.Feed.HealthCheckStartDelay,
		MaxUnhealthy:        feed.DefaultMaxUnhealthy,
		Hooks: []feed.CheckHook{
			{Name: "store-probe", Run: prober.Probe},
			{Name: "reconcile", Run: reconciler.Sweep},
		},
	}, logger)

	logger.WithField("symbols", cfg.Feed.AllSymbols()).Info("Feeder starting")
	if err := app.RunWithGracefulShutdown(logger, manager.Run); err != nil {
		logger.WithError(err).Error("Feeder stopped with error")
		os.Exit(1)
	}
}
