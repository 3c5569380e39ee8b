// Package app holds the process bootstrap shared by the binaries.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grafana/pyroscope-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/navid-fn/margincore/configs"
	"github.com/navid-fn/margincore/internal/notify"
	"github.com/navid-fn/margincore/internal/storage"
)

// Task is a long running component. It returns when ctx is cancelled.
type Task func(ctx context.Context) error

// OpenStore connects to Redis or exits the process.
func OpenStore(cfg configs.RedisConfig, logger *logrus.Logger) *storage.RedisStorage {
	store, err := storage.NewRedisStorage(storage.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	logger.WithField("addr", cfg.Addr).Info("Connected to Redis")
	return store
}

// OpenJournal returns the Kafka journal, or nil when no broker is configured
// or the producer cannot be created.
func OpenJournal(cfg configs.KafkaConfig, logger *logrus.Logger) notify.Journal {
	if cfg.Broker == "" {
		return nil
	}
	j, err := notify.NewKafkaJournal(cfg.Broker, cfg.Topic, logger)
	if err != nil {
		logger.WithError(err).Warn("Event journal disabled")
		return nil
	}
	return j
}

// StartProfiler starts continuous profiling when server is set. The returned
// stop function is always safe to call.
func StartProfiler(name, server string, logger *logrus.Logger) func() {
	if server == "" {
		return func() {}
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   server,
		Logger:          logger,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		logger.WithError(err).Warn("Profiler disabled")
		return func() {}
	}
	return func() { _ = profiler.Stop() }
}

// RunWithGracefulShutdown runs every task until SIGINT or SIGTERM, or until
// one of them fails, then waits for all of them to return.
func RunWithGracefulShutdown(logger *logrus.Logger, tasks ...Task) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Run(ctx, logger, tasks...)
}

// Run is RunWithGracefulShutdown driven by ctx.
func Run(ctx context.Context, logger *logrus.Logger, tasks ...Task) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error { return task(ctx) })
	}

	logger.WithField("tasks", len(tasks)).Info("All workers started")
	err := g.Wait()
	logger.Info("Shutdown complete")
	return err
}
