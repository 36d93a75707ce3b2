package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"pulso/internal/client"
	"pulso/internal/config"
	"pulso/internal/dispatch"
	"pulso/internal/health"
	"pulso/internal/intake"
	"pulso/internal/ledger"
	"pulso/internal/queue"
	"pulso/internal/retry"
	"pulso/internal/router"
	"pulso/internal/sharedstate"
	"pulso/internal/transport"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelInfo)

	settings := config.Load()

	dispatchQueue := queue.NewDispatchQueue(settings.QueueCapacity)
	paymentLedger := ledger.NewLedger()
	scheduler := retry.NewScheduler(settings.MaxAttempts, settings.RetryBaseDelay, settings.RetryMaxDelay)

	monitor := health.NewMonitor(
		settings.PrimaryProcessorURL,
		settings.FallbackProcessorURL,
		settings.HealthCacheTTL,
		settings.HealthProbeTimeout,
	)
	processorRouter := router.NewRouter(monitor)
	processorClient := client.NewClient(
		settings.PrimaryProcessorURL,
		settings.FallbackProcessorURL,
		monitor,
		settings.SendTimeout,
	)

	engine := dispatch.NewEngine(
		dispatchQueue,
		processorRouter,
		processorClient,
		scheduler,
		paymentLedger,
		settings.WorkerCount,
		settings.BatchSize,
		settings.IdleSleep,
	)
	engine.Start()
	defer engine.Stop()

	gate := intake.NewGate(dispatchQueue, paymentLedger, engine)

	if settings.SharedStateEnabled {
		rdb := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("redis unreachable, shared state disabled", "addr", settings.RedisAddr, "err", err)
		} else {
			medium := sharedstate.NewRedisMedium(rdb, settings.SnapshotTTL)
			store := sharedstate.NewStore(
				medium,
				settings.InstanceID,
				settings.SyncInterval,
				dispatchQueue,
				paymentLedger,
				scheduler,
				monitor,
				gate,
			)
			store.Start()
			defer store.Stop()
		}
	}

	reset := func() {
		dispatchQueue.Reset()
		paymentLedger.Reset()
		scheduler.Reset()
		gate.Reset()
	}

	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
	})
	transport.NewHandler(gate, paymentLedger, reset).Register(app)

	go func() {
		slog.Info("server listening", "port", settings.ServerPort)
		if err := app.Listen(":" + settings.ServerPort); err != nil {
			slog.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "err", err)
	}
}
