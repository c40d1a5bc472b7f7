package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/camper-configurator/internal/app"
	"github.com/noah-isme/camper-configurator/internal/config"
	"github.com/noah-isme/camper-configurator/internal/lock"
	"github.com/noah-isme/camper-configurator/internal/notify"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Build(startCtx, cfg, "camper-worker")
	cancel()
	if err != nil {
		panic(err)
	}
	defer deps.Close()
	logger := obs.Component(deps.Logger, "worker")

	if !cfg.SubmissionsEnabled() {
		logger.Fatal().Msg("WEBHOOK_URL is required to run the submission worker")
	}

	dispatcher := &notify.Dispatcher{
		URL:       cfg.WebhookURL,
		Secret:    cfg.WebhookSecret,
		HTTP:      app.WebhookClient(cfg, logger),
		Replay:    notify.RedisReplayProtector{Client: deps.Redis},
		ReplayTTL: cfg.WebhookReplayTTL,
		Logger:    obs.Component(logger, "dispatcher"),
	}
	if deps.Quotes != nil {
		dispatcher.Quotes = deps.Quotes
	}

	deliveryWorker := notify.DeliveryWorker{
		Dispatcher: dispatcher,
		Locker:     lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL:    max(cfg.LockTTL, 2*cfg.WebhookTimeout),
	}

	w := &queue.Worker{
		Queue:       cfg.QueueName,
		Concurrency: cfg.QueueConcurrency,
		RetryBase:   time.Second,
		RetryJitter: 0.2,
		Logger:      logger,
	}
	if err := w.Handle(notify.SubmissionTask(), deliveryWorker.Handle); err != nil {
		logger.Fatal().Err(err).Msg("register submission handler")
	}

	logger.Info().Str("queue", cfg.QueueName).Int("concurrency", cfg.QueueConcurrency).Msg("worker starting")
	if err := w.Run(ctx, deps.TaskRedis); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}
