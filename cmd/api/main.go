package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/camper-configurator/internal/app"
	"github.com/noah-isme/camper-configurator/internal/cache"
	"github.com/noah-isme/camper-configurator/internal/config"
	"github.com/noah-isme/camper-configurator/internal/configurator"
	"github.com/noah-isme/camper-configurator/internal/health"
	"github.com/noah-isme/camper-configurator/internal/lock"
	"github.com/noah-isme/camper-configurator/internal/notify"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/queue"
	"github.com/noah-isme/camper-configurator/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Build(startCtx, cfg, "camper-api")
	cancel()
	if err != nil {
		panic(err)
	}
	defer deps.Close()
	logger := deps.Logger

	registry := product.Default()
	if _, err := registry.Get(cfg.DefaultProduct); err != nil {
		logger.Fatal().Err(err).Msg("default product")
	}

	prices, loaders := startPriceTables(ctx, cfg, deps, registry)

	sessions := &session.Store{
		Cache:    cache.New(deps.Redis, cfg.SessionTTL),
		Locker:   lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff},
		Products: registry,
		Prices:   prices,
		LockTTL:  cfg.LockTTL,
		Options:  []session.Option{session.WithLogger(obs.Component(logger, "session"))},
	}

	handler := &configurator.Handler{
		Sessions:       sessions,
		Products:       registry,
		Prices:         prices,
		DefaultProduct: cfg.DefaultProduct,
		Logger:         obs.Component(logger, "configurator"),
	}

	var inspector *asynq.Inspector
	if cfg.SubmissionsEnabled() {
		taskClient := asynq.NewClient(deps.TaskRedis)
		defer func() { _ = taskClient.Close() }()
		inspector = asynq.NewInspector(deps.TaskRedis)
		defer func() { _ = inspector.Close() }()

		submitter := notify.Submitter{
			Queue:       queue.Enqueuer{Client: taskClient, Queue: cfg.QueueName, DedupTTL: cfg.WebhookReplayTTL},
			MaxAttempts: cfg.WebhookMaxAttempts,
		}
		if deps.Quotes != nil {
			submitter.Quotes = deps.Quotes
		}
		handler.Submitter = submitter
	} else {
		logger.Warn().Msg("WEBHOOK_URL not set, submissions disabled")
	}

	router, err := newRouter(cfg, deps, handler, loaders, inspector)
	if err != nil {
		logger.Fatal().Err(err).Msg("build router")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Strs("products", registry.Keys()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// startPriceTables installs a table store per product, warms it from the
// Redis copy, loads it once and keeps it refreshed in the background.
func startPriceTables(ctx context.Context, cfg *config.Config, deps *app.Dependencies, registry *product.Registry) (map[string]pricetable.Provider, map[string]configurator.Reloader) {
	logger := obs.Component(deps.Logger, "pricetable")
	raw := cache.New(deps.Redis, cfg.PriceCacheTTL)
	client := app.PriceClient(cfg, logger)

	prices := map[string]pricetable.Provider{}
	loaders := map[string]configurator.Reloader{}
	for _, key := range registry.Keys() {
		store := pricetable.NewStore(nil)
		prices[key] = store

		src, ok := cfg.PriceSources[key]
		if !ok {
			logger.Warn().Str("product", key).Msg("no price source configured, using catalog prices")
			continue
		}
		loader := &pricetable.Loader{
			Product:  key,
			URL:      src.URL,
			Client:   client,
			Store:    store,
			Cache:    raw,
			CacheKey: cache.KeyPriceTable(key),
			Options:  pricetable.ParseOptions{CodeColumn: src.CodeColumn},
			Timeout:  cfg.PriceTimeout,
			Logger:   logger,
		}
		loaders[key] = loader

		if warmed, err := loader.WarmStart(ctx); err != nil {
			logger.Warn().Err(err).Str("product", key).Msg("price table warm start failed")
		} else if warmed {
			logger.Info().Str("product", key).Msg("price table warmed from cache")
		}
		if _, err := loader.Reload(ctx); err != nil && store.Current() == nil {
			logger.Error().Err(err).Str("product", key).Msg("no price table available, serving catalog prices")
		}
		go loader.Run(ctx, cfg.PriceRefresh)
	}
	return prices, loaders
}
