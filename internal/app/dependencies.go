// Package app builds the clients shared by the API and the worker from the
// loaded configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/camper-configurator/internal/config"
	"github.com/noah-isme/camper-configurator/internal/notify"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/quotes"
	"github.com/noah-isme/camper-configurator/internal/resilience"
)

// Dependencies enumerates the connections both binaries share.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	Redis  *redis.Client
	// DB and Quotes are nil when no database is configured; submitted quotes
	// are then only queued, not archived.
	DB        *pgxpool.Pool
	Quotes    *quotes.Store
	TaskRedis asynq.RedisConnOpt

	shutdownTracer func(context.Context) error
}

// Build connects Redis, the optional Postgres archive and tracing.
func Build(ctx context.Context, cfg *config.Config, service string) (*Dependencies, error) {
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().
		Str("service", service).
		Str("env", cfg.AppEnv).
		Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	d := &Dependencies{Config: cfg, Logger: logger}
	if cfg.EnableTracing {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   service,
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TraceSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			d.shutdownTracer = shutdown
		}
	}

	client, err := NewRedis(ctx, cfg.RedisURL, cfg.EnablePrometheus, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Redis = client

	d.TaskRedis, err = TaskRedisOpt(cfg.RedisURL)
	if err != nil {
		d.Close()
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		if err := quotes.Migrate(cfg.DatabaseURL); err != nil {
			d.Close()
			return nil, err
		}
		pool, err := NewPool(ctx, cfg.DatabaseURL, service)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.DB = pool
		d.Quotes = &quotes.Store{DB: pool}
	}
	return d, nil
}

// Close releases every connection opened by Build.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.shutdownTracer != nil {
		if err := d.shutdownTracer(context.Background()); err != nil {
			d.Logger.Error().Err(err).Msg("shutdown tracer")
		}
	}
}

// NewRedis connects and instruments a Redis client.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// TaskRedisOpt converts the Redis URL into asynq connection options.
func TaskRedisOpt(url string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	return opt, nil
}

// NewPool opens the quote archive pool with query tracing.
func NewPool(ctx context.Context, url, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PriceClient is the outbound client for price sheet downloads.
func PriceClient(cfg *config.Config, logger zerolog.Logger) *resilience.HTTPClient {
	return &resilience.HTTPClient{
		Client: notify.HttpClient(cfg.PriceTimeout, false),
		Breaker: resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
			WithTarget("price-sheet").
			WithLogger(logger),
		Target:      "price-sheet",
		BaseBackoff: cfg.PriceRetryBase,
		MaxAttempts: cfg.PriceRetries,
		Jitter:      0.2,
		Timeout:     cfg.PriceTimeout,
	}
}

// WebhookClient is the outbound client for submission deliveries. Retries
// are left to the queue, so each delivery is a single attempt.
func WebhookClient(cfg *config.Config, logger zerolog.Logger) *resilience.HTTPClient {
	return &resilience.HTTPClient{
		Client: notify.HttpClient(cfg.WebhookTimeout, cfg.WebhookAllowInsecure),
		Breaker: resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
			WithTarget("submission-webhook").
			WithLogger(logger),
		Target:      "submission-webhook",
		MaxAttempts: 1,
		Timeout:     cfg.WebhookTimeout,
	}
}
