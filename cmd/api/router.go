package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/camper-configurator/internal/app"
	"github.com/noah-isme/camper-configurator/internal/auth"
	"github.com/noah-isme/camper-configurator/internal/common"
	"github.com/noah-isme/camper-configurator/internal/config"
	"github.com/noah-isme/camper-configurator/internal/configurator"
	"github.com/noah-isme/camper-configurator/internal/health"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/queue"
	"github.com/noah-isme/camper-configurator/internal/ratelimit"
	"github.com/noah-isme/camper-configurator/internal/security"
)

func newRouter(cfg *config.Config, deps *app.Dependencies, h *configurator.Handler, loaders map[string]configurator.Reloader, inspector *asynq.Inspector) (http.Handler, error) {
	logger := deps.Logger

	mutations, err := ratelimit.NewFixedWindow(deps.Redis, cfg.RateLimitMutations, "rl:mut")
	if err != nil {
		return nil, err
	}
	onLimitErr := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	guards := configurator.Guards{
		Mutation: ratelimit.Handler{
			Limiter: mutations,
			Config:  ratelimit.Config{Key: ratelimit.ClientKey},
			OnError: onLimitErr,
		}.Middleware,
		Submit: ratelimit.Handler{
			Limiter: ratelimit.SlidingWindow{Client: deps.Redis, Prefix: "rl:submit", Window: time.Minute, Max: cfg.SubmitPerMinute},
			Config:  ratelimit.Config{Key: ratelimit.ClientKey},
			OnError: onLimitErr,
		}.Middleware,
		Idempotency: common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}.Middleware,
	}

	var admin *auth.Admin
	if cfg.AdminEnabled() {
		admin = auth.NewAdmin(cfg.AdminJWTSecret, cfg.AdminAPIKeyHash, cfg.AdminIssuer, cfg.AdminAudience, cfg.AdminTokenTTL)
		guards.Admin = admin.Require
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.EnableTracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.EnablePrometheus {
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, nil)}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, NoStore: true, EnableHSTS: cfg.AppEnv == "production", HSTSMaxAge: 31536000}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader, auth.APIKeyHeader},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if cfg.EnablePrometheus {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.EnablePprof {
		var pprofMux http.Handler = newPprofMux()
		if admin != nil {
			pprofMux = admin.Require(pprofMux)
		}
		r.Mount("/debug/pprof", pprofMux)
	}

	healthHandler := health.Handler{Probes: append(probes(cfg, deps), pricesProbe(h, h.Products.Keys()))}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	priceAdmin := &configurator.PriceAdmin{Handler: h, Loaders: loaders}
	r.Route("/api/v1", func(v chi.Router) {
		h.Mount(v, guards)
		v.Route("/admin", func(a chi.Router) {
			if admin == nil {
				a.HandleFunc("/*", func(w http.ResponseWriter, _ *http.Request) {
					common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "admin access disabled", nil)
				})
				return
			}
			a.Post("/token", admin.TokenHandler)
			priceAdmin.MountAdmin(a, guards, func(ar chi.Router) {
				if inspector == nil {
					return
				}
				qh := &queue.AdminHandler{Inspector: inspector, Queue: cfg.QueueName, Logger: obs.Component(logger, "queue-admin")}
				ar.Get("/queue/stats", qh.Stats)
				ar.Get("/queue/dlq", qh.ListDLQ)
				ar.Post("/queue/dlq/replay", qh.ReplayDLQ)
			})
		})
	})
	return r, nil
}

func probes(cfg *config.Config, deps *app.Dependencies) []health.Probe {
	out := []health.Probe{{
		Name:    "redis",
		Timeout: cfg.HealthTimeout,
		Check: func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		},
	}}
	if deps.DB != nil {
		out = append(out, health.Probe{
			Name:     "postgres",
			Timeout:  cfg.HealthTimeout,
			Optional: true,
			Check:    deps.DB.Ping,
		})
	}
	return out
}

// pricesProbe reports products still running on catalog prices.
func pricesProbe(h *configurator.Handler, keys []string) health.Probe {
	return health.Probe{
		Name:     "pricetables",
		Optional: true,
		Check: func(context.Context) error {
			var missing []error
			for _, k := range keys {
				if p, ok := h.Prices[k]; !ok || p.Current() == nil {
					missing = append(missing, fmt.Errorf("%s not loaded", k))
				}
			}
			return errors.Join(missing...)
		},
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}
