package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/eugener/storefront/internal/app"
	"github.com/eugener/storefront/internal/auth"
	"github.com/eugener/storefront/internal/cache"
	"github.com/eugener/storefront/internal/circuitbreaker"
	"github.com/eugener/storefront/internal/config"
	"github.com/eugener/storefront/internal/ratelimit"
	"github.com/eugener/storefront/internal/server"
	"github.com/eugener/storefront/internal/storage/sqlite"
	"github.com/eugener/storefront/internal/telemetry"
	"github.com/eugener/storefront/internal/worker"
)

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	slog.Info("starting storefront", "version", version, "addr", cfg.Server.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, version, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.WithoutCancel(ctx)) //nolint:errcheck
	}

	// Metrics
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// Open database
	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// Bootstrap from config
	if err := config.Bootstrap(ctx, cfg, store); err != nil {
		return err
	}

	// Admin keys
	adminKeys := cfg.Auth.AdminKeys
	if len(adminKeys) == 0 {
		key := config.GenerateAdminKey()
		adminKeys = []string{key}
		slog.Warn("no admin keys configured, generated one for this run", "key", key)
	}
	apiKeyAuth, err := auth.NewAPIKeyAuth(adminKeys)
	if err != nil {
		return err
	}

	// Response cache
	var (
		respCache *cache.ResponseCache
		workers   []worker.Worker
	)
	if cfg.Cache.Enabled {
		entries, closeStore, err := openCacheStore(ctx, cfg.Cache, metrics)
		if err != nil {
			return err
		}
		defer closeStore()
		respCache = cache.New(entries, cache.Options{
			Metrics:  metrics,
			Coalesce: cfg.Cache.Coalesce,
		})
		workers = append(workers, worker.NewCacheSweeper(respCache, cfg.Cache.SweepInterval))
	}

	// Per-client rate limit
	var limiter *ratelimit.Limiter
	if rl := cfg.Server.RateLimit; rl.RPM > 0 {
		limiter = ratelimit.New(ratelimit.Config{RPM: rl.RPM, Burst: rl.Burst})
		workers = append(workers, worker.NewLimiterJanitor(limiter, rl.IdleTimeout/2, rl.IdleTimeout))
	}

	// Wire services. A nil *ResponseCache must not become a non-nil interface.
	var invalidator app.Invalidator
	if respCache != nil {
		invalidator = respCache
	}
	catalog := app.NewCatalogService(store, invalidator, metrics)

	var static http.FileSystem
	if cfg.Server.StaticDir != "" {
		static = http.Dir(cfg.Server.StaticDir)
	}

	// Create HTTP server
	handler := server.New(server.Deps{
		Auth:    apiKeyAuth,
		Catalog: catalog,
		Cache:   respCache,
		TTLs: server.CacheTTLs{
			Default:    cfg.Cache.TTLs.Default,
			Products:   cfg.Cache.TTLs.Products,
			Product:    cfg.Cache.TTLs.Product,
			Categories: cfg.Cache.TTLs.Categories,
		},
		ReadyCheck:     store.Ping,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		Static:         static,
		RateLimit:      limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background workers stop with the signal context.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	var workerErr chan error // nil blocks forever when there are no workers
	if len(workers) > 0 {
		workerErr = make(chan error, 1)
		go func() { workerErr <- worker.NewRunner(workers...).Run(workerCtx) }()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("storefront ready", "addr", cfg.Server.Addr, "cache", cfg.Cache.Enabled, "backend", cfg.Cache.Backend)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	case err := <-workerErr:
		if err != nil {
			return fmt.Errorf("worker: %w", err)
		}
		slog.Warn("workers exited early")
	}

	// Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	cancelWorkers()

	slog.Info("storefront stopped")
	return nil
}

// openCacheStore builds the configured entry table and its cleanup func.
func openCacheStore(ctx context.Context, cfg config.CacheConfig, metrics *telemetry.Metrics) (cache.Store, func(), error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		slog.Info("response cache backed by redis", "addr", cfg.Redis.Addr)
		r := cache.NewRedis(client, cfg.Redis.Prefix)
		if bc := cfg.Redis.Breaker; bc.Enabled {
			r.WithBreaker(circuitbreaker.NewBreaker(circuitbreaker.Config{
				ErrorThreshold: bc.ErrorThreshold,
				MinSamples:     bc.MinSamples,
				WindowSeconds:  int(bc.Window / time.Second),
				OpenTimeout:    bc.OpenTimeout,
				OnStateChange:  breakerObserver(metrics),
			}))
		}
		return r, func() { client.Close() }, nil
	default:
		mem, err := cache.NewMemory(cfg.MaxSize)
		if err != nil {
			return nil, nil, err
		}
		return mem, func() {}, nil
	}
}

// breakerObserver logs cache backend breaker transitions and mirrors them
// into the breaker gauge.
func breakerObserver(metrics *telemetry.Metrics) func(from, to circuitbreaker.State) {
	return func(from, to circuitbreaker.State) {
		level := slog.LevelInfo
		if to == circuitbreaker.StateOpen {
			level = slog.LevelWarn
		}
		slog.Log(context.Background(), level, "cache backend breaker",
			"from", from.String(),
			"to", to.String(),
		)
		if metrics == nil {
			return
		}
		if to == circuitbreaker.StateClosed {
			metrics.CacheBackendOpen.Set(0)
		} else {
			metrics.CacheBackendOpen.Set(1)
		}
	}
}
