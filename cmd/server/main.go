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
	"golang.org/x/sync/errgroup"

	"hudson/internal/dedup"
	"hudson/internal/platform/config"
	"hudson/internal/platform/health"
	"hudson/internal/platform/logger"
	"hudson/internal/platform/redis"
	"hudson/internal/platform/workers/cleanup"
	ratelimitConfig "hudson/internal/ratelimit/config"
	ratelimitHandler "hudson/internal/ratelimit/handler"
	ratelimitMetrics "hudson/internal/ratelimit/metrics"
	ratelimitMW "hudson/internal/ratelimit/middleware"
	ratelimitService "hudson/internal/ratelimit/service"
	"hudson/internal/ratelimit/store/window"
	submissionHandler "hudson/internal/submission/handler"
	submissionService "hudson/internal/submission/service"
	httptransport "hudson/internal/transport/http"
	"hudson/pkg/platform/middleware/metadata"
	"hudson/pkg/platform/middleware/request"
)

const poolStatsInterval = 15 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hudson:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	limits, err := ratelimitConfig.LoadFile(cfg.RateLimit.LimitsFile)
	if err != nil {
		return fmt.Errorf("load rate limits: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing hudson",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"version", health.Version,
		"redis_enabled", cfg.Redis.URL != "",
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.New(cfg.Environment)

	// Rate limiting
	rlMetrics := ratelimitMetrics.New(reg)
	memory := window.NewInMemory()
	var primary ratelimitService.Store = memory
	limiterOpts := []ratelimitService.Option{
		ratelimitService.WithLogger(log),
		ratelimitService.WithMetrics(rlMetrics),
	}

	redisClient, err := redis.New(ctx, cfg.Redis, reg)
	if err != nil {
		// Limits stay per instance until the next restart.
		log.Error("redis_unavailable_using_memory", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck // shutdown path
		redisStore, err := window.NewRedis(redisClient, cfg.Redis.KeyPrefix+"ratelimit:")
		if err != nil {
			return fmt.Errorf("init redis window store: %w", err)
		}
		primary = redisStore
		limiterOpts = append(limiterOpts, ratelimitService.WithFallback(memory))
		healthHandler.RegisterCheck("redis", redisClient.Health)
	}

	limiter, err := ratelimitService.New(limits, primary, limiterOpts...)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}

	// Outbound submissions
	dedupRegistry := dedup.NewRegistry(
		dedup.WithMaxAge(cfg.Dedup.MaxAge),
		dedup.WithRegistryLogger(log),
	)
	relay, err := dedup.NewClient(dedupRegistry, &http.Client{Timeout: cfg.Dedup.RequestTimeout},
		dedup.WithLogger(log),
		dedup.WithMetrics(dedup.NewMetrics(reg)),
		dedup.WithWaitTimeout(cfg.Dedup.WaitTimeout),
		dedup.WithRequestTimeout(cfg.Dedup.RequestTimeout),
		dedup.WithRetries(cfg.Dedup.Retries, cfg.Dedup.RetryDelay),
	)
	if err != nil {
		return fmt.Errorf("init dedup client: %w", err)
	}
	submissions, err := submissionService.New(relay, submissionService.Webhooks{
		ContactURL:    cfg.Webhooks.ContactURL,
		NewsletterURL: cfg.Webhooks.NewsletterURL,
		AuthToken:     cfg.Webhooks.AuthToken,
	}, submissionService.WithLogger(log))
	if err != nil {
		return fmt.Errorf("init submissions: %w", err)
	}
	if cfg.Webhooks.ContactURL == "" || cfg.Webhooks.NewsletterURL == "" {
		log.Warn("webhooks_not_configured",
			"contact", cfg.Webhooks.ContactURL != "",
			"newsletter", cfg.Webhooks.NewsletterURL != "",
		)
	}

	trusted, invalid := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	for _, value := range invalid {
		log.Warn("trusted_proxy_invalid", "value", value)
	}

	requestTimeout := cfg.Dedup.WaitTimeout + cfg.Dedup.RequestTimeout
	router := httptransport.NewRouter(httptransport.Deps{
		Logger: log,
		Metadata: &metadata.Config{
			TrustedProxies:    trusted,
			TrustProxyHeaders: cfg.TrustProxyHeaders,
		},
		RequestMetrics: request.NewMetrics(reg),
		Gatherer:       reg,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RequestTimeout: requestTimeout,
		AdminToken:     cfg.AdminAPIToken,
		Limiter:        ratelimitMW.New(limiter, log),
		RateLimit:      ratelimitHandler.New(limiter, limits, log),
		Submission:     submissionHandler.New(submissions, log),
		Health:         healthHandler,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	// Background sweeps
	cleanupMetrics := cleanup.NewMetrics(reg)
	rlCleanup := cleanup.New("ratelimit",
		cleanup.SweeperFunc(func(ctx context.Context) (int, error) {
			removed, err := memory.Sweep(ctx)
			rlMetrics.SetStoreEntries(memory.Len())
			return removed, err
		}),
		cleanup.WithLogger(log),
		cleanup.WithInterval(cfg.RateLimit.CleanupInterval),
		cleanup.WithMetrics(cleanupMetrics),
	)
	dedupCleanup := cleanup.New("dedup", dedupRegistry,
		cleanup.WithLogger(log),
		cleanup.WithInterval(cfg.Dedup.SweepInterval),
		cleanup.WithMetrics(cleanupMetrics),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return rlCleanup.Start(gctx) })
	g.Go(func() error { return dedupCleanup.Start(gctx) })
	if redisClient != nil {
		g.Go(func() error { return redisClient.RunPoolStats(gctx, poolStatsInterval) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server stopped",
		"pending_dedup_calls", dedupRegistry.Len(),
	)
	return nil
}
