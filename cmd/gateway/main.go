package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission-gateway/internal/config"
	"admission-gateway/internal/logging"
	"admission-gateway/middleware/gate"
	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(string(cfg.Env), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	proxy := newProxy(target, logger)
	redis.SetLogger(infra.NewRedisLogger(logger.Named("redis"), time.Minute))

	memory := infra.NewMemoryLimiter()
	memory.StartJanitor(ctx, cfg.MemorySweepInterval)

	rlLogger := logger.Named("rate-limit")
	distributed, closeDistributed, err := distributedLimiters(ctx, cfg, rlLogger)
	if err != nil {
		return err
	}
	defer closeDistributed()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promStats := infra.NewPrometheusStats(reg)
	memStats := infra.NewMemoryStatsStore()

	var redisStats domain.StatsStore
	if cfg.Stats.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis stats ping: %w", err)
		}

		redisStats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		)
	}

	coordinator := application.NewCoordinator(memory,
		application.WithDistributed(distributed),
		application.WithTimeout(cfg.RateLimitTimeout),
		application.WithLogger(rlLogger),
		application.WithFallbackHook(promStats.RecordFallback),
	)

	settings, err := config.NewManager(cfg, logger.Named("config"))
	if err != nil {
		return fmt.Errorf("config manager: %w", err)
	}
	defer func() { _ = settings.Close() }()

	concurrency := ratelimit.NewConcurrencyLimiter(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		AcquireTimeout: cfg.ConcurrencyTimeout,
	})

	admission := gate.Middleware(gate.Options{
		Settings: settings,
		RateLimit: ratelimit.Middleware(ratelimit.Options{
			Checker: coordinator,
			Stats:   infra.NewStatsFanout(promStats, memStats, redisStats),
			Logger:  rlLogger,
		}),
		Logger: logger.Named("gate"),
	})

	r := chi.NewRouter()
	r.Get("/healthz", healthHandler(health{
		env:         cfg.Env,
		coordinator: coordinator,
		memory:      memory,
		stats:       memStats,
		concurrency: concurrency,
		settings:    settings,
	}))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.With(admission).Handle("/*", concurrency.Middleware(proxy))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if !cfg.Production() {
		printBanner(cfg, target, coordinator.DistributedEnabled())
	}
	logger.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("upstream", target.String()),
		zap.String("env", string(cfg.Env)),
	)
	logger.Info("rate limit",
		zap.Bool("distributed", coordinator.DistributedEnabled()),
		zap.Duration("timeout", cfg.RateLimitTimeout),
		zap.Duration("memorySweepInterval", cfg.MemorySweepInterval),
	)
	logger.Info("rate stats",
		zap.Bool("redis", cfg.Stats.Enabled),
		zap.String("redisAddr", cfg.Stats.RedisAddr),
		zap.String("bucket", cfg.Stats.Bucket),
		zap.Duration("ttl", cfg.Stats.TTL),
		zap.Bool("trackKeys", cfg.Stats.TrackKeys),
	)
	logger.Info("concurrency",
		zap.Int("max", cfg.ConcurrencyMax),
		zap.Duration("acquireTimeout", cfg.ConcurrencyTimeout),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("gateway stopped gracefully")
	return nil
}

// newProxy encaminha para o upstream. Os headers de segurança do upstream
// são descartados; valem os que o gate já escreveu.
func newProxy(target *url.URL, logger *zap.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ModifyResponse = func(resp *http.Response) error {
		gate.DropSecurityHeaders(resp.Header)
		return nil
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}

// distributedLimiters monta os limiters Redis por tier. Sem URL ou token
// devolve nil e tudo fica na memória. Falha no ping só gera warn: cada
// chamada tenta de novo e cai para a memória se precisar.
func distributedLimiters(ctx context.Context, cfg config.Config, logger *zap.Logger) (map[domain.Tier]domain.DistributedLimiter, func(), error) {
	dcfg := infra.DistributedConfig{
		URL:     cfg.RateLimitRedisURL,
		Token:   cfg.RateLimitRedisToken,
		Timeout: cfg.RateLimitTimeout,
	}
	if !dcfg.Enabled() {
		logger.Info("distributed rate limiter not configured, using in-memory limiter only")
		return nil, func() {}, nil
	}

	client, err := infra.NewDistributedClient(dcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("distributed rate limiter: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.RateLimitTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("distributed rate limiter unreachable at startup", zap.Error(err))
	}

	return infra.NewDistributedLimiters(client), func() { _ = client.Close() }, nil
}

func printBanner(cfg config.Config, target *url.URL, distributed bool) {
	title := color.New(color.FgCyan, color.Bold)
	label := color.New(color.FgHiBlack)
	value := color.New(color.FgGreen)

	mode := "memory"
	if distributed {
		mode = "distributed + memory fallback"
	}

	_, _ = title.Fprintln(os.Stderr, "admission-gateway")
	for _, kv := range [][2]string{
		{"listen", cfg.ListenAddr},
		{"upstream", target.String()},
		{"env", string(cfg.Env)},
		{"rate limit", mode},
	} {
		_, _ = label.Fprintf(os.Stderr, "  %-11s", kv[0])
		_, _ = value.Fprintln(os.Stderr, kv[1])
	}
}
