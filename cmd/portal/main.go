package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/portal-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/portal.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting portal search", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("portal search failed", "error", err)
		os.Exit(1)
	}
	slog.Info("portal search stopped")
}

// backends holds the optional connections opened at startup. Nil fields
// mean the backend is not configured or was unreachable.
type backends struct {
	docs  []catalog.Document
	pg    *postgres.Client
	repo  *catalog.PostgresRepository
	redis *pkgredis.Client
}

func connect(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	retryCfg := resilience.RetryFromConfig(cfg.Retry)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		seed, err := loadSeed(cfg.Catalog.SeedFile)
		if err != nil {
			return err
		}
		if !cfg.Postgres.Enabled() {
			b.docs = seed
			return nil
		}
		err = resilience.Retry(gctx, "postgres-connect", retryCfg, func(ctx context.Context) error {
			client, err := postgres.New(ctx, cfg.Postgres)
			b.pg = client
			return err
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		b.repo = catalog.NewPostgresRepository(b.pg)
		if err := b.repo.Migrate(gctx); err != nil {
			return err
		}
		docs, err := b.repo.SeedIfEmpty(gctx, seed)
		if err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
		b.docs = docs
		return nil
	})

	g.Go(func() error {
		if cfg.Redis.Addr == "" {
			return nil
		}
		err := resilience.Retry(gctx, "redis-connect", retryCfg, func(ctx context.Context) error {
			client, err := pkgredis.NewClient(ctx, cfg.Redis)
			b.redis = client
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		b.close()
		return nil, err
	}
	return b, nil
}

func (b *backends) close() {
	if b.redis != nil {
		b.redis.Close()
	}
	if b.pg != nil {
		b.pg.Close()
	}
}

func loadSeed(path string) ([]catalog.Document, error) {
	if path == "" {
		return catalog.Seed(), nil
	}
	docs, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading seed catalog: %w", err)
	}
	return docs, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)

	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	engine := indexer.NewEngine(b.docs, indexer.WithMetrics(m))
	docCount, termCount, _ := engine.Stats()
	slog.Info("index built", "documents", docCount, "terms", termCount)

	var queryCache *cache.QueryCache
	if b.redis != nil {
		breaker := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(name string, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		})
		queryCache = cache.New(b.redis, cfg.Redis.CacheTTL,
			cache.WithBreaker(breaker),
			cache.WithMetrics(m),
			cache.WithOpTimeout(cfg.Redis.OpTimeout),
		)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	agg := analytics.NewAggregator()
	var snapshots *aggregator.Store
	if b.pg != nil {
		snapshots = aggregator.NewStore(b.pg)
		if err := snapshots.Migrate(ctx); err != nil {
			return err
		}
		prev, err := snapshots.LatestSnapshot(ctx)
		if err != nil {
			slog.Warn("could not restore analytics snapshot", "error", err)
		} else if prev != nil {
			agg.Restore(*prev)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var publisher analytics.Publisher = analytics.LocalPublisher{Aggregator: agg}
	if len(cfg.Kafka.Brokers) > 0 {
		topic := cfg.Kafka.Topics.AnalyticsEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		publisher = producer
		consumer := kafka.NewConsumer(cfg.Kafka, topic, agg.Handle)
		g.Go(func() error { return consumer.Start(gctx) })
		slog.Info("analytics routed through kafka", "topic", topic, "brokers", cfg.Kafka.Brokers)
	}
	collector := analytics.NewCollector(publisher, cfg.Analytics.BufferSize, 100, time.Second)
	m.WatchDroppedEvents(collector.Dropped)
	collector.Start(gctx)

	if snapshots != nil {
		g.Go(func() error {
			snapshots.Run(gctx, agg, cfg.Analytics.SnapshotInterval)
			return nil
		})
	}

	checker := health.NewChecker()
	checker.Register("search_engine", func(ctx context.Context) health.ComponentHealth {
		docs, terms, _ := engine.Stats()
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents, %d terms", docs, terms)}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if b.pg == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := b.pg.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if b.redis == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := b.redis.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	slog.Info("health checks registered", "checks", checker.Names())

	var repo catalog.Repository
	if b.repo != nil {
		repo = b.repo
	}
	h := handler.New(handler.Deps{
		Engine:     engine,
		Cache:      queryCache,
		Tracker:    collector,
		Repository: repo,
		Metrics:    m,
		Limits:     cfg.Search,
	})
	var lister analytics.SnapshotLister
	if snapshots != nil {
		lister = snapshots
	}
	analyticsH := analytics.NewHandler(agg, lister)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, 10*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
		g.Go(func() error {
			sweepVisitors(gctx, limiter)
			return nil
		})
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins))(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	g.Go(func() error {
		slog.Info("portal search listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if stopMetrics != nil {
			if err := stopMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
		return nil
	})

	err = g.Wait()
	collector.Close()
	return err
}

func sweepVisitors(ctx context.Context, l *middleware.Limiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("rate limiter visitors evicted", "count", n)
			}
		}
	}
}
