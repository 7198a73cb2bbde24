package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"fieldcomply/internal/cache"
	"fieldcomply/internal/compliance/alerts"
	complianceMetrics "fieldcomply/internal/compliance/metrics"
	"fieldcomply/internal/compliance/recompute"
	"fieldcomply/internal/compliance/score"
	"fieldcomply/internal/compliance/service"
	"fieldcomply/internal/compliance/store"
	"fieldcomply/internal/platform/config"
	"fieldcomply/internal/platform/httpserver"
	"fieldcomply/internal/platform/kafka"
	"fieldcomply/internal/platform/logger"
	"fieldcomply/internal/platform/metrics"
	"fieldcomply/internal/platform/postgres"
	"fieldcomply/internal/platform/redis"
	httptransport "fieldcomply/internal/transport/http"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	migrate := pflag.Bool("migrate", false, "apply database migrations before serving")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *migrate, log); err != nil {
		log.Error("fieldcomply stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires the store, cache, recompute pool and HTTP server, and blocks until
// ctx is cancelled.
func run(ctx context.Context, cfg config.Config, migrate bool, log *slog.Logger) error {
	checks := map[string]httptransport.HealthCheck{}

	records, closeStore, err := openStore(ctx, cfg, migrate, log, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	queue, closeQueue, err := openQueue(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeQueue()

	domainMetrics := complianceMetrics.New()
	cacheManager, err := cache.New(
		cache.WithLogger(log),
		cache.WithMetrics(cache.NewMetrics()),
		cache.WithTTLs(map[cache.TTLClass]time.Duration{
			cache.Realtime: cfg.Cache.Realtime,
			cache.Short:    cfg.Cache.Short,
			cache.Standard: cfg.Cache.Standard,
			cache.Long:     cfg.Cache.Long,
		}),
		cache.WithRefreshFraction(cfg.Cache.RefreshFraction),
	)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	scorer, err := score.New(records, score.WithLogger(log), score.WithMetrics(domainMetrics))
	if err != nil {
		return err
	}

	// The pool and the service reference each other: the service queues jobs
	// through the pool and the pool hands them back to the service.
	var svc *service.Service
	pool, err := recompute.NewPool(queue,
		recompute.HandlerFunc(func(ctx context.Context, job recompute.Job) error {
			return svc.HandleJob(ctx, job)
		}),
		recompute.WithConcurrency(cfg.Queue.Concurrency),
		recompute.WithMaxAttempts(cfg.Queue.MaxAttempts),
		recompute.WithLogger(log),
		recompute.WithMetrics(domainMetrics),
	)
	if err != nil {
		return err
	}
	svc, err = service.New(records, scorer, cacheManager, pool, service.WithLogger(log))
	if err != nil {
		return err
	}
	alertSvc, err := alerts.NewService(svc,
		alerts.WithThresholds(alerts.Thresholds{
			WarningDays:                 cfg.Alerts.WarningDays,
			NoticeDays:                  cfg.Alerts.NoticeDays,
			LowComplianceMinTechnicians: cfg.Alerts.LowComplianceMinTechnicians,
			LowCompliancePercent:        cfg.Alerts.LowCompliancePercent,
		}),
		alerts.WithLogger(log),
		alerts.WithMetrics(domainMetrics),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.New(svc, alertSvc, log), httptransport.RouterConfig{
		Logger:         log,
		Metrics:        metrics.New(),
		RequestTimeout: cfg.Server.RequestTimeout,
		HealthChecks:   checks,
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting fieldcomply",
			"addr", cfg.Server.Addr,
			"environment", cfg.Environment,
			"queue", cfg.Queue.Backend,
			"postgres", cfg.Database.URL != "",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		cacheManager.Wait()
		log.Info("fieldcomply stopped")
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, migrate bool, log *slog.Logger, checks map[string]httptransport.HealthCheck) (service.Store, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("no database configured, records are kept in memory")
		return store.NewInMemoryStore(), func() {}, nil
	}
	db, err := postgres.Open(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := postgres.Migrate(ctx, db, log); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	checks["postgres"] = func(ctx context.Context) error { return postgres.Health(ctx, db) }
	return store.NewPostgres(db), closer(log, "postgres", db), nil
}

func openQueue(ctx context.Context, cfg config.Config, log *slog.Logger, checks map[string]httptransport.HealthCheck) (recompute.Queue, func(), error) {
	switch cfg.Queue.Backend {
	case config.QueueRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = client.Health
		queue := recompute.NewRedisQueue(client.Client, cfg.Queue.RedisKey, log)
		return queue, func() {
			_ = queue.Close()
			if err := client.Close(); err != nil {
				log.Warn("failed to close redis", "error", err)
			}
		}, nil

	case config.QueueKafka:
		kcfg := kafka.Config{Brokers: cfg.Kafka.Brokers, ClientID: cfg.Kafka.ClientID}
		client, err := kafka.NewClient(kcfg,
			kgo.ConsumerGroup(cfg.Kafka.Group),
			kgo.ConsumeTopics(cfg.Kafka.Topic),
		)
		if err != nil {
			return nil, nil, err
		}
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, 3, 1); err != nil {
			client.Close()
			return nil, nil, err
		}
		checks["kafka"] = func(ctx context.Context) error { return kafka.Health(ctx, client) }
		queue := recompute.NewKafkaQueue(client, cfg.Kafka.Topic, log)
		return queue, func() { _ = queue.Close() }, nil

	default:
		queue := recompute.NewMemoryQueue(cfg.Queue.Capacity)
		return queue, func() { _ = queue.Close() }, nil
	}
}

func closer(log *slog.Logger, name string, db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("failed to close "+name, "error", err)
		}
	}
}
