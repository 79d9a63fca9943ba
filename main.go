package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/docflow/docflow/backend/go-services/handlers"
	"github.com/docflow/docflow/backend/go-services/internal/config"
	"github.com/docflow/docflow/backend/go-services/internal/database"
	"github.com/docflow/docflow/backend/go-services/internal/document/handler"
	"github.com/docflow/docflow/backend/go-services/internal/document/repository"
	"github.com/docflow/docflow/backend/go-services/internal/document/service"
	"github.com/docflow/docflow/backend/go-services/internal/numbering"
	"github.com/docflow/docflow/backend/go-services/internal/scheduler"
	"github.com/docflow/docflow/backend/go-services/internal/storage"
	"github.com/docflow/docflow/backend/go-services/pkg/logger"
	"github.com/docflow/docflow/backend/go-services/pkg/metrics"
	"github.com/docflow/docflow/backend/go-services/pkg/middleware"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: store=%s redis=%v minio=%v workers(submit=%v approve=%v)",
		cfg.Store.Driver, cfg.Redis.Host != "", cfg.MinIO.Enabled(), cfg.Workers.SubmitEnabled, cfg.Workers.ApproveEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(2000))

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer closeStore()
	health.AddReadinessCheck("store", func() error {
		pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.Ping(pctx)
	})

	var rdb *redis.Client
	var numbers numbering.Generator = numbering.NewAtomicGenerator()
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s not reachable, using process-local document numbers: %v", addr, err)
		} else {
			numbers = numbering.NewRedisGenerator(rdb)
			logger.Infof("connected to Redis at %s", addr)
		}
		health.AddReadinessCheck("redis", func() error {
			pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rdb.Ping(pctx).Err()
		})
	}

	var sink service.ReportSink
	var archive handler.ReportArchive
	if cfg.MinIO.Enabled() {
		s, err := storage.NewMinIOStorage(ctx, &cfg.MinIO)
		if err != nil {
			logger.Warnf("report archive disabled: %v", err)
		} else {
			sink, archive = s, s
			logger.Infof("archiving concurrency reports to bucket %s", cfg.MinIO.Bucket)
		}
	}

	engine := service.NewEngine(store)
	batch := service.NewBatch(engine, cfg.Batch.MaxIDs)
	harness := service.NewHarness(engine, store, service.HarnessConfig{
		MaxThreads:     cfg.Concurrency.MaxThreads,
		MaxAttempts:    cfg.Concurrency.MaxAttempts,
		AttemptTimeout: cfg.Concurrency.AttemptTimeout,
	}, sink)
	svc := service.New(store, numbers, batch, harness)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(ginzap.Ginzap(logger.L(), time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger.L(), true))

	r.GET("/live", gin.WrapF(health.LiveEndpoint))
	r.GET("/ready", gin.WrapF(health.ReadyEndpoint))
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	api := r.Group("/")
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			api.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	handler.RegisterDocumentRoutes(api, svc, archive)

	var wg sync.WaitGroup
	startWorker := func(w *scheduler.Worker) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	if cfg.Workers.SubmitEnabled {
		startWorker(scheduler.NewSubmitWorker(store, batch, cfg.Workers.SubmitDelay, cfg.Workers.BatchSize))
	}
	if cfg.Workers.ApproveEnabled {
		startWorker(scheduler.NewApproveWorker(store, batch, cfg.Workers.ApproveDelay, cfg.Workers.BatchSize))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("docflow listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	wg.Wait()
}

// openStore builds the configured Store and returns a func releasing its connections.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warnf("using in-memory store; data is lost on restart")
		return repository.NewMemoryRepo(), func() {}, nil

	case "mysql", "postgres", "sqlite":
		db, err := database.OpenGorm(ctx, cfg.Store.Driver, cfg.Store.DSN, 10*time.Second)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewGormRepo(db)
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		logger.Infof("connected to %s", cfg.Store.Driver)
		return repo, closeFn, nil

	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewMongoRepo(ctx, client.Database(cfg.MongoDB.Database))
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		logger.Infof("connected to MongoDB database %s", cfg.MongoDB.Database)
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
