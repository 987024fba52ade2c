package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/entitycache/api/handler"
	"github.com/fastygo/entitycache/cache"
	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/internal/config"
	"github.com/fastygo/entitycache/internal/infrastructure/boltdb"
	"github.com/fastygo/entitycache/internal/infrastructure/buffer"
	"github.com/fastygo/entitycache/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/entitycache/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/entitycache/internal/infrastructure/redis"
	"github.com/fastygo/entitycache/internal/middleware"
	"github.com/fastygo/entitycache/internal/router"
	"github.com/fastygo/entitycache/internal/services"
	"github.com/fastygo/entitycache/internal/services/lifecycle"
	"github.com/fastygo/entitycache/pkg/httpcontext"
	"github.com/fastygo/entitycache/pkg/logger"
	boltRepo "github.com/fastygo/entitycache/repository/bolt"
	pgRepo "github.com/fastygo/entitycache/repository/postgres"
	redisRepo "github.com/fastygo/entitycache/repository/redis"
	"github.com/fastygo/entitycache/usecase/objects"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lc := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	lc.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Error("migrations not applied", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid postgres configuration", zap.Error(err))
	}
	lc.Register("postgres", func(context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid redis configuration", zap.Error(err))
	}
	lc.RegisterCloser("redis", func() error { return redisInfra.Close(redisClient, zapLogger) })

	boltDB, err := boltdb.Open(cfg.Bolt.Path, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to open bolt database", zap.Error(err))
	}
	lc.RegisterCloser("bolt", func() error { return boltdb.Close(boltDB, zapLogger) })

	bufferStore, err := buffer.New(boltDB, cfg.Buffer.Bucket)
	if err != nil {
		zapLogger.Fatal("failed to open write buffer", zap.Error(err))
	}

	mon := monitor.New(
		monitor.Config{Interval: cfg.Monitor.Interval, Buffer: bufferStore, Logger: zapLogger},
		monitor.PostgresCheck(pool, true),
		monitor.RedisCheck(redisClient, false),
		monitor.BoltCheck(boltDB, false),
	)
	mon.Refresh(appCtx)
	mon.Start()
	lc.Register("monitor", func(context.Context) error {
		mon.Stop()
		return nil
	})

	primary := pgRepo.NewRecordRepository(pool)
	tiers := services.NewTieredFetcher(mon,
		services.TieredFetcherConfig{Backfill: cfg.Cache.Backfill, Logger: zapLogger},
		services.Tier{Name: monitor.TierBolt, Repo: boltRepo.NewRecordRepository(boltDB)},
		services.Tier{Name: monitor.TierRedis, Repo: redisRepo.NewRecordRepository(redisClient, cfg.Redis.RecordTTL)},
		services.Tier{Name: monitor.TierPostgres, Repo: primary},
	)

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		primary,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			MaxAge:     time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	bufferProcessor.Start()
	lc.RegisterStopper("buffer_processor", bufferProcessor.Stop)

	registry := domain.NewRegistry(zapLogger)
	if err := domain.RegisterBuiltins(registry); err != nil {
		zapLogger.Fatal("failed to register entity kinds", zap.Error(err))
	}

	objectCache := cache.New(cache.Config{Logger: zapLogger, CoalesceRefresh: cfg.Cache.CoalesceRefresh})
	objectManager := objects.New(objects.Deps{
		Registry: registry,
		Cache:    objectCache,
		Fetcher:  tiers,
		Store:    tiers,
		Buffer:   services.NewBufferBridge(bufferProcessor),
		Logger:   zapLogger,
	}, objects.Config{DefaultTTL: cfg.Cache.DefaultTTL})

	refresherCfg := services.RefresherConfig{Interval: cfg.Cache.RefreshInterval}
	if cfg.Cache.FlushOnRefresh {
		refresherCfg.Flusher = objectManager
	}
	refresher := services.NewRefresher(objectCache, zapLogger, refresherCfg)
	refresher.Start()
	lc.RegisterStopper("cache_refresher", refresher.Stop)
	lc.Register("flush_modified", func(ctx context.Context) error {
		_, err := objectManager.Flush(ctx)
		return err
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Objects: apiHandler.NewObjectHandler(objectManager, tiers, ctxAdapter, zapLogger),
		Cache:   apiHandler.NewCacheHandler(objectManager, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, objectCache, ctxAdapter, zapLogger),
	}

	identity := middleware.Identity(middleware.IdentityConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Required: cfg.JWT.Required,
	}, zapLogger)
	r := router.New(handlers, identity)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.Strings("tiers", tiers.Tiers()),
			zap.Duration("default_ttl", cfg.Cache.DefaultTTL))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	lc.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := lc.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
