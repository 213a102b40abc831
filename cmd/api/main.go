// Package main is the entry point for the feed-engine-service API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"feed-engine-service/internal/app/feed"
	"feed-engine-service/internal/app/session"
	"feed-engine-service/internal/config"
	"feed-engine-service/internal/domain"
	"feed-engine-service/internal/infra/adprovider"
	"feed-engine-service/internal/infra/cache"
	"feed-engine-service/internal/infra/postgres"
	"feed-engine-service/internal/infra/postgres/migrations"
	"feed-engine-service/internal/infra/redisstore"
	"feed-engine-service/internal/infra/source"
	"feed-engine-service/internal/infra/source/primary"
	"feed-engine-service/internal/infra/source/recommended"
	"feed-engine-service/internal/job"
	"feed-engine-service/internal/logger"
	"feed-engine-service/internal/transport/httpserver"
	"feed-engine-service/internal/validator"
	"feed-engine-service/pkg/locker"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(
		logger.Config{
			Level:  cfg.Logger.Level,
			Format: cfg.Logger.Format,
			Output: cfg.Logger.Output,
		},
		logger.SentryConfig{
			Enabled:     cfg.Sentry.Enabled,
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		},
	)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting feed-engine-service",
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	// Connect to Redis (cache backend and/or sweeper lock)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()
	log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr()))

	// Create cache storage backend
	var storage domain.CacheStorage
	var db *gorm.DB
	if cfg.Cache.Backend == "postgres" {
		db, err = postgres.NewConnection(
			postgres.Config{
				Host:         cfg.Database.Host,
				Port:         cfg.Database.Port,
				Name:         cfg.Database.Name,
				User:         cfg.Database.User,
				Password:     cfg.Database.Password,
				SSLMode:      cfg.Database.SSLMode,
				MaxOpenConns: cfg.Database.MaxOpenConns,
				MaxIdleConns: cfg.Database.MaxIdleConns,
				MaxLifetime:  cfg.Database.MaxLifetime,
			},
			log.Logger,
		)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer func() { _ = postgres.Close(db) }()

		if err := migrations.Run(db); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		log.Info("database migrations completed")

		storage = postgres.NewStore(db)
	} else {
		storage = redisstore.New(redisClient, cfg.Cache.KeyPrefix, cfg.Cache.Retention, log.Logger)
	}

	// Create TTL cache over the storage backend
	ttlCache := cache.New(storage, cfg.Cache.TTL, cfg.Cache.DefaultTTL, log.Logger)

	// Create source clients
	primaryClient := primary.New(clientConfig(cfg.Sources.Primary), log.Logger)
	cachedPrimary := source.NewCachedPrimary(primaryClient, ttlCache)

	var recommender domain.RecommendationSource
	if cfg.Sources.Recommended.Enabled {
		recommender = recommended.New(clientConfig(cfg.Sources.Recommended), log.Logger)
	} else {
		log.Info("recommendation source disabled, feeds will be primary-only")
	}

	adClient := adprovider.New(clientConfig(cfg.Sources.AdServer), log.Logger)

	// Create session service
	sessionSvc := session.NewService(
		cachedPrimary,
		recommender,
		adClient,
		session.Config{
			Feed: feed.Config{
				ItemsPerLoad:     cfg.Feed.ItemsPerLoad,
				TriggerThreshold: cfg.Feed.TriggerThreshold,
			},
			Windows: domain.SlotWindows{
				PreloadDistance: cfg.AdSlots.PreloadDistance,
				UnloadDistance:  cfg.AdSlots.UnloadDistance,
			},
		},
		log.Logger,
	)

	// Readiness: the configured storage backend must answer
	ready := func() bool {
		if db != nil {
			return postgres.HealthCheck(db) == nil
		}

		return redisClient.Ping(context.Background()).Err() == nil
	}

	// Create validator
	v := validator.New()

	// Create HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Port:      cfg.App.Port,
			BodyLimit: 1024 * 1024, // 1MB
			Debug:     cfg.App.Debug,
		},
		sessionSvc,
		storage,
		ready,
		v,
		log.Logger,
	)

	// Start cache sweeper with distributed locking
	var sweeper *job.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper = job.NewSweeper(
			ttlCache,
			job.SweeperConfig{
				Interval:      cfg.Sweeper.Interval,
				Timeout:       cfg.Sweeper.Timeout,
				GraceMultiple: cfg.Sweeper.GraceMultiple,
				OnStartup:     cfg.Sweeper.OnStartup,
			},
			log.Logger,
			locker.NewRedisLocker(redisClient, log.Logger),
		)
		sweeper.Start(cfg.Sweeper.OnStartup)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutdown signal received")

		if sweeper != nil {
			sweeper.Stop()
		}

		// Release every held ad reservation before the process exits
		sessionSvc.CloseAll(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.App.ShutdownWithContext(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	if err := server.Start(cfg.App.Port); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

// clientConfig maps a configured endpoint to the source client settings.
func clientConfig(ep config.SourceEndpoint) source.ClientConfig {
	return source.ClientConfig{
		BaseURL: ep.BaseURL,
		Timeout: ep.Timeout,
		Retry: source.RetryConfig{
			MaxAttempts: ep.Retry.MaxAttempts,
			WaitTime:    ep.Retry.WaitTime,
			MaxWaitTime: ep.Retry.MaxWaitTime,
		},
		CB: source.CBConfig{
			MaxRequests:  ep.CB.MaxRequests,
			Interval:     ep.CB.Interval,
			Timeout:      ep.CB.Timeout,
			FailureRatio: ep.CB.FailureRatio,
		},
	}
}
