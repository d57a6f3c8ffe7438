package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"locallive/internal/core/controllers"
	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/internal/core/services"
	"locallive/internal/core/shell"
	httphandlers "locallive/internal/handlers/http"
	backupinfra "locallive/internal/infrastructure/backup"
	"locallive/internal/infrastructure/distributed"
	"locallive/internal/infrastructure/feed"
	"locallive/internal/infrastructure/middleware"
	"locallive/internal/infrastructure/monitoring"
	"locallive/internal/infrastructure/repositories"
	"locallive/internal/infrastructure/seed"
	signalinfra "locallive/internal/infrastructure/signal"
	"locallive/internal/infrastructure/video"
	"locallive/pkg/backup"
	"locallive/pkg/circuitbreaker"
	"locallive/pkg/config"
	pkgdistributed "locallive/pkg/distributed"
	"locallive/pkg/logger"
	"locallive/pkg/tracing"
	"locallive/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/locallive/config.yaml",
	"config.yaml",
}

func loadConfig() (*config.Config, string, error) {
	if path := os.Getenv("LOCALLIVE_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			cfg, err := config.Load(path)
			return cfg, path, err
		}
	}
	// Missing file: defaults plus environment overrides.
	cfg, err := config.Load(configPaths[0])
	return cfg, "", err
}

// startSnapshots restores the newest snapshot over the seeded state and then
// snapshots periodically until ctx is done.
func startSnapshots(ctx context.Context, cfg *config.Config, repos backupinfra.Repositories, log *zap.SugaredLogger) *backupinfra.Scheduler {
	storage, err := backup.NewFileStorage(cfg.Backup.Dir)
	if err != nil {
		log.Fatalw("failed to open snapshot storage", "error", err)
	}
	service := backup.NewBackupService(storage, "1")

	if cfg.Backup.RestoreOnStart {
		opts := backupinfra.DefaultRestoreOptions()
		opts.OverwriteExisting = true
		result, err := backupinfra.NewRestoreService(service, repos, log).RestoreLatest(ctx, time.Now(), opts)
		if err != nil {
			log.Warnw("failed to restore snapshot, continuing with seeded state", "error", err)
		} else if result.Name == "" {
			log.Info("no snapshot to restore")
		}
	}

	scheduler := backupinfra.NewScheduler(service, repos, backupinfra.Config{
		Interval:      cfg.Backup.Interval,
		RetentionDays: cfg.Backup.RetentionDays,
	}, log)
	go scheduler.Start(ctx)
	return scheduler
}

func main() {
	startTime := time.Now()

	cfg, configPath, err := loadConfig()
	if err != nil {
		panic(err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()
	if configPath != "" {
		log.Infow("loaded config", "path", configPath)
	} else {
		log.Info("no config file found, using defaults")
	}

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.Enabled = cfg.Tracing.Enabled
	tracingCfg.JaegerURL = cfg.Tracing.JaegerEndpoint
	tracingCfg.SampleRate = cfg.Tracing.SamplingRate
	tp, err := tracing.Init(tracingCfg)
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog, err := seed.Load(cfg.Catalog.SeedFile, startTime)
	if err != nil {
		log.Fatalw("failed to load catalog", "error", err)
	}

	repoFactory := repositories.NewRepositoryFactory(ctx, cfg, catalog, log)
	redisClient := repoFactory.RedisClient()

	streamRepo := repoFactory.CreateStreamRepository()
	feedRepo, err := repoFactory.CreateFeedRepository(ctx)
	if err != nil {
		log.Fatalw("failed to create feed repository", "error", err)
	}

	auctionRepo := repoFactory.CreateAuctionRepository()

	var locker pkgdistributed.Locker = pkgdistributed.NewLocalLocker()
	if redisClient != nil {
		locker = pkgdistributed.NewLockManager(redisClient, "locallive:lock:", cfg.Auction.LockTTL)
	}

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	feedService := services.NewFeedService(feedRepo, cfg.Feed.GiftAmounts, log,
		services.WithFeedLocker(locker),
		services.WithFeedMetrics(collector),
	)
	auctions := services.NewAuctionService(auctionRepo, feedService, locker, services.AuctionSettings{
		Increment:     cfg.Auction.Increment,
		BuyNowPremium: cfg.Auction.BuyNowPremium,
		StartingPrice: cfg.Auction.StartingPrice,
		Duration:      cfg.Auction.Duration,
	}, collector, log)
	for _, a := range catalog.Auctions {
		if _, err := auctions.Get(ctx, a.Channel); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrAuctionNotFound) {
			log.Warnw("failed to look up seeded auction", "channel", a.Channel, "error", err)
			continue
		}
		if err := auctions.Restore(ctx, a.Auction(cfg.Auction.Increment, cfg.Auction.BuyNowPremium, startTime)); err != nil {
			log.Warnw("failed to restore seeded auction", "channel", a.Channel, "error", err)
		}
	}

	var snapshots *backupinfra.Scheduler
	if cfg.Backup.Enabled {
		snapshots = startSnapshots(ctx, cfg, backupinfra.Repositories{
			Streams:  streamRepo,
			Auctions: auctionRepo,
			Feed:     feedRepo,
		}, log)
	}

	streams := services.NewStreamService(streamRepo, auctions, feedService, collector, log)
	catalogService := services.NewCatalogService(repoFactory.CreateCatalogRepository(), streamRepo, cfg.Catalog.CacheTTL, collector)
	authService := services.NewAuthService(
		repoFactory.CreateUserRepository(),
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	healthChecker := monitoring.NewHealthChecker(log)
	healthChecker.AddStreamRepositoryCheck(streamRepo, 30*time.Second, 2*time.Second)

	hubOpts := []feed.HubOption{
		feed.WithLimiter(middleware.NewWebSocketLimiter(cfg)),
		feed.WithMetrics(collector),
		feed.WithKeepAlive(cfg.Signal.PingInterval, cfg.Signal.PongTimeout),
	}
	var bus *distributed.EventBus
	if redisClient != nil {
		breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
		bus = distributed.NewEventBus(redisClient, utils.GenerateID("instance"), log, distributed.WithBreaker(breaker))
		hubOpts = append(hubOpts, feed.WithBus(bus))
		healthChecker.AddRedisCheck(redisClient, 15*time.Second, 2*time.Second)
		healthChecker.AddBreakerCheck("event_bus", breaker, 10*time.Second)
	}
	hub := feed.NewHub(feedService, log, hubOpts...)
	feedService.SetPublisher(hub)
	streams.SetNotifier(hub)

	if bus != nil {
		go func() {
			if err := bus.Subscribe(ctx, hub.HandleBusEvent); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("event bus subscription ended", "error", err)
			}
		}()
	}

	devices, err := video.NewDevices(cfg.Video.Devices, cfg.Video.VideoFile, cfg.Video.AudioFile)
	if err != nil {
		log.Fatalw("failed to open media devices", "error", err)
	}
	var signaler ports.Signaler
	if cfg.Video.Provider == "webrtc" {
		client, err := signalinfra.NewClient(cfg.Video.SignalURL, log)
		if err != nil {
			log.Fatalw("failed to create signal client", "error", err)
		}
		signaler = client
		healthChecker.AddHTTPCheck("signal", cfg.Video.SignalURL+"/health", false, 30*time.Second, 2*time.Second)
	}
	sessions, err := video.NewSessionFactory(cfg, devices, signaler, collector, log)
	if err != nil {
		log.Fatalw("failed to create video session factory", "error", err)
	}

	deps := &controllers.Deps{
		Catalog:       catalogService,
		Streams:       streams,
		Feed:          feedService,
		Auctions:      auctions,
		Sessions:      sessions,
		RadiusOptions: cfg.Catalog.RadiusOptions,
		DefaultRadius: cfg.Catalog.DefaultRadius,
		Logger:        log,
	}
	registry := shell.NewRegistry(authService, deps, shell.Config{
		LocationTimeout: cfg.Geolocation.Timeout,
		LocationMaxAge:  cfg.Geolocation.MaxAge,
		HighAccuracy:    cfg.Geolocation.HighAccuracy,
	}, cfg.Sessions.IdleTTL, log)

	healthChecker.StartBackgroundChecks(ctx)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.RequestLogger(logger.NewContextLogger(log)))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	router.Use(middleware.ErrorHandlerMiddleware(log))

	httphandlers.NewAuthHandler(authService, registry, cfg.Auth.AccessTokenTTL).SetupRoutes(router)
	httphandlers.NewStreamHandler(catalogService, cfg.Catalog.RadiusOptions).SetupRoutes(router)
	httphandlers.NewAppHandler(authService, registry).SetupRoutes(router)
	httphandlers.NewFeedHandler(hub, streams, authService).SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		status := healthChecker.Cached()
		c.JSON(http.StatusOK, gin.H{
			"status":    status.Status,
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"checks":    status.Checks,
			"sessions":  registry.Size(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		checkCtx, checkCancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer checkCancel()

		status := healthChecker.CheckAll(checkCtx)
		if status.Status != monitoring.StatusHealthy {
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting LocalLive server",
			"address", cfg.Server.Address,
			"video_provider", cfg.Video.Provider,
			"redis", redisClient != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("shutting down LocalLive server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	// Signing every shell out ends any kitchen broadcasts still running.
	registry.Close()
	catalogService.Close()
	if snapshots != nil {
		snapshots.Stop()
		if _, err := snapshots.RunBackup(shutdownCtx); err != nil {
			log.Errorw("failed to take final snapshot", "error", err)
		}
	}
	cancel()

	if bus != nil {
		if err := bus.Close(); err != nil {
			log.Errorw("error closing event bus", "error", err)
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}

	log.Info("LocalLive server stopped")
}
