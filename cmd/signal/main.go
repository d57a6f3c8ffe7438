package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"locallive/internal/infrastructure/middleware"
	"locallive/internal/infrastructure/monitoring"
	signalinfra "locallive/internal/infrastructure/signal"
	"locallive/internal/infrastructure/video"
	"locallive/internal/infrastructure/webrtc"
	"locallive/pkg/config"
	"locallive/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var configPaths = []string{
	"configs/config.yaml",
	"./configs/config.yaml",
	"/etc/locallive/config.yaml",
	"config.yaml",
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("LOCALLIVE_CONFIG"); path != "" {
		return config.Load(path)
	}
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return config.Load(path)
		}
	}
	return config.Load(configPaths[0])
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	sfu, err := webrtc.NewSFU(video.RTCConfig(cfg), collector, log)
	if err != nil {
		log.Fatalw("failed to create SFU", "error", err)
	}
	defer sfu.Close()

	server := signalinfra.NewServer(sfu, log)
	server.SetPingInterval(cfg.Signal.PingInterval)
	server.SetPongTimeout(cfg.Signal.PongTimeout)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))

	router.GET("/signal", func(c *gin.Context) {
		server.HandleWebSocket(c.Writer, c.Request)
	})
	rtc := router.Group("/api/v1/rtc")
	{
		rtc.POST("/:channel/offer", server.HandleOffer)
		rtc.DELETE("/:channel/peers/:uid", server.HandleLeave)
	}
	router.GET("/health", server.HealthCheck)
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:    cfg.Signal.Address,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting LocalLive signal server", "address", cfg.Signal.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("signal server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Signal.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during signal server shutdown", "error", err)
		_ = srv.Close()
	}

	log.Infow("signal server stopped", "open_connections", server.ConnectionCount())
}
