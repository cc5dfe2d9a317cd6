package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"payrecon/internal/app"
	"payrecon/internal/config"
	"payrecon/internal/handler"
	internalRedis "payrecon/internal/redis"
	"payrecon/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()
	logger := app.NewLogger(cfg.Log)

	matchMode, err := service.ParseMatchMode(cfg.Webhook.MatchMode)
	if err != nil {
		logger.WithError(err).Fatal("invalid webhook configuration")
	}
	if cfg.Webhook.Secret == "" {
		logger.Warn("WEBHOOK_SECRET is empty; all signed deliveries will be rejected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Error("failed to initialize New Relic")
		} else {
			logger.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	store, err := app.NewStore(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to open database")
	}
	defer store.Close()
	logger.WithField("driver", cfg.Database.Driver).Info("Connected to database")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	reconcilerCfg := service.ReconcilerConfig{
		Secret:          cfg.Webhook.Secret,
		MatchMode:       matchMode,
		AmountTolerance: cfg.Webhook.AmountTolerance,
	}
	server := wireServer(store, redisClient, nrApp, cfg, reconcilerCfg, logger)

	go func() {
		logger.WithFields(logrus.Fields{
			"port":          cfg.Server.Port,
			"match_mode":    matchMode,
			"test_endpoint": cfg.TestEndpointAllowed(),
		}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	store *app.Store,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	reconcilerCfg service.ReconcilerConfig,
	logger *logrus.Logger,
) *http.Server {
	reviewStore := internalRedis.NewReviewStore(redisClient)

	reconciler := service.NewReconciler(reconcilerCfg, store.Orders, store.Bookings, reviewStore, logger)

	webhookHandler := handler.NewWebhookHandler(reconciler, cfg.Webhook.SignatureHeader, cfg.Webhook.MaxBodyBytes, logger)
	paymentOrderHandler := handler.NewPaymentOrderHandler(store.Orders)
	reviewHandler := handler.NewReviewHandler(reviewStore)

	router := app.NewRouter(app.RouterDeps{
		WebhookHandler:      webhookHandler,
		PaymentOrderHandler: paymentOrderHandler,
		ReviewHandler:       reviewHandler,
		RedisClient:         redisClient,
		NewRelicApp:         nrApp,
		EnableTestEndpoint:  cfg.TestEndpointAllowed(),
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
