package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/citabot/citabot/cmd/mainconfig"
	"github.com/citabot/citabot/internal/api/router"
	"github.com/citabot/citabot/internal/appointments"
	appconfig "github.com/citabot/citabot/internal/config"
	"github.com/citabot/citabot/internal/http/handlers"
	"github.com/citabot/citabot/internal/observability/metrics"
	"github.com/citabot/citabot/internal/queue"
	"github.com/citabot/citabot/internal/webhook"
	"github.com/citabot/citabot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting citabot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	var messagesQueue queue.Client
	if cfg.UseMemoryQueue {
		messagesQueue = queue.NewMemoryQueue(0)
		logger.Warn("using in-memory message queue, inbound messages are not durable")
	} else {
		messagesQueue = queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.MessagesQueueURL)
	}

	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)

	webhookOpts := []webhook.HandlerOption{webhook.WithInboundMetrics(bookingMetrics)}
	if cfg.TwilioAuthToken != "" && cfg.WebhookPublicURL != "" {
		webhookOpts = append(webhookOpts, webhook.WithSignatureValidation(cfg.TwilioAuthToken, cfg.WebhookPublicURL))
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		webhookOpts = append(webhookOpts, webhook.WithDedupe(webhook.NewProcessedStore(redisClient, cfg.DedupeTTL)))
	}
	webhookHandler := webhook.NewHandler(messagesQueue, logger, webhookOpts...)

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	indexStore := appointments.NewStore(dynamoClient, cfg.AppointmentsTable, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		WebhookHandler:  webhookHandler,
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminBookings:   handlers.NewAdminBookingsHandler(indexStore, logger),
		AdminAuthSecret: cfg.AdminJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
