package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"

	"github.com/citabot/citabot/cmd/mainconfig"
	"github.com/citabot/citabot/internal/agent"
	"github.com/citabot/citabot/internal/appointments"
	"github.com/citabot/citabot/internal/booking"
	"github.com/citabot/citabot/internal/business"
	"github.com/citabot/citabot/internal/calendar"
	appconfig "github.com/citabot/citabot/internal/config"
	"github.com/citabot/citabot/internal/notify"
	"github.com/citabot/citabot/internal/observability/metrics"
	"github.com/citabot/citabot/internal/queue"
	"github.com/citabot/citabot/internal/secrets"
	"github.com/citabot/citabot/internal/whatsapp"
	"github.com/citabot/citabot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting conversation worker", "env", cfg.Env)

	ctx := context.Background()
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	messagesQueue := queue.NewSQSQueue(sqsClient, cfg.MessagesQueueURL)
	notificationQueue := queue.NewSQSQueue(sqsClient, cfg.NotificationQueueURL)

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	directory := business.NewRepository(dynamoClient, cfg.BusinessesTable, logger)
	indexStore := appointments.NewStore(dynamoClient, cfg.AppointmentsTable, logger)
	threadStore := agent.NewThreadStore(dynamoClient, cfg.ThreadsTable, logger)

	secretsClient := secrets.NewManager(secretsmanager.NewFromConfig(awsCfg))
	credentialsJSON, err := secretsClient.GetSecret(ctx, cfg.GoogleServiceAccountSecret)
	if err != nil {
		logger.Error("failed to load Google credentials", "error", err)
		os.Exit(1)
	}
	gateway, err := calendar.NewGateway(ctx, credentialsJSON, logger)
	if err != nil {
		logger.Error("failed to build calendar gateway", "error", err)
		os.Exit(1)
	}

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	notifier := notify.NewPublisher(notificationQueue, logger)
	reconciler := booking.NewReconciler(directory, indexStore, gateway, notifier, logger,
		booking.WithMetrics(bookingMetrics),
	)

	messenger := whatsapp.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger)
	toolbox := agent.NewToolbox(directory, reconciler, gateway, messenger, logger)

	service := agent.NewService(
		openai.NewClient(cfg.OpenAIAPIKey),
		threadStore,
		toolbox,
		cfg.AssistantID,
		logger,
		agent.WithPolling(cfg.RunPollInterval, cfg.RunTimeout),
		agent.WithTimezone(cfg.DefaultTimezone),
		agent.WithServiceMetrics(bookingMetrics),
	)

	worker := agent.NewWorker(messagesQueue, service, messenger, logger, cfg.WorkerCount)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	worker.Start(runCtx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}
