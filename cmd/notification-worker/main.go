package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/citabot/citabot/cmd/mainconfig"
	appconfig "github.com/citabot/citabot/internal/config"
	"github.com/citabot/citabot/internal/notify"
	"github.com/citabot/citabot/internal/queue"
	"github.com/citabot/citabot/internal/whatsapp"
	"github.com/citabot/citabot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting notification worker", "env", cfg.Env)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	notificationQueue := queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotificationQueueURL)
	messenger := whatsapp.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger)

	var email notify.EmailSender
	if cfg.NotifyFromEmail != "" {
		email = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.NotifyFromEmail, cfg.NotifyFromName, logger)
	}

	worker := notify.NewWorker(notificationQueue, messenger, email, logger, cfg.WorkerCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down notification worker...")
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
		logger.Info("notification worker stopped")
	case <-doneCtx.Done():
		logger.Error("notification worker shutdown timed out", "error", doneCtx.Err())
	}
}
