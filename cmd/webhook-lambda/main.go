package main

import (
	"context"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/citabot/citabot/cmd/mainconfig"
	appconfig "github.com/citabot/citabot/internal/config"
	"github.com/citabot/citabot/internal/queue"
	"github.com/citabot/citabot/internal/webhook"
	"github.com/citabot/citabot/pkg/logging"
)

// handler adapts the webhook enqueue flow to the API Gateway proxy
// contract, where Twilio's form body arrives base64-encoded.
type handler struct {
	webhook *webhook.Handler
	logger  *logging.Logger
}

func (h *handler) handle(ctx context.Context, evt events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if evt.Body == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}

	fields, err := webhook.DecodeBody(evt.Body, evt.IsBase64Encoded)
	if err != nil {
		h.logger.Error("failed to decode webhook body", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}

	code := h.webhook.Process(ctx, fields)
	return events.APIGatewayProxyResponse{StatusCode: code}, nil
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	messagesQueue := queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.MessagesQueueURL)
	h := &handler{
		webhook: webhook.NewHandler(messagesQueue, logger),
		logger:  logger,
	}

	lambda.Start(h.handle)
}
