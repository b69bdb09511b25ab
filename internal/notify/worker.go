package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/citabot/citabot/internal/queue"
	"github.com/citabot/citabot/internal/whatsapp"
	"github.com/citabot/citabot/pkg/logging"
)

const (
	defaultWorkerCount = 1
	defaultWaitSeconds = 10
	defaultBatchSize   = 10
)

// Worker consumes queued confirmations and sends them to the owner over
// WhatsApp, with an email fallback when one is configured. Every message
// is deleted from the queue regardless of delivery outcome: notification
// delivery is best-effort and never retried through the booking flow.
type Worker struct {
	queue     queue.Client
	messenger whatsapp.Messenger
	email     EmailSender
	logger    *logging.Logger

	workers int
	wg      sync.WaitGroup
}

// NewWorker constructs a notification consumer.
func NewWorker(q queue.Client, messenger whatsapp.Messenger, email EmailSender, logger *logging.Logger, workers int) *Worker {
	if q == nil {
		panic("notify: queue cannot be nil")
	}
	if messenger == nil {
		panic("notify: messenger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	return &Worker{
		queue:     q,
		messenger: messenger,
		email:     email,
		logger:    logger,
		workers:   workers,
	}
}

// Start launches consumer goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notification worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("notification worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, defaultBatchSize, defaultWaitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive notifications", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	defer w.deleteMessage(msg.ReceiptHandle)

	var conf Confirmation
	if err := json.Unmarshal([]byte(msg.Body), &conf); err != nil {
		w.logger.Error("failed to decode confirmation", "error", err, "message_id", msg.ID)
		return
	}

	body := FormatMessage(conf)
	err := w.messenger.SendMessage(ctx, conf.AssistantNumber, conf.NotificationsNumber, body)
	if err == nil {
		w.logger.Info("confirmation delivered", "notifications_number", conf.NotificationsNumber)
		return
	}
	w.logger.Error("failed to deliver confirmation over whatsapp",
		"error", err,
		"notifications_number", conf.NotificationsNumber,
	)

	if w.email == nil || conf.NotificationsEmail == "" {
		return
	}
	subject := "Cita confirmada: " + conf.Service
	if err := w.email.Send(ctx, conf.NotificationsEmail, subject, body); err != nil {
		w.logger.Error("failed to deliver confirmation email",
			"error", err,
			"notifications_email", conf.NotificationsEmail,
		)
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification message", "error", err)
	}
}
