package agent

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

	// Fallback reply when a turn cannot be produced at all.
	errorReply = "Lo siento, hubo un error al procesar tu mensaje."
)

// InboundMessage is the queued webhook payload. Field names follow the
// Twilio form parameters carried through the webhook verbatim.
type InboundMessage struct {
	To   string `json:"To"`
	From string `json:"From"`
	Body string `json:"Body"`
}

// Worker consumes inbound conversation messages, runs one assistant
// turn each, and replies over WhatsApp. Messages arrive grouped by
// client number, so turns for one client are processed in order.
type Worker struct {
	queue     queue.Client
	service   *Service
	messenger whatsapp.Messenger
	logger    *logging.Logger

	workers int
	wg      sync.WaitGroup
}

// NewWorker constructs a conversation consumer.
func NewWorker(q queue.Client, service *Service, messenger whatsapp.Messenger, logger *logging.Logger, workers int) *Worker {
	if q == nil {
		panic("agent: queue cannot be nil")
	}
	if service == nil {
		panic("agent: service cannot be nil")
	}
	if messenger == nil {
		panic("agent: messenger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	return &Worker{
		queue:     q,
		service:   service,
		messenger: messenger,
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
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, defaultBatchSize, defaultWaitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive messages", "error", err, "worker_id", workerID)
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

// handle runs one turn. The queue message is deleted only after the
// reply is delivered; delivery failures leave it for redelivery.
func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	var inbound InboundMessage
	if err := json.Unmarshal([]byte(msg.Body), &inbound); err != nil {
		w.logger.Error("failed to decode inbound message", "error", err, "message_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	if inbound.To == "" || inbound.From == "" {
		w.logger.Error("inbound message missing addresses", "message_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	reply, err := w.service.Respond(ctx, inbound.To, inbound.From, inbound.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("failed to produce reply",
			"error", err,
			"assistant_number", inbound.To,
			"client_number", inbound.From,
		)
		reply = errorReply
	}

	if err := w.messenger.SendMessage(ctx, inbound.To, inbound.From, reply); err != nil {
		w.logger.Error("failed to deliver reply",
			"error", err,
			"client_number", inbound.From,
		)
		return
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation message", "error", err)
	}
}
