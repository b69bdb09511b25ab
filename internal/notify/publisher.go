package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/citabot/citabot/internal/queue"
	"github.com/citabot/citabot/pkg/logging"
)

// Publisher enqueues confirmations on the owner-notification queue.
type Publisher struct {
	queue  queue.Client
	logger *logging.Logger
}

// NewPublisher wraps the notification queue.
func NewPublisher(q queue.Client, logger *logging.Logger) *Publisher {
	if q == nil {
		panic("notify: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: q, logger: logger}
}

// AppointmentConfirmed queues one confirmation, grouped by destination
// so notifications to the same owner stay ordered.
func (p *Publisher) AppointmentConfirmed(ctx context.Context, conf Confirmation) error {
	body, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("notify: failed to encode confirmation: %w", err)
	}
	if err := p.queue.Send(ctx, string(body), conf.NotificationsNumber); err != nil {
		return fmt.Errorf("notify: failed to enqueue confirmation: %w", err)
	}
	p.logger.Info("confirmation queued",
		"notifications_number", conf.NotificationsNumber,
		"service", conf.Service,
	)
	return nil
}
