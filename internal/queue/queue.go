// Package queue abstracts the SQS transport shared by the webhook
// producer and the worker consumers.
package queue

import "context"

// Message is one received queue entry.
type Message struct {
	ID            string
	Body          string
	GroupID       string
	ReceiptHandle string
}

// Client sends and receives opaque message bodies.
//
// Group IDs map to SQS FIFO message groups: messages sharing a group are
// delivered in order, one in flight at a time, which is what serializes
// conversation turns per client.
type Client interface {
	Send(ctx context.Context, body string, groupID string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}
