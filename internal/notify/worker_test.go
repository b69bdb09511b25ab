package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/citabot/citabot/internal/queue"
	"github.com/citabot/citabot/pkg/logging"
)

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []string
	to      []string
	sendErr error
}

func (f *fakeMessenger) SendMessage(_ context.Context, from, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.sent = append(f.sent, body)
	return f.sendErr
}

func (f *fakeMessenger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeEmail struct {
	mu      sync.Mutex
	to      string
	subject string
	body    string
}

func (f *fakeEmail) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to, f.subject, f.body = to, subject, body
	return nil
}

func (f *fakeEmail) recipient() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.to
}

func enqueueConfirmation(t *testing.T, q queue.Client, conf Confirmation) {
	t.Helper()
	body, err := json.Marshal(conf)
	if err != nil {
		t.Fatalf("failed to marshal confirmation: %v", err)
	}
	if err := q.Send(context.Background(), string(body), conf.NotificationsNumber); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
}

func TestWorkerDeliversConfirmation(t *testing.T) {
	q := queue.NewMemoryQueue(4)
	messenger := &fakeMessenger{}
	w := NewWorker(q, messenger, nil, logging.Default(), 1)

	enqueueConfirmation(t, q, Confirmation{
		AssistantNumber:     "whatsapp:+5215550000001",
		NotificationsNumber: "whatsapp:+5215550000002",
		ClientNumber:        "whatsapp:+5215551112222",
		ClientName:          "María",
		Service:             "corte",
		StartTime:           "2026-03-10T10:00:00-06:00",
		EndTime:             "2026-03-10T11:00:00-06:00",
		Timezone:            "America/Mexico_City",
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	waitFor(t, func() bool { return messenger.count() == 1 })
	cancel()
	w.Wait()

	if messenger.to[0] != "whatsapp:+5215550000002" {
		t.Errorf("expected delivery to owner, got %s", messenger.to[0])
	}
	if !strings.Contains(messenger.sent[0], "*Cliente*: María") {
		t.Errorf("message missing client name: %s", messenger.sent[0])
	}
	if !strings.Contains(messenger.sent[0], "+5215551112222") {
		t.Errorf("message missing client phone: %s", messenger.sent[0])
	}
	if strings.Contains(messenger.sent[0], "whatsapp:+5215551112222") {
		t.Errorf("client phone should have scheme stripped: %s", messenger.sent[0])
	}
}

func TestWorkerFallsBackToEmail(t *testing.T) {
	q := queue.NewMemoryQueue(4)
	messenger := &fakeMessenger{sendErr: errors.New("twilio down")}
	email := &fakeEmail{}
	w := NewWorker(q, messenger, email, logging.Default(), 1)

	enqueueConfirmation(t, q, Confirmation{
		AssistantNumber:     "whatsapp:+5215550000001",
		NotificationsNumber: "whatsapp:+5215550000002",
		NotificationsEmail:  "owner@example.com",
		Service:             "tinte",
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	waitFor(t, func() bool { return email.recipient() != "" })
	cancel()
	w.Wait()

	if email.to != "owner@example.com" {
		t.Errorf("expected email fallback, got %q", email.to)
	}
	if !strings.Contains(email.subject, "tinte") {
		t.Errorf("expected service in subject, got %q", email.subject)
	}
}

func TestWorkerDropsMalformedMessages(t *testing.T) {
	q := queue.NewMemoryQueue(4)
	messenger := &fakeMessenger{}
	w := NewWorker(q, messenger, nil, logging.Default(), 1)

	if err := q.Send(context.Background(), "not json", ""); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	w.Wait()

	if messenger.count() != 0 {
		t.Errorf("expected no deliveries for malformed payload, got %d", messenger.count())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
