package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/citabot/citabot/internal/queue"
	"github.com/citabot/citabot/pkg/logging"
)

type syncMessenger struct {
	mu   sync.Mutex
	to   []string
	sent []string
}

func (m *syncMessenger) SendMessage(_ context.Context, _, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.sent = append(m.sent, body)
	return nil
}

func (m *syncMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *syncMessenger) last() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return "", ""
	}
	return m.to[len(m.to)-1], m.sent[len(m.sent)-1]
}

func enqueueInbound(t *testing.T, q queue.Client, msg InboundMessage) {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal inbound: %v", err)
	}
	if err := q.Send(context.Background(), string(body), msg.From); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
}

func TestWorkerRepliesToInboundMessage(t *testing.T) {
	client := &fakeAssistant{
		runStates: []openai.Run{{ID: "run_1", Status: openai.RunStatusCompleted}},
		reply:     "Claro, ¿para qué día?",
	}
	svc := newTestService(client, newMemoryThreads(), &recordingDispatcher{})
	q := queue.NewMemoryQueue(4)
	messenger := &syncMessenger{}
	w := NewWorker(q, svc, messenger, logging.Default(), 1)

	enqueueInbound(t, q, InboundMessage{
		To:   "whatsapp:+5215550000001",
		From: "whatsapp:+5215551112222",
		Body: "Quiero una cita",
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	waitForCondition(t, func() bool { return messenger.count() == 1 })
	cancel()
	w.Wait()

	to, body := messenger.last()
	if to != "whatsapp:+5215551112222" {
		t.Errorf("expected reply to client, got %s", to)
	}
	if body != "Claro, ¿para qué día?" {
		t.Errorf("unexpected reply %q", body)
	}
}

func TestWorkerSendsApologyOnRunFailure(t *testing.T) {
	client := &fakeAssistant{
		runStates: []openai.Run{{ID: "run_1", Status: openai.RunStatusFailed}},
	}
	svc := newTestService(client, newMemoryThreads(), &recordingDispatcher{})
	q := queue.NewMemoryQueue(4)
	messenger := &syncMessenger{}
	w := NewWorker(q, svc, messenger, logging.Default(), 1)

	enqueueInbound(t, q, InboundMessage{To: "whatsapp:+521", From: "whatsapp:+522", Body: "hola"})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	waitForCondition(t, func() bool { return messenger.count() == 1 })
	cancel()
	w.Wait()

	_, body := messenger.last()
	if body != errorReply {
		t.Errorf("expected apology reply, got %q", body)
	}
}

func TestWorkerDropsMalformedInbound(t *testing.T) {
	client := &fakeAssistant{
		runStates: []openai.Run{{ID: "run_1", Status: openai.RunStatusCompleted}},
		reply:     "ok",
	}
	svc := newTestService(client, newMemoryThreads(), &recordingDispatcher{})
	q := queue.NewMemoryQueue(4)
	messenger := &syncMessenger{}
	w := NewWorker(q, svc, messenger, logging.Default(), 1)

	if err := q.Send(context.Background(), "not json", ""); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	w.Wait()

	if messenger.count() != 0 {
		t.Errorf("expected no replies for malformed payload, got %d", messenger.count())
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
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
