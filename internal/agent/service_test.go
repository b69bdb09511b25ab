package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/citabot/citabot/pkg/logging"
)

type memoryThreads struct {
	threads map[string]string
	saved   int
}

func newMemoryThreads() *memoryThreads {
	return &memoryThreads{threads: map[string]string{}}
}

func (m *memoryThreads) GetThreadID(_ context.Context, assistantNumber, clientNumber string) (string, error) {
	return m.threads[assistantNumber+"/"+clientNumber], nil
}

func (m *memoryThreads) SaveThreadID(_ context.Context, assistantNumber, clientNumber, threadID string) error {
	m.threads[assistantNumber+"/"+clientNumber] = threadID
	m.saved++
	return nil
}

type recordingDispatcher struct {
	calls   []openai.ToolCall
	outputs map[string]string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _, _ string, call openai.ToolCall) string {
	d.calls = append(d.calls, call)
	if out, ok := d.outputs[call.Function.Name]; ok {
		return out
	}
	return "ok"
}

// fakeAssistant scripts run status transitions: RetrieveRun consumes
// runStates in order and sticks on the last one.
type fakeAssistant struct {
	runStates []openai.Run
	retrieves int

	activeRuns     []openai.Run
	createdThreads int
	messages       []openai.MessageRequest
	createdRuns    int
	submissions    []openai.SubmitToolOutputsRequest
	reply          string
}

func (f *fakeAssistant) CreateThread(_ context.Context, _ openai.ThreadRequest) (openai.Thread, error) {
	f.createdThreads++
	return openai.Thread{ID: "thread_new"}, nil
}

func (f *fakeAssistant) CreateMessage(_ context.Context, _ string, request openai.MessageRequest) (openai.Message, error) {
	f.messages = append(f.messages, request)
	return openai.Message{}, nil
}

func (f *fakeAssistant) CreateRun(_ context.Context, _ string, _ openai.RunRequest) (openai.Run, error) {
	f.createdRuns++
	return openai.Run{ID: "run_1", Status: openai.RunStatusQueued}, nil
}

func (f *fakeAssistant) RetrieveRun(_ context.Context, _, _ string) (openai.Run, error) {
	i := f.retrieves
	if i >= len(f.runStates) {
		i = len(f.runStates) - 1
	}
	f.retrieves++
	return f.runStates[i], nil
}

func (f *fakeAssistant) ListRuns(_ context.Context, _ string, _ openai.Pagination) (openai.RunList, error) {
	return openai.RunList{Runs: f.activeRuns}, nil
}

func (f *fakeAssistant) SubmitToolOutputs(_ context.Context, _, runID string, request openai.SubmitToolOutputsRequest) (openai.Run, error) {
	f.submissions = append(f.submissions, request)
	return openai.Run{ID: runID, Status: openai.RunStatusInProgress}, nil
}

func (f *fakeAssistant) ListMessage(_ context.Context, _ string, _ *int, _, _, _, _ *string) (openai.MessagesList, error) {
	return openai.MessagesList{
		Messages: []openai.Message{
			{Content: []openai.MessageContent{{Type: "text", Text: &openai.MessageText{Value: f.reply}}}},
		},
	}, nil
}

func newTestService(client *fakeAssistant, threads threadDirectory, tools toolDispatcher) *Service {
	return NewService(client, threads, tools, "asst_123", logging.Default(),
		WithPolling(time.Millisecond, 200*time.Millisecond),
	)
}

func TestRespondCreatesThreadAndCompletes(t *testing.T) {
	client := &fakeAssistant{
		runStates: []openai.Run{{ID: "run_1", Status: openai.RunStatusCompleted}},
		reply:     "¡Hola! ¿En qué te ayudo?",
	}
	threads := newMemoryThreads()
	svc := newTestService(client, threads, &recordingDispatcher{})

	reply, err := svc.Respond(context.Background(), "whatsapp:+521", "whatsapp:+522", "Hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "¡Hola! ¿En qué te ayudo?" {
		t.Errorf("unexpected reply %q", reply)
	}
	if client.createdThreads != 1 || threads.saved != 1 {
		t.Errorf("expected a new thread to be created and saved")
	}
	if len(client.messages) != 2 {
		t.Fatalf("expected date context and user message, got %d messages", len(client.messages))
	}
	if client.messages[0].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("expected date context posted as assistant, got %s", client.messages[0].Role)
	}
	if client.messages[1].Role != openai.ChatMessageRoleUser || client.messages[1].Content != "Hola" {
		t.Errorf("unexpected user message %+v", client.messages[1])
	}
}

func TestRespondReusesStoredThread(t *testing.T) {
	client := &fakeAssistant{
		runStates: []openai.Run{{ID: "run_1", Status: openai.RunStatusCompleted}},
		reply:     "ok",
	}
	threads := newMemoryThreads()
	threads.threads["whatsapp:+521/whatsapp:+522"] = "thread_old"
	svc := newTestService(client, threads, &recordingDispatcher{})

	if _, err := svc.Respond(context.Background(), "whatsapp:+521", "whatsapp:+522", "Hola"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.createdThreads != 0 {
		t.Errorf("expected stored thread to be reused")
	}
}

func TestRespondExecutesToolCalls(t *testing.T) {
	client := &fakeAssistant{
		runStates: []openai.Run{
			{
				ID:     "run_1",
				Status: openai.RunStatusRequiresAction,
				RequiredAction: &openai.RunRequiredAction{
					SubmitToolOutputs: &openai.SubmitToolOutputs{
						ToolCalls: []openai.ToolCall{
							{ID: "call_1", Function: openai.FunctionCall{Name: toolSaveBooking, Arguments: "{}"}},
						},
					},
				},
			},
			{ID: "run_1", Status: openai.RunStatusInProgress},
			{ID: "run_1", Status: openai.RunStatusCompleted},
		},
		reply: "Tu cita quedó agendada",
	}
	dispatcher := &recordingDispatcher{outputs: map[string]string{toolSaveBooking: outputSaved}}
	svc := newTestService(client, newMemoryThreads(), dispatcher)

	reply, err := svc.Respond(context.Background(), "whatsapp:+521", "whatsapp:+522", "Quiero una cita")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Tu cita quedó agendada" {
		t.Errorf("unexpected reply %q", reply)
	}
	if len(dispatcher.calls) != 1 || dispatcher.calls[0].Function.Name != toolSaveBooking {
		t.Fatalf("expected one save tool call, got %+v", dispatcher.calls)
	}
	if len(client.submissions) != 1 {
		t.Fatalf("expected one tool output submission, got %d", len(client.submissions))
	}
	outputs := client.submissions[0].ToolOutputs
	if len(outputs) != 1 || outputs[0].ToolCallID != "call_1" || outputs[0].Output != outputSaved {
		t.Errorf("unexpected tool outputs %+v", outputs)
	}
}

func TestRespondFailedRun(t *testing.T) {
	client := &fakeAssistant{
		runStates: []openai.Run{{ID: "run_1", Status: openai.RunStatusFailed}},
	}
	svc := newTestService(client, newMemoryThreads(), &recordingDispatcher{})

	if _, err := svc.Respond(context.Background(), "a", "c", "hola"); err == nil {
		t.Fatal("expected error for failed run")
	}
}

func TestRespondTimesOutStuckRun(t *testing.T) {
	client := &fakeAssistant{
		runStates: []openai.Run{{ID: "run_1", Status: openai.RunStatusInProgress}},
	}
	svc := NewService(client, newMemoryThreads(), &recordingDispatcher{}, "asst_123", logging.Default(),
		WithPolling(time.Millisecond, 20*time.Millisecond),
	)

	_, err := svc.Respond(context.Background(), "a", "c", "hola")
	if !errors.Is(err, ErrRunTimeout) {
		t.Fatalf("expected ErrRunTimeout, got %v", err)
	}
}

func TestRespondWaitsForActiveRun(t *testing.T) {
	client := &fakeAssistant{
		activeRuns: []openai.Run{{ID: "run_0", Status: openai.RunStatusInProgress}},
		runStates: []openai.Run{
			// First retrieve resolves the prior run, later ones the new run.
			{ID: "run_0", Status: openai.RunStatusCompleted},
			{ID: "run_1", Status: openai.RunStatusCompleted},
		},
		reply: "ok",
	}
	svc := newTestService(client, newMemoryThreads(), &recordingDispatcher{})

	if _, err := svc.Respond(context.Background(), "a", "c", "hola"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.messages) != 2 {
		t.Errorf("expected messages posted only after the active run finished")
	}
}

func TestRespondCancelledContext(t *testing.T) {
	client := &fakeAssistant{
		runStates: []openai.Run{{ID: "run_1", Status: openai.RunStatusInProgress}},
	}
	svc := newTestService(client, newMemoryThreads(), &recordingDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Respond(ctx, "a", "c", "hola"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
