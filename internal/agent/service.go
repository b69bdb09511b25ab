package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/citabot/citabot/internal/observability/metrics"
	"github.com/citabot/citabot/pkg/logging"
)

// ErrRunTimeout indicates a run did not reach a terminal state within
// the configured deadline. The run is abandoned, never polled forever.
var ErrRunTimeout = errors.New("agent: run timed out")

var tracer = otel.Tracer("citabot.internal.agent")

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultRunTimeout   = 2 * time.Minute
	defaultTimezone     = "America/Mexico_City"
)

type assistantClient interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error)
	ListRuns(ctx context.Context, threadID string, pagination openai.Pagination) (openai.RunList, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, request openai.SubmitToolOutputsRequest) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order, after, before, runID *string) (openai.MessagesList, error)
}

type threadDirectory interface {
	GetThreadID(ctx context.Context, assistantNumber, clientNumber string) (string, error)
	SaveThreadID(ctx context.Context, assistantNumber, clientNumber, threadID string) error
}

type toolDispatcher interface {
	Dispatch(ctx context.Context, assistantNumber, clientNumber string, call openai.ToolCall) string
}

// Service runs one assistant turn per inbound message: resolve the
// thread, post the message, create a run, and drive it to a terminal
// state while executing tool calls.
type Service struct {
	client      assistantClient
	threads     threadDirectory
	tools       toolDispatcher
	assistantID string
	timezone    string
	poll        time.Duration
	timeout     time.Duration
	metrics     *metrics.BookingMetrics
	logger      *logging.Logger

	now func() time.Time
}

// ServiceOption customizes service behavior.
type ServiceOption func(*Service)

// WithPolling overrides the run poll interval and deadline.
func WithPolling(interval, timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if interval > 0 {
			s.poll = interval
		}
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithTimezone sets the timezone used for the date context message.
func WithTimezone(tz string) ServiceOption {
	return func(s *Service) {
		if tz != "" {
			s.timezone = tz
		}
	}
}

// WithServiceMetrics wires run latency observation.
func WithServiceMetrics(m *metrics.BookingMetrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService builds the assistant service.
func NewService(client assistantClient, threads threadDirectory, tools toolDispatcher, assistantID string, logger *logging.Logger, opts ...ServiceOption) *Service {
	if client == nil {
		panic("agent: assistant client cannot be nil")
	}
	if threads == nil {
		panic("agent: thread store cannot be nil")
	}
	if tools == nil {
		panic("agent: tool dispatcher cannot be nil")
	}
	if assistantID == "" {
		panic("agent: assistant id cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		client:      client,
		threads:     threads,
		tools:       tools,
		assistantID: assistantID,
		timezone:    defaultTimezone,
		poll:        defaultPollInterval,
		timeout:     defaultRunTimeout,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Respond posts the client message on the pair's thread and returns the
// assistant's reply text.
func (s *Service) Respond(ctx context.Context, assistantNumber, clientNumber, body string) (string, error) {
	ctx, span := tracer.Start(ctx, "agent.respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("citabot.assistant_number", assistantNumber),
		attribute.String("citabot.client_number", clientNumber),
	)

	threadID, err := s.resolveThread(ctx, assistantNumber, clientNumber)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.String("citabot.thread_id", threadID))

	if err := s.waitForIdleThread(ctx, threadID); err != nil {
		span.RecordError(err)
		return "", err
	}

	// Date context first so relative dates in the client message
	// resolve against the business clock.
	if _, err := s.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleAssistant,
		Content: "Hoy es " + s.localNow(),
	}); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("agent: failed to post date context: %w", err)
	}
	if _, err := s.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: body,
	}); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("agent: failed to post message: %w", err)
	}

	run, err := s.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: s.assistantID})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("agent: failed to create run: %w", err)
	}

	started := s.now()
	reply, err := s.driveRun(ctx, assistantNumber, clientNumber, threadID, run.ID)
	s.observeRun(err, s.now().Sub(started))
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return reply, nil
}

func (s *Service) resolveThread(ctx context.Context, assistantNumber, clientNumber string) (string, error) {
	threadID, err := s.threads.GetThreadID(ctx, assistantNumber, clientNumber)
	if err != nil {
		return "", err
	}
	if threadID != "" {
		return threadID, nil
	}

	thread, err := s.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("agent: failed to create thread: %w", err)
	}
	if err := s.threads.SaveThreadID(ctx, assistantNumber, clientNumber, thread.ID); err != nil {
		return "", err
	}
	s.logger.Info("thread created",
		"assistant_number", assistantNumber,
		"client_number", clientNumber,
		"thread_id", thread.ID,
	)
	return thread.ID, nil
}

// waitForIdleThread blocks until no run on the thread is active. The
// API rejects new messages while a run is in flight, which happens when
// a client sends several messages back to back.
func (s *Service) waitForIdleThread(ctx context.Context, threadID string) error {
	runs, err := s.client.ListRuns(ctx, threadID, openai.Pagination{})
	if err != nil {
		return fmt.Errorf("agent: failed to list runs: %w", err)
	}

	var active *openai.Run
	for i := range runs.Runs {
		if !terminalRunStatus(runs.Runs[i].Status) {
			active = &runs.Runs[i]
			break
		}
	}
	if active == nil {
		return nil
	}

	s.logger.Debug("waiting for active run", "thread_id", threadID, "run_id", active.ID)
	deadline := s.now().Add(s.timeout)
	for {
		run, err := s.client.RetrieveRun(ctx, threadID, active.ID)
		if err != nil {
			return fmt.Errorf("agent: failed to retrieve active run: %w", err)
		}
		if terminalRunStatus(run.Status) {
			return nil
		}
		if s.now().After(deadline) {
			return fmt.Errorf("%w: waiting on run %s", ErrRunTimeout, active.ID)
		}
		if err := s.sleep(ctx); err != nil {
			return err
		}
	}
}

// driveRun polls the run until a terminal state, executing tool calls
// when the run requires action. The loop is bounded by the configured
// timeout; a run that never terminates is abandoned with ErrRunTimeout.
func (s *Service) driveRun(ctx context.Context, assistantNumber, clientNumber, threadID, runID string) (string, error) {
	deadline := s.now().Add(s.timeout)
	for {
		run, err := s.client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return "", fmt.Errorf("agent: failed to retrieve run: %w", err)
		}

		switch run.Status {
		case openai.RunStatusRequiresAction:
			if err := s.submitToolOutputs(ctx, assistantNumber, clientNumber, threadID, run); err != nil {
				return "", err
			}
		case openai.RunStatusCompleted:
			return s.latestAssistantReply(ctx, threadID, runID)
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired, openai.RunStatusIncomplete:
			return "", fmt.Errorf("agent: run %s ended %s", runID, run.Status)
		}

		if s.now().After(deadline) {
			return "", fmt.Errorf("%w: run %s", ErrRunTimeout, runID)
		}
		if err := s.sleep(ctx); err != nil {
			return "", err
		}
	}
}

func (s *Service) submitToolOutputs(ctx context.Context, assistantNumber, clientNumber, threadID string, run openai.Run) error {
	if run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
		return fmt.Errorf("agent: run %s requires action without tool calls", run.ID)
	}

	calls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	outputs := make([]openai.ToolOutput, 0, len(calls))
	for _, call := range calls {
		s.logger.Info("executing tool", "tool", call.Function.Name, "run_id", run.ID)
		outputs = append(outputs, openai.ToolOutput{
			ToolCallID: call.ID,
			Output:     s.tools.Dispatch(ctx, assistantNumber, clientNumber, call),
		})
	}

	if _, err := s.client.SubmitToolOutputs(ctx, threadID, run.ID, openai.SubmitToolOutputsRequest{
		ToolOutputs: outputs,
	}); err != nil {
		return fmt.Errorf("agent: failed to submit tool outputs: %w", err)
	}
	return nil
}

func (s *Service) latestAssistantReply(ctx context.Context, threadID, runID string) (string, error) {
	limit := 1
	order := "desc"
	list, err := s.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("agent: failed to list messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return "", fmt.Errorf("agent: run %s completed without messages", runID)
	}
	for _, content := range list.Messages[0].Content {
		if content.Text != nil {
			return content.Text.Value, nil
		}
	}
	return "", fmt.Errorf("agent: run %s reply has no text content", runID)
}

func (s *Service) localNow() string {
	loc, err := time.LoadLocation(s.timezone)
	if err != nil {
		loc = time.UTC
	}
	return s.now().In(loc).Format("Monday 02/01/2006 15:04")
}

func (s *Service) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.poll):
		return nil
	}
}

func (s *Service) observeRun(err error, elapsed time.Duration) {
	status := "ok"
	switch {
	case errors.Is(err, ErrRunTimeout):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	s.metrics.ObserveAgentRun(status, elapsed.Seconds())
}

func terminalRunStatus(status openai.RunStatus) bool {
	switch status {
	case openai.RunStatusCompleted, openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired, openai.RunStatusIncomplete:
		return true
	default:
		return false
	}
}
