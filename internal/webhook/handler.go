package webhook

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/citabot/citabot/internal/observability/metrics"
	"github.com/citabot/citabot/internal/queue"
	"github.com/citabot/citabot/pkg/logging"
)

// Deduper filters already-seen message identifiers.
type Deduper interface {
	MarkProcessed(ctx context.Context, messageSID string) (bool, error)
}

// Handler accepts inbound WhatsApp webhooks over HTTP and enqueues the
// payload verbatim, grouped by sender so each client's messages are
// processed in order.
type Handler struct {
	queue      queue.Client
	dedupe     Deduper
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	authToken  string
	webhookURL string
}

// HandlerOption customizes webhook handling.
type HandlerOption func(*Handler)

// WithDedupe filters duplicate deliveries by MessageSid.
func WithDedupe(store Deduper) HandlerOption {
	return func(h *Handler) {
		h.dedupe = store
	}
}

// WithSignatureValidation rejects requests that fail Twilio signature
// verification.
func WithSignatureValidation(authToken, webhookURL string) HandlerOption {
	return func(h *Handler) {
		h.authToken = authToken
		h.webhookURL = webhookURL
	}
}

// WithInboundMetrics wires inbound webhook counters.
func WithInboundMetrics(m *metrics.BookingMetrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler builds the webhook endpoint.
func NewHandler(q queue.Client, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if q == nil {
		panic("webhook: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{queue: q, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authToken != "" && !ValidateSignature(r, h.authToken, h.webhookURL) {
		h.observe("forbidden")
		h.logger.Warn("webhook signature validation failed", "remote_addr", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.observe("invalid")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	fields := flatten(r.PostForm)

	status, code := h.process(r.Context(), fields)
	h.observe(status)
	if code >= http.StatusBadRequest {
		http.Error(w, status, code)
		return
	}
	w.WriteHeader(code)
}

// process enqueues one decoded payload. It is shared with the Lambda
// entrypoint, which feeds it base64-decoded proxy bodies.
func (h *Handler) process(ctx context.Context, fields map[string]string) (status string, code int) {
	if err := ValidateFields(fields); err != nil {
		h.logger.Warn("rejected webhook payload", "error", err)
		return "invalid", http.StatusBadRequest
	}

	if h.dedupe != nil && fields["MessageSid"] != "" {
		first, err := h.dedupe.MarkProcessed(ctx, fields["MessageSid"])
		if err != nil {
			// Dedupe is advisory; replayed turns are idempotent.
			h.logger.Error("dedupe check failed, accepting message", "error", err)
		} else if !first {
			h.logger.Info("duplicate webhook delivery dropped", "message_sid", fields["MessageSid"])
			return "duplicate", http.StatusOK
		}
	}

	body, err := json.Marshal(fields)
	if err != nil {
		h.logger.Error("failed to encode webhook payload", "error", err)
		return "error", http.StatusInternalServerError
	}
	if err := h.queue.Send(ctx, string(body), fields["From"]); err != nil {
		h.logger.Error("failed to enqueue webhook payload", "error", err)
		return "error", http.StatusInternalServerError
	}

	h.logger.Info("webhook enqueued",
		"assistant_number", fields["To"],
		"client_number", fields["From"],
	)
	return "accepted", http.StatusOK
}

// Process enqueues a payload decoded outside the HTTP path. It returns
// the HTTP status code the caller should report.
func (h *Handler) Process(ctx context.Context, fields map[string]string) int {
	status, code := h.process(ctx, fields)
	h.observe(status)
	return code
}

func (h *Handler) observe(status string) {
	h.metrics.ObserveInbound(status)
}
