// Package booking decides whether an incoming booking request creates a
// new appointment or updates an existing one, and keeps the per-client
// appointment index consistent with the external calendar.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/citabot/citabot/internal/appointments"
	"github.com/citabot/citabot/internal/business"
	"github.com/citabot/citabot/internal/calendar"
	"github.com/citabot/citabot/internal/notify"
	"github.com/citabot/citabot/internal/observability/metrics"
	"github.com/citabot/citabot/pkg/logging"
)

// Status reports which path a reconciliation took.
type Status string

const (
	// StatusCreated means a new calendar event and index record exist.
	StatusCreated Status = "created"
	// StatusUpdated means the existing event was patched (or recreated
	// under its original identifier); the index is untouched.
	StatusUpdated Status = "updated"
)

// Result is the outcome of one reconciliation.
type Result struct {
	Status  Status
	EventID string
}

// BusinessDirectory resolves tenants by assistant number.
type BusinessDirectory interface {
	GetByAssistantNumber(ctx context.Context, assistantNumber string) (*business.Business, error)
}

// IndexStore reads and rewrites appointment index documents.
type IndexStore interface {
	Get(ctx context.Context, assistantNumber, clientNumber string) (*appointments.Index, error)
	Put(ctx context.Context, ix *appointments.Index) error
}

// CalendarGateway is the slice of the calendar surface the reconciler uses.
type CalendarGateway interface {
	Insert(ctx context.Context, calendarID string, ev calendar.Event) (string, error)
	Patch(ctx context.Context, calendarID, eventID string, ev calendar.Event) error
}

// Notifier delivers the owner confirmation, best-effort.
type Notifier interface {
	AppointmentConfirmed(ctx context.Context, conf notify.Confirmation) error
}

// Reconciler orchestrates the create-vs-update decision for bookings.
// All collaborators are injected; the reconciler holds no per-process
// global state.
type Reconciler struct {
	directory BusinessDirectory
	index     IndexStore
	gateway   CalendarGateway
	notifier  Notifier
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// Option customizes reconciler behavior.
type Option func(*Reconciler)

// WithMetrics wires booking outcome counters.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// NewReconciler builds a reconciler with all collaborators injected.
func NewReconciler(directory BusinessDirectory, index IndexStore, gateway CalendarGateway, notifier Notifier, logger *logging.Logger, opts ...Option) *Reconciler {
	if directory == nil {
		panic("booking: business directory cannot be nil")
	}
	if index == nil {
		panic("booking: index store cannot be nil")
	}
	if gateway == nil {
		panic("booking: calendar gateway cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Reconciler{
		directory: directory,
		index:     index,
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile applies one booking request for the (assistant, client)
// conversation pair.
//
// A request whose (client name, service) pair already has an index
// record updates the existing calendar event in place; the stored event
// identifier never changes, so the index is not rewritten. Anything
// else creates a new event and appends a record. Resolution failures
// abort before any side effect; notification failures never do.
func (r *Reconciler) Reconcile(ctx context.Context, assistantNumber, clientNumber string, req Request) (*Result, error) {
	if assistantNumber == "" || clientNumber == "" {
		return nil, errors.New("booking: assistant and client numbers required")
	}

	biz, err := r.directory.GetByAssistantNumber(ctx, assistantNumber)
	if errors.Is(err, business.ErrNotFound) {
		return nil, ErrBusinessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("booking: failed to resolve business: %w", err)
	}

	emp := biz.FindEmployee(req.EmployeeName)
	if emp == nil {
		return nil, fmt.Errorf("%w: %q", ErrEmployeeNotFound, req.EmployeeName)
	}

	ix, err := r.index.Get(ctx, assistantNumber, clientNumber)
	if err != nil {
		return nil, fmt.Errorf("booking: failed to load appointment index: %w", err)
	}

	service := req.Service()

	var result *Result
	if existing := ix.Find(req.ClientName, service); existing != nil {
		result, err = r.update(ctx, emp, existing, req)
	} else {
		result, err = r.create(ctx, ix, emp, service, req)
	}
	if err != nil {
		r.observe("", "error")
		return nil, err
	}
	r.observe(string(result.Status), "ok")

	r.notifyConfirmed(ctx, biz, clientNumber, service, req)
	return result, nil
}

// update patches the tracked calendar event, reinstating it if the
// provider soft-cancelled it. When the event is gone entirely it is
// recreated under its original identifier, which Google Calendar
// permits, so the index record stays valid without a rewrite.
func (r *Reconciler) update(ctx context.Context, emp *business.Employee, rec *appointments.Record, req Request) (*Result, error) {
	err := r.gateway.Patch(ctx, emp.CalendarID, rec.EventID, req.Event(""))
	if errors.Is(err, calendar.ErrEventNotFound) {
		r.logger.Warn("tracked event missing from calendar, recreating",
			"event_id", rec.EventID,
			"employee", emp.Name,
		)
		if _, err := r.gateway.Insert(ctx, emp.CalendarID, req.Event(rec.EventID)); err != nil {
			return nil, fmt.Errorf("booking: failed to recreate event %s: %w", rec.EventID, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("booking: failed to update event %s: %w", rec.EventID, err)
	}

	return &Result{Status: StatusUpdated, EventID: rec.EventID}, nil
}

// create inserts a fresh event and appends the tracking record. The
// index write is guarded by an expected-version check; on conflict the
// index is re-read and the write retried once. If the re-read shows a
// concurrent request already recorded the same (client, service) pair,
// that record wins and our event is left untracked (logged, not fatal):
// the next update will converge on the tracked event.
func (r *Reconciler) create(ctx context.Context, ix *appointments.Index, emp *business.Employee, service string, req Request) (*Result, error) {
	eventID, err := r.gateway.Insert(ctx, emp.CalendarID, req.Event(""))
	if err != nil {
		return nil, fmt.Errorf("booking: failed to create event: %w", err)
	}

	rec := appointments.Record{
		Service:      service,
		EventID:      eventID,
		EmployeeName: req.EmployeeName,
	}
	ix.Append(req.ClientName, rec)

	err = r.index.Put(ctx, ix)
	if errors.Is(err, appointments.ErrVersionConflict) {
		fresh, getErr := r.index.Get(ctx, ix.AssistantNumber, ix.ClientNumber)
		if getErr != nil {
			return nil, fmt.Errorf("booking: failed to re-read index after conflict: %w", getErr)
		}
		if winner := fresh.Find(req.ClientName, service); winner != nil {
			r.logger.Warn("concurrent booking recorded first, leaving event untracked",
				"tracked_event_id", winner.EventID,
				"orphan_event_id", eventID,
			)
			return &Result{Status: StatusCreated, EventID: winner.EventID}, nil
		}
		fresh.Append(req.ClientName, rec)
		if err := r.index.Put(ctx, fresh); err != nil {
			return nil, fmt.Errorf("booking: failed to persist index after conflict retry: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("booking: failed to persist index: %w", err)
	}

	return &Result{Status: StatusCreated, EventID: eventID}, nil
}

func (r *Reconciler) notifyConfirmed(ctx context.Context, biz *business.Business, clientNumber, service string, req Request) {
	if r.notifier == nil {
		return
	}
	conf := notify.Confirmation{
		AssistantNumber:     biz.AssistantNumber,
		NotificationsNumber: biz.NotificationsNumber,
		NotificationsEmail:  biz.NotificationsEmail,
		ClientNumber:        strings.TrimPrefix(clientNumber, "whatsapp:"),
		ClientName:          req.ClientName,
		Service:             service,
		StartTime:           req.Start.DateTime,
		EndTime:             req.End.DateTime,
		Timezone:            biz.Timezone,
	}
	if err := r.notifier.AppointmentConfirmed(ctx, conf); err != nil {
		// Booking success never depends on notification delivery.
		r.logger.Error("failed to send confirmation notification",
			"error", err,
			"notifications_number", biz.NotificationsNumber,
		)
	}
}

func (r *Reconciler) observe(path, status string) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveReconcile(path, status)
}
