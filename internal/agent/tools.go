package agent

import (
	"context"
	"encoding/json"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/citabot/citabot/internal/availability"
	"github.com/citabot/citabot/internal/booking"
	"github.com/citabot/citabot/internal/business"
	"github.com/citabot/citabot/internal/calendar"
	"github.com/citabot/citabot/internal/whatsapp"
	"github.com/citabot/citabot/pkg/logging"
)

const (
	toolSaveBooking   = "guardar_reserva"
	toolListBookings  = "consulta_reservas_confirmadas"
	toolFreeSlots     = "consulta_espacios_disponibles"
	toolCancelBooking = "cancelar_reserva"

	outputSaved       = "reserva guardada"
	outputSaveFailed  = "no se pudo guardar la reserva, intenta más tarde"
	outputCancelled   = "reserva cancelada"
	outputUnknownTool = "herramienta no disponible"

	interimSaveNotice = "Estoy guardando la reserva, dame un momento"
	interimListNotice = "Estoy consultando la disponibilidad, dame un momento"
)

// BookingReconciler applies a booking tool payload.
type BookingReconciler interface {
	Reconcile(ctx context.Context, assistantNumber, clientNumber string, req booking.Request) (*booking.Result, error)
}

// CalendarReader is the read-only calendar surface the query tools use.
type CalendarReader interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]calendar.Event, error)
	ListBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]availability.BusyInterval, error)
}

// Toolbox dispatches assistant tool calls. Every call yields an output
// string for the run; dispatch never fails the run itself.
type Toolbox struct {
	directory booking.BusinessDirectory
	bookings  BookingReconciler
	calendars CalendarReader
	messenger whatsapp.Messenger
	logger    *logging.Logger
}

// NewToolbox builds the tool dispatcher. messenger is optional; when
// set, clients get an interim notice before slow tools run.
func NewToolbox(directory booking.BusinessDirectory, bookings BookingReconciler, calendars CalendarReader, messenger whatsapp.Messenger, logger *logging.Logger) *Toolbox {
	if directory == nil {
		panic("agent: business directory cannot be nil")
	}
	if bookings == nil {
		panic("agent: booking reconciler cannot be nil")
	}
	if calendars == nil {
		panic("agent: calendar reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Toolbox{
		directory: directory,
		bookings:  bookings,
		calendars: calendars,
		messenger: messenger,
		logger:    logger,
	}
}

// Dispatch executes one tool call and returns its output string.
func (t *Toolbox) Dispatch(ctx context.Context, assistantNumber, clientNumber string, call openai.ToolCall) string {
	switch call.Function.Name {
	case toolSaveBooking:
		return t.saveBooking(ctx, assistantNumber, clientNumber, call.Function.Arguments)
	case toolListBookings:
		return t.listBookings(ctx, assistantNumber, clientNumber, call.Function.Arguments)
	case toolFreeSlots:
		return t.freeSlots(ctx, assistantNumber, call.Function.Arguments)
	case toolCancelBooking:
		// Cancellation is acknowledged without side effects; the
		// assistant handles rebooking in conversation.
		return outputCancelled
	default:
		t.logger.Warn("unknown tool requested", "tool", call.Function.Name)
		return outputUnknownTool
	}
}

func (t *Toolbox) saveBooking(ctx context.Context, assistantNumber, clientNumber, arguments string) string {
	t.notice(ctx, assistantNumber, clientNumber, interimSaveNotice)

	var req booking.Request
	if err := json.Unmarshal([]byte(arguments), &req); err != nil {
		t.logger.Error("failed to decode booking arguments", "error", err)
		return outputSaveFailed
	}

	result, err := t.bookings.Reconcile(ctx, assistantNumber, clientNumber, req)
	if err != nil {
		t.logger.Error("booking reconciliation failed",
			"error", err,
			"assistant_number", assistantNumber,
			"client_number", clientNumber,
		)
		return outputSaveFailed
	}

	t.logger.Info("booking reconciled",
		"status", string(result.Status),
		"event_id", result.EventID,
	)
	return outputSaved
}

type listBookingsArgs struct {
	EmployeeName string `json:"employee_name,omitempty"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

type employeeEvents struct {
	EmployeeName string           `json:"employee_name"`
	Events       []calendar.Event `json:"events"`
}

// listBookings returns the scheduled events per employee as JSON. A
// listing failure for one employee degrades to an empty list so the
// assistant can still answer for the rest.
func (t *Toolbox) listBookings(ctx context.Context, assistantNumber, clientNumber, arguments string) string {
	t.notice(ctx, assistantNumber, clientNumber, interimListNotice)

	var args listBookingsArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		t.logger.Error("failed to decode listing arguments", "error", err)
		return "[]"
	}

	timeMin, err := time.Parse(time.RFC3339, args.StartTime)
	if err != nil {
		t.logger.Error("invalid listing start time", "error", err, "start_time", args.StartTime)
		return "[]"
	}
	timeMax, err := time.Parse(time.RFC3339, args.EndTime)
	if err != nil {
		t.logger.Error("invalid listing end time", "error", err, "end_time", args.EndTime)
		return "[]"
	}

	biz, err := t.directory.GetByAssistantNumber(ctx, assistantNumber)
	if err != nil {
		t.logger.Error("failed to resolve business for listing", "error", err)
		return "[]"
	}

	employees := biz.Employees
	if args.EmployeeName != "" {
		emp := biz.FindEmployee(args.EmployeeName)
		if emp == nil {
			t.logger.Warn("listing requested for unknown employee", "employee", args.EmployeeName)
			return "[]"
		}
		employees = []business.Employee{*emp}
	}

	listings := make([]employeeEvents, 0, len(employees))
	for _, emp := range employees {
		events, err := t.calendars.ListEvents(ctx, emp.CalendarID, timeMin, timeMax)
		if err != nil {
			t.logger.Error("failed to list events for employee",
				"error", err,
				"employee", emp.Name,
			)
			events = nil
		}
		if events == nil {
			events = []calendar.Event{}
		}
		listings = append(listings, employeeEvents{EmployeeName: emp.Name, Events: events})
	}

	out, err := json.Marshal(listings)
	if err != nil {
		t.logger.Error("failed to encode listings", "error", err)
		return "[]"
	}
	return string(out)
}

type freeSlotsArgs struct {
	EmployeeName  string `json:"employee_name,omitempty"`
	EventDuration int    `json:"event_duration"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type employeeSlots struct {
	EmployeeName string              `json:"employee_name"`
	Slots        []availability.Slot `json:"slots"`
}

// freeSlots returns the open slots per employee as JSON. The duration is
// given in minutes. An employee whose busy intervals cannot be listed
// gets zero slots; an unreachable calendar is never treated as free.
// Slots are clipped to the business's booking hours when it has them.
func (t *Toolbox) freeSlots(ctx context.Context, assistantNumber, arguments string) string {
	var args freeSlotsArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		t.logger.Error("failed to decode availability arguments", "error", err)
		return "[]"
	}

	windowStart, err := time.Parse(time.RFC3339, args.StartTime)
	if err != nil {
		t.logger.Error("invalid availability start time", "error", err, "start_time", args.StartTime)
		return "[]"
	}
	windowEnd, err := time.Parse(time.RFC3339, args.EndTime)
	if err != nil {
		t.logger.Error("invalid availability end time", "error", err, "end_time", args.EndTime)
		return "[]"
	}
	if args.EventDuration <= 0 {
		t.logger.Error("invalid availability duration", "event_duration", args.EventDuration)
		return "[]"
	}
	duration := time.Duration(args.EventDuration) * time.Minute

	biz, err := t.directory.GetByAssistantNumber(ctx, assistantNumber)
	if err != nil {
		t.logger.Error("failed to resolve business for availability", "error", err)
		return "[]"
	}

	employees := biz.Employees
	if args.EmployeeName != "" {
		emp := biz.FindEmployee(args.EmployeeName)
		if emp == nil {
			t.logger.Warn("availability requested for unknown employee", "employee", args.EmployeeName)
			return "[]"
		}
		employees = []business.Employee{*emp}
	}

	results := make([]employeeSlots, 0, len(employees))
	for _, emp := range employees {
		slots := []availability.Slot{}
		busy, err := t.calendars.ListBusy(ctx, emp.CalendarID, windowStart, windowEnd)
		if err != nil {
			t.logger.Error("failed to list busy intervals for employee",
				"error", err,
				"employee", emp.Name,
			)
		} else {
			slots = availability.FreeSlots(busy, windowStart, windowEnd, duration)
			if biz.Hours != nil {
				slots = availability.WithinHours(slots, biz.Hours.Open, biz.Hours.Close, biz.Location())
			}
			if slots == nil {
				slots = []availability.Slot{}
			}
		}
		results = append(results, employeeSlots{EmployeeName: emp.Name, Slots: slots})
	}

	out, err := json.Marshal(results)
	if err != nil {
		t.logger.Error("failed to encode availability", "error", err)
		return "[]"
	}
	return string(out)
}

func (t *Toolbox) notice(ctx context.Context, assistantNumber, clientNumber, body string) {
	if t.messenger == nil {
		return
	}
	if err := t.messenger.SendMessage(ctx, assistantNumber, clientNumber, body); err != nil {
		t.logger.Warn("failed to send interim notice", "error", err)
	}
}
