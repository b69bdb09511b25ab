// Package calendar wraps the Google Calendar v3 API behind the small
// surface the booking flow needs: busy listing, insert, and patch.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/citabot/citabot/internal/availability"
	"github.com/citabot/citabot/pkg/logging"
)

// ErrEventNotFound indicates the calendar no longer has the event. The
// garbage collector on the provider side can drop events that were
// cancelled out of band, so callers treat this as recoverable.
var ErrEventNotFound = errors.New("calendar: event not found")

// EventTime is one endpoint of an event, as the tool payload carries it.
type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is the provider-neutral event payload projected into the
// calendar. ID is only set when reusing a known identifier on re-insert.
type Event struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
}

type eventsAPI interface {
	list(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error)
	insert(ctx context.Context, calendarID string, ev *gcal.Event) (*gcal.Event, error)
	patch(ctx context.Context, calendarID, eventID string, ev *gcal.Event) (*gcal.Event, error)
}

// Gateway talks to one Google Calendar service account.
type Gateway struct {
	api    eventsAPI
	logger *logging.Logger
}

// NewGateway builds a gateway from service-account credentials JSON.
func NewGateway(ctx context.Context, credentialsJSON []byte, logger *logging.Logger) (*Gateway, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to build service: %w", err)
	}
	return newGateway(&googleEvents{svc: svc}, logger), nil
}

func newGateway(api eventsAPI, logger *logging.Logger) *Gateway {
	if api == nil {
		panic("calendar: events API cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{api: api, logger: logger}
}

// ListBusy returns the busy intervals in [timeMin, timeMax), sorted
// ascending by start. A listing failure is an error; callers must not
// mistake an unreachable calendar for a free one.
func (g *Gateway) ListBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]availability.BusyInterval, error) {
	items, err := g.api.list(ctx, calendarID, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to list busy intervals: %w", err)
	}

	busy := make([]availability.BusyInterval, 0, len(items))
	for _, item := range items {
		start, end, err := eventInterval(item)
		if err != nil {
			g.logger.Warn("skipping event with unparseable times", "error", err, "event_id", item.Id)
			continue
		}
		busy = append(busy, availability.BusyInterval{Start: start, End: end})
	}
	return busy, nil
}

// ListEvents returns the raw events in [timeMin, timeMax) for the
// confirmed-bookings query tool.
func (g *Gateway) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error) {
	items, err := g.api.list(ctx, calendarID, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to list events: %w", err)
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		events = append(events, fromGoogleEvent(item))
	}
	return events, nil
}

// Insert creates the event and returns the provider's event identifier.
// When ev.ID is set, the provider is asked to reuse it.
func (g *Gateway) Insert(ctx context.Context, calendarID string, ev Event) (string, error) {
	created, err := g.api.insert(ctx, calendarID, toGoogleEvent(ev))
	if err != nil {
		return "", fmt.Errorf("calendar: failed to insert event: %w", err)
	}
	g.logger.Info("calendar event created", "calendar_id", calendarID, "event_id", created.Id)
	return created.Id, nil
}

// Patch updates the event in place, forcing its status back to confirmed
// so soft-cancelled events are reinstated. Returns ErrEventNotFound when
// the provider reports the event is gone.
func (g *Gateway) Patch(ctx context.Context, calendarID, eventID string, ev Event) error {
	patch := toGoogleEvent(ev)
	patch.Status = "confirmed"

	if _, err := g.api.patch(ctx, calendarID, eventID, patch); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return ErrEventNotFound
		}
		return fmt.Errorf("calendar: failed to patch event %s: %w", eventID, err)
	}
	g.logger.Info("calendar event patched", "calendar_id", calendarID, "event_id", eventID)
	return nil
}

func toGoogleEvent(ev Event) *gcal.Event {
	out := &gcal.Event{
		Id:          ev.ID,
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.DateTime,
			TimeZone: ev.Start.TimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.DateTime,
			TimeZone: ev.End.TimeZone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
	for _, email := range ev.Attendees {
		out.Attendees = append(out.Attendees, &gcal.EventAttendee{Email: email})
	}
	return out
}

func fromGoogleEvent(item *gcal.Event) Event {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Location:    item.Location,
		Description: item.Description,
	}
	if item.Start != nil {
		ev.Start = EventTime{DateTime: item.Start.DateTime, TimeZone: item.Start.TimeZone}
	}
	if item.End != nil {
		ev.End = EventTime{DateTime: item.End.DateTime, TimeZone: item.End.TimeZone}
	}
	for _, att := range item.Attendees {
		if att != nil && att.Email != "" {
			ev.Attendees = append(ev.Attendees, att.Email)
		}
	}
	return ev
}

func eventInterval(item *gcal.Event) (time.Time, time.Time, error) {
	start, err := eventTime(item.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := eventTime(item.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func eventTime(edt *gcal.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, errors.New("calendar: missing event time")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	// All-day events carry only a date.
	return time.Parse("2006-01-02", edt.Date)
}

type googleEvents struct {
	svc *gcal.Service
}

func (g *googleEvents) list(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error) {
	resp, err := g.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (g *googleEvents) insert(ctx context.Context, calendarID string, ev *gcal.Event) (*gcal.Event, error) {
	return g.svc.Events.Insert(calendarID, ev).Context(ctx).Do()
}

func (g *googleEvents) patch(ctx context.Context, calendarID, eventID string, ev *gcal.Event) (*gcal.Event, error) {
	return g.svc.Events.Patch(calendarID, eventID, ev).Context(ctx).Do()
}
