package calendar

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/citabot/citabot/pkg/logging"
)

type fakeEventsAPI struct {
	listItems []*gcal.Event
	listErr   error

	insertedCal string
	inserted    *gcal.Event
	insertErr   error

	patchedID string
	patched   *gcal.Event
	patchErr  error
}

func (f *fakeEventsAPI) list(_ context.Context, _ string, _, _ time.Time) ([]*gcal.Event, error) {
	return f.listItems, f.listErr
}

func (f *fakeEventsAPI) insert(_ context.Context, calendarID string, ev *gcal.Event) (*gcal.Event, error) {
	f.insertedCal = calendarID
	f.inserted = ev
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	created := *ev
	if created.Id == "" {
		created.Id = "generated-id"
	}
	return &created, nil
}

func (f *fakeEventsAPI) patch(_ context.Context, _ string, eventID string, ev *gcal.Event) (*gcal.Event, error) {
	f.patchedID = eventID
	f.patched = ev
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	return ev, nil
}

func TestListBusyMapsIntervals(t *testing.T) {
	api := &fakeEventsAPI{
		listItems: []*gcal.Event{
			{
				Id:    "evt-1",
				Start: &gcal.EventDateTime{DateTime: "2026-03-10T10:00:00Z"},
				End:   &gcal.EventDateTime{DateTime: "2026-03-10T11:00:00Z"},
			},
			{
				Id:    "evt-allday",
				Start: &gcal.EventDateTime{Date: "2026-03-11"},
				End:   &gcal.EventDateTime{Date: "2026-03-12"},
			},
		},
	}
	g := newGateway(api, logging.Default())

	busy, err := g.ListBusy(context.Background(), "cal-1", time.Now(), time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(busy) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(busy))
	}
	if busy[0].End.Sub(busy[0].Start) != time.Hour {
		t.Errorf("expected 1h interval, got %s", busy[0].End.Sub(busy[0].Start))
	}
	if busy[1].End.Sub(busy[1].Start) != 24*time.Hour {
		t.Errorf("expected all-day interval, got %s", busy[1].End.Sub(busy[1].Start))
	}
}

func TestListBusyReturnsListingError(t *testing.T) {
	api := &fakeEventsAPI{listErr: errors.New("backend down")}
	g := newGateway(api, logging.Default())

	busy, err := g.ListBusy(context.Background(), "cal-1", time.Now(), time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected an error when the listing fails")
	}
	if busy != nil {
		t.Fatalf("expected no intervals alongside the error, got %d", len(busy))
	}
}

func TestListBusySkipsUnparseableEvents(t *testing.T) {
	api := &fakeEventsAPI{
		listItems: []*gcal.Event{
			{Id: "bad"},
			{
				Id:    "good",
				Start: &gcal.EventDateTime{DateTime: "2026-03-10T10:00:00Z"},
				End:   &gcal.EventDateTime{DateTime: "2026-03-10T10:30:00Z"},
			},
		},
	}
	g := newGateway(api, logging.Default())

	busy, err := g.ListBusy(context.Background(), "cal-1", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(busy) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(busy))
	}
}

func TestInsertReturnsProviderID(t *testing.T) {
	api := &fakeEventsAPI{}
	g := newGateway(api, logging.Default())

	ev := Event{
		Summary: "Corte de cabello",
		Start:   EventTime{DateTime: "2026-03-10T10:00:00-06:00", TimeZone: "America/Mexico_City"},
		End:     EventTime{DateTime: "2026-03-10T11:00:00-06:00", TimeZone: "America/Mexico_City"},
		Attendees: []string{
			"maria@example.com",
		},
	}
	id, err := g.Insert(context.Background(), "cal-1", ev)
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if id != "generated-id" {
		t.Errorf("expected generated-id, got %s", id)
	}
	if api.insertedCal != "cal-1" {
		t.Errorf("expected calendar cal-1, got %s", api.insertedCal)
	}
	if len(api.inserted.Attendees) != 1 || api.inserted.Attendees[0].Email != "maria@example.com" {
		t.Errorf("attendees not mapped: %+v", api.inserted.Attendees)
	}
	if api.inserted.Reminders == nil || api.inserted.Reminders.UseDefault {
		t.Error("expected popup reminder override")
	}
}

func TestInsertReusesClientSuppliedID(t *testing.T) {
	api := &fakeEventsAPI{}
	g := newGateway(api, logging.Default())

	id, err := g.Insert(context.Background(), "cal-1", Event{ID: "evt-reused", Summary: "x"})
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if id != "evt-reused" {
		t.Errorf("expected reused id, got %s", id)
	}
}

func TestPatchForcesConfirmedStatus(t *testing.T) {
	api := &fakeEventsAPI{}
	g := newGateway(api, logging.Default())

	err := g.Patch(context.Background(), "cal-1", "evt-1", Event{Summary: "Corte"})
	if err != nil {
		t.Fatalf("Patch returned error: %v", err)
	}
	if api.patchedID != "evt-1" {
		t.Errorf("expected patch on evt-1, got %s", api.patchedID)
	}
	if api.patched.Status != "confirmed" {
		t.Errorf("expected status confirmed, got %q", api.patched.Status)
	}
}

func TestPatchNotFoundSentinel(t *testing.T) {
	api := &fakeEventsAPI{patchErr: &googleapi.Error{Code: http.StatusNotFound}}
	g := newGateway(api, logging.Default())

	err := g.Patch(context.Background(), "cal-1", "evt-gone", Event{})
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestPatchTransportErrorIsNotNotFound(t *testing.T) {
	api := &fakeEventsAPI{patchErr: &googleapi.Error{Code: http.StatusServiceUnavailable}}
	g := newGateway(api, logging.Default())

	err := g.Patch(context.Background(), "cal-1", "evt-1", Event{})
	if err == nil || errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
