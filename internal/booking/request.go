package booking

import "github.com/citabot/citabot/internal/calendar"

// Request is the booking payload supplied per tool invocation. It is
// never persisted as-is: parts are projected into the appointment index
// and the whole of it into the calendar event.
type Request struct {
	EmployeeName string             `json:"employee_name"`
	ClientName   string             `json:"client_name"`
	ServiceName  string             `json:"service_name,omitempty"`
	Summary      string             `json:"summary"`
	Location     string             `json:"location,omitempty"`
	Description  string             `json:"description,omitempty"`
	Start        calendar.EventTime `json:"start"`
	End          calendar.EventTime `json:"end"`
	Attendees    []string           `json:"attendees,omitempty"`
}

// Service resolves the service name, falling back to the event summary
// for older payload shapes that predate the service_name field.
func (r Request) Service() string {
	if r.ServiceName != "" {
		return r.ServiceName
	}
	return r.Summary
}

// Event projects the request into a calendar event payload. eventID is
// set only when re-inserting under a known identifier.
func (r Request) Event(eventID string) calendar.Event {
	return calendar.Event{
		ID:          eventID,
		Summary:     r.Summary,
		Location:    r.Location,
		Description: r.Description,
		Start:       r.Start,
		End:         r.End,
		Attendees:   r.Attendees,
	}
}
