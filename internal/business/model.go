package business

import "time"

const defaultTimezone = "America/Mexico_City"

// Employee is a bookable resource with its own calendar.
type Employee struct {
	Name       string `dynamodbav:"name" json:"name"`
	CalendarID string `dynamodbav:"calendarId" json:"calendarId"`
}

// Hours is the daily window during which slots may be offered, in the
// business's local time. Open is inclusive, Close exclusive.
type Hours struct {
	Open  int `dynamodbav:"open" json:"open"`
	Close int `dynamodbav:"close" json:"close"`
}

// Business is one tenant: an assistant phone number, its bookable
// employees, and where owner notifications go. A nil Hours means no
// hour-of-day restriction on offered slots.
type Business struct {
	AssistantNumber     string     `dynamodbav:"assistantNumber" json:"assistantNumber"`
	Name                string     `dynamodbav:"name" json:"name"`
	NotificationsNumber string     `dynamodbav:"notificationsNumber" json:"notificationsNumber"`
	NotificationsEmail  string     `dynamodbav:"notificationsEmail,omitempty" json:"notificationsEmail,omitempty"`
	Timezone            string     `dynamodbav:"timezone,omitempty" json:"timezone,omitempty"`
	Hours               *Hours     `dynamodbav:"hours,omitempty" json:"hours,omitempty"`
	Employees           []Employee `dynamodbav:"employees" json:"employees"`
}

// FindEmployee returns the employee with the given name, or nil.
func (b *Business) FindEmployee(name string) *Employee {
	for i := range b.Employees {
		if b.Employees[i].Name == name {
			return &b.Employees[i]
		}
	}
	return nil
}

// Location resolves the business timezone, falling back to Mexico City
// when unset and to UTC when the name does not load.
func (b *Business) Location() *time.Location {
	tz := b.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
