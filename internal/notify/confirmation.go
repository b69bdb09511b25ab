// Package notify delivers appointment confirmations to business owners.
// Delivery is best-effort end to end: the booking flow publishes to a
// queue and moves on, and the consumer logs and drops failures.
package notify

import (
	"fmt"
	"strings"
	"time"
)

// Confirmation is the owner-notification payload queued after a booking.
type Confirmation struct {
	AssistantNumber     string `json:"assistantNumber"`
	NotificationsNumber string `json:"notificationNumber"`
	NotificationsEmail  string `json:"notificationEmail,omitempty"`
	ClientNumber        string `json:"clientNumber"`
	ClientName          string `json:"clientName"`
	Service             string `json:"service"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	Timezone            string `json:"timezone,omitempty"`
}

const defaultTimezone = "America/Mexico_City"

// FormatMessage renders the WhatsApp confirmation text sent to the
// business owner, with timestamps localized to the business timezone.
func FormatMessage(conf Confirmation) string {
	var b strings.Builder
	b.WriteString("📅 Cita confirmada:\n\n")
	fmt.Fprintf(&b, "*Servicio*: %s\n", conf.Service)
	fmt.Fprintf(&b, "*Cliente*: %s\n", conf.ClientName)
	fmt.Fprintf(&b, "*Teléfono del cliente*: %s\n", strings.TrimPrefix(conf.ClientNumber, "whatsapp:"))
	fmt.Fprintf(&b, "*Inicio*: %s\n", localize(conf.StartTime, conf.Timezone))
	fmt.Fprintf(&b, "*Fin*: %s", localize(conf.EndTime, conf.Timezone))
	return b.String()
}

func localize(rfc3339, tz string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		// Show the raw payload value rather than dropping the field.
		return rfc3339
	}
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02/01/2006 3:04 PM")
}
