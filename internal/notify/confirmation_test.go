package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMessage(t *testing.T) {
	msg := FormatMessage(Confirmation{
		ClientNumber: "+5215551112222",
		ClientName:   "María",
		Service:      "corte",
		StartTime:    "2026-03-10T16:00:00Z",
		EndTime:      "2026-03-10T17:00:00Z",
	})

	require.True(t, strings.HasPrefix(msg, "📅 Cita confirmada:\n\n"))
	assert.Contains(t, msg, "*Servicio*: corte")
	assert.Contains(t, msg, "*Cliente*: María")
	assert.Contains(t, msg, "*Teléfono del cliente*: +5215551112222")
	// 16:00 UTC is 10:00 in Mexico City (UTC-6).
	assert.Contains(t, msg, "*Inicio*: 10/03/2026 10:00 AM")
	assert.Contains(t, msg, "*Fin*: 10/03/2026 11:00 AM")
}

func TestFormatMessageStripsWhatsAppScheme(t *testing.T) {
	msg := FormatMessage(Confirmation{ClientNumber: "whatsapp:+5215551112222"})
	assert.Contains(t, msg, "*Teléfono del cliente*: +5215551112222")
	assert.NotContains(t, msg, "whatsapp:+5215551112222")
}

func TestFormatMessageHonorsBusinessTimezone(t *testing.T) {
	msg := FormatMessage(Confirmation{
		StartTime: "2026-03-10T16:00:00Z",
		Timezone:  "America/Bogota",
	})
	// 16:00 UTC is 11:00 in Bogotá (UTC-5).
	assert.Contains(t, msg, "*Inicio*: 10/03/2026 11:00 AM")
}

func TestFormatMessageKeepsUnparseableTimes(t *testing.T) {
	msg := FormatMessage(Confirmation{StartTime: "mañana a las diez"})
	assert.Contains(t, msg, "*Inicio*: mañana a las diez")
}
