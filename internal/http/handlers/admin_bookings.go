// Package handlers holds the admin HTTP handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/citabot/citabot/internal/appointments"
	"github.com/citabot/citabot/pkg/logging"
)

type indexReader interface {
	Get(ctx context.Context, assistantNumber, clientNumber string) (*appointments.Index, error)
}

// AdminBookingsHandler exposes the appointment index for support
// inspection.
type AdminBookingsHandler struct {
	index  indexReader
	logger *logging.Logger
}

// NewAdminBookingsHandler builds the handler.
func NewAdminBookingsHandler(index indexReader, logger *logging.Logger) *AdminBookingsHandler {
	if index == nil {
		panic("handlers: index store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminBookingsHandler{index: index, logger: logger}
}

// GetIndex returns the appointment index for one (assistant, client)
// pair. Path parameters are URL-escaped phone numbers.
func (h *AdminBookingsHandler) GetIndex(w http.ResponseWriter, r *http.Request) {
	assistantNumber, err := url.PathUnescape(chi.URLParam(r, "assistantNumber"))
	if err != nil || assistantNumber == "" {
		http.Error(w, "invalid assistant number", http.StatusBadRequest)
		return
	}
	clientNumber, err := url.PathUnescape(chi.URLParam(r, "clientNumber"))
	if err != nil || clientNumber == "" {
		http.Error(w, "invalid client number", http.StatusBadRequest)
		return
	}

	ix, err := h.index.Get(r.Context(), assistantNumber, clientNumber)
	if err != nil {
		h.logger.Error("failed to load appointment index",
			"error", err,
			"assistant_number", assistantNumber,
		)
		http.Error(w, "failed to load index", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ix); err != nil {
		h.logger.Error("failed to encode appointment index", "error", err)
	}
}
