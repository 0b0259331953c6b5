package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/bookshare-be/internal/services"
	"github.com/rs/zerolog/log"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 200
)

// EventHandler serves the caller's notification feed.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get the caller's recent events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)

	events, err := h.service.GetRecentEvents(r.Context(), username, limit)
	if err != nil {
		log.Error().Err(err).Str("account", username).Msg("Failed to retrieve events")
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
