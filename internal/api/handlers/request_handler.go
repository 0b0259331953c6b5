package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/isdelr/bookshare-be/internal/errors"
	"github.com/isdelr/bookshare-be/internal/services"
	"github.com/rs/zerolog/log"
)

// RequestHandler handles borrow requests and their resolution.
type RequestHandler struct {
	service services.LendingServiceProvider
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(service services.LendingServiceProvider) *RequestHandler {
	return &RequestHandler{service: service}
}

// Create records a request by the caller for the book in the path.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	req, err := h.service.RequestBook(r.Context(), username, bookID)
	if err != nil {
		log.Warn().Err(err).Str("requester", username).Int64("book_id", bookID).Msg("Failed to request book")
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// Incoming lists pending requests on the caller's books, grouped by book.
func (h *RequestHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}
	grouped, err := h.service.ListRequestsForOwner(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grouped)
}

// Outgoing lists the caller's own pending requests.
func (h *RequestHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}
	requests, err := h.service.ListOutgoing(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// Accept resolves {requester}'s request on book {id} in their favour.
func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, services.ResolutionAccept)
}

// Reject resolves {requester}'s request on book {id} against them.
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, services.ResolutionReject)
}

func (h *RequestHandler) resolve(w http.ResponseWriter, r *http.Request, resolution services.Resolution) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	// chi hands back the raw segment when the path carries escapes.
	requester, err := url.PathUnescape(chi.URLParam(r, "requester"))
	if err != nil || requester == "" {
		writeError(w, r, apperrors.Validation("requester must be a valid path segment"))
		return
	}

	resolve := h.service.Accept
	if resolution == services.ResolutionReject {
		resolve = h.service.Reject
	}
	if err := resolve(r.Context(), username, bookID, requester); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
