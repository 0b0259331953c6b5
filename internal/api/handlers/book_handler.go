package handlers

import (
	"net/http"

	apperrors "github.com/isdelr/bookshare-be/internal/errors"
	"github.com/isdelr/bookshare-be/internal/services"
	"github.com/rs/zerolog/log"
)

// BookHandler handles HTTP requests for the shared catalog.
type BookHandler struct {
	service services.CatalogServiceProvider
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(service services.CatalogServiceProvider) *BookHandler {
	return &BookHandler{service: service}
}

// AddBookPayload is the body of an add-book request.
type AddBookPayload struct {
	Title string `json:"title" validate:"required,max=512"`
}

// ListMine lists the caller's own books.
func (h *BookHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}
	books, err := h.service.ListOwned(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// List returns every book, or the ones whose title contains ?q= ignoring case.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// Get returns a single book.
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Create adds a book owned by the caller.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var payload AddBookPayload
	if err := decode(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	book, err := h.service.AddBook(r.Context(), username, payload.Title)
	if err != nil {
		log.Error().Err(err).Str("owner", username).Msg("Failed to add book")
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// DeleteByTitle removes every book of the caller titled ?title=.
func (h *BookHandler) DeleteByTitle(w http.ResponseWriter, r *http.Request) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		writeError(w, r, apperrors.ValidationWithDetails("validation failed", map[string]string{"title": "is required"}))
		return
	}

	n, err := h.service.DeleteBook(r.Context(), username, title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// Delete removes one of the caller's books by id.
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}
	id, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBookByID(r.Context(), username, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
