package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/bookshare-be/internal/auth"
	apperrors "github.com/isdelr/bookshare-be/internal/errors"
	"github.com/isdelr/bookshare-be/internal/validation"
	"github.com/rs/zerolog/log"
)

var validate = validation.New()

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
	Details any            `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps a domain error onto its HTTP status. Internal errors are
// logged and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !apperrors.As(err, &appErr) {
		appErr = apperrors.Internal("unexpected error", err)
	}

	status := appErr.HTTPStatus()
	body := errorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		body = errorBody{Code: apperrors.CodeInternal, Message: "internal error"}
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Validation("invalid request body")
	}
	return validate.Validate(dst)
}

// currentAccount returns the username put into the context by the JWT middleware.
func currentAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	username, ok := auth.AccountFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve account from context")
		writeError(w, r, apperrors.Unauthenticated("not signed in"))
		return "", false
	}
	return username, true
}

// bookIDParam parses the {id} route parameter.
func bookIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, apperrors.Validation("book id must be a positive integer"))
		return 0, false
	}
	return id, true
}
