package handlers

import (
	"net/http"
	"time"

	"github.com/isdelr/bookshare-be/internal/auth"
	"github.com/isdelr/bookshare-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AccountHandler handles registration, sessions and the current account.
type AccountHandler struct {
	service      services.AccountServiceProvider
	tokens       *auth.TokenManager
	secureCookie bool
}

// NewAccountHandler creates a new AccountHandler. secureCookie sets the
// Secure flag on the session cookie.
func NewAccountHandler(service services.AccountServiceProvider, tokens *auth.TokenManager, secureCookie bool) *AccountHandler {
	return &AccountHandler{service: service, tokens: tokens, secureCookie: secureCookie}
}

// CredentialsPayload is the body of register and login requests.
type CredentialsPayload struct {
	Username   string `json:"username" validate:"required,max=64"`
	Credential string `json:"credential" validate:"required,max=72"`
}

// Register handles new account registration.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if err := decode(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := h.service.Register(r.Context(), payload.Username, payload.Credential)
	if err != nil {
		log.Warn().Err(err).Str("username", payload.Username).Msg("Failed to register account")
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// Login authenticates the caller and issues a session token, both in the
// body and as a cookie.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if err := decode(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := h.service.Authenticate(r.Context(), payload.Username, payload.Credential)
	if err != nil {
		log.Warn().Err(err).Str("username", payload.Username).Msg("Failed authentication attempt")
		writeError(w, r, err)
		return
	}

	token, expiresAt, err := h.tokens.GenerateJWT(account.Username)
	if err != nil {
		log.Error().Err(err).Str("username", account.Username).Msg("Failed to generate JWT")
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt,
		"account":   account,
	})
}

// Logout clears the session cookie. Bearer tokens simply expire.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	w.WriteHeader(http.StatusNoContent)
}

// GetMe returns the account the session token belongs to.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	username, ok := currentAccount(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetAccount(r.Context(), username)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Account from token not found")
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
