package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	apperrors "github.com/isdelr/bookshare-be/internal/errors"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// CookieName is the cookie carrying the session token for browser clients.
const CookieName = "token"

// Claims defines the JWT claims structure.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type contextKey string

// AccountKey is the context key for the authenticated account's claims.
const AccountKey = contextKey("accountClaims")

// TokenManager issues and validates session tokens.
type TokenManager struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenManager creates a TokenManager signing with secret.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{key: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateJWT creates a new token for username and returns it with its expiry.
func (m *TokenManager) GenerateJWT(username string) (string, time.Time, error) {
	jti, err := gonanoid.New()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token id: %w", err)
	}

	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateJWT parses and validates a token string.
func (m *TokenManager) ValidateJWT(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Username == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// tokenFromRequest looks for a bearer header, then the cookie. The "token"
// query parameter is only honoured on websocket upgrades, where browsers
// cannot set headers.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return token
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}
	return ""
}

// unauthenticated writes a 401 in the same JSON shape as every other API error.
func unauthenticated(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(apperrors.Unauthenticated(msg)); err != nil {
		log.Error().Err(err).Msg("Failed to encode auth error")
	}
}

// JWTMiddleware creates a middleware for protecting routes.
func (m *TokenManager) JWTMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				unauthenticated(w, "missing auth token")
				return
			}

			claims, err := m.ValidateJWT(tokenStr)
			if err != nil {
				log.Debug().Err(err).Msg("Rejected auth token")
				unauthenticated(w, "invalid auth token")
				return
			}

			ctx := context.WithValue(r.Context(), AccountKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromContext returns the authenticated username stored by JWTMiddleware.
func AccountFromContext(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(AccountKey).(*Claims)
	if !ok || claims == nil {
		return "", false
	}
	return claims.Username, true
}

// WithAccount returns a context carrying username as the authenticated account.
func WithAccount(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, AccountKey, &Claims{Username: username})
}
