package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, expiresAt, err := m.GenerateJWT("555-0100")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := m.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestValidate_WrongKey(t *testing.T) {
	token, _, err := NewTokenManager("secret", time.Hour).GenerateJWT("555-0100")
	require.NoError(t, err)

	_, err = NewTokenManager("other", time.Hour).ValidateJWT(token)
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.GenerateJWT("555-0100")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateJWT(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{Username: "555-0100"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, _, err := m.GenerateJWT("555-0200")
	require.NoError(t, err)

	var seen string
	handler := m.JWTMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) }, http.StatusNoContent},
		{"query on plain request", func(r *http.Request) { r.URL.RawQuery = "token=" + token }, http.StatusUnauthorized},
		{"query on websocket upgrade", func(r *http.Request) {
			r.URL.RawQuery = "token=" + token
			r.Header.Set("Connection", "Upgrade")
			r.Header.Set("Upgrade", "websocket")
		}, http.StatusNoContent},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "555-0200", seen)
				return
			}
			assert.Empty(t, seen)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "UNAUTHENTICATED", body.Code)
		})
	}
}
