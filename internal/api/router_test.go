package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/isdelr/bookshare-be/internal/auth"
	"github.com/isdelr/bookshare-be/internal/database"
	"github.com/isdelr/bookshare-be/internal/models"
	"github.com/isdelr/bookshare-be/internal/services"
	"github.com/isdelr/bookshare-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	events := services.NewEventService(db, hub)
	router := NewRouter(Deps{
		Hub:            hub,
		Tokens:         auth.NewTokenManager("test-secret", time.Hour),
		Accounts:       services.NewAccountService(db, bcrypt.MinCost),
		Catalog:        services.NewCatalogService(db, events),
		Lending:        services.NewLendingService(db, events),
		Events:         events,
		AllowedOrigins: []string{"*"},
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &apiClient{t: t, server: server}
}

// do sends a request and decodes a JSON response into out when non-nil.
func (c *apiClient) do(method, path, token string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) signUp(username, credential string) string {
	c.t.Helper()
	creds := map[string]string{"username": username, "credential": credential}
	require.Equal(c.t, http.StatusCreated, c.do("POST", "/api/v1/auth/register", "", creds, nil))

	var login struct {
		Token string `json:"token"`
	}
	require.Equal(c.t, http.StatusOK, c.do("POST", "/api/v1/auth/login", "", creds, &login))
	require.NotEmpty(c.t, login.Token)
	return login.Token
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}

func TestAPI_LendingScenario(t *testing.T) {
	c := newAPI(t)
	owner := c.signUp("555-0100", "pw1")
	borrower := c.signUp("555-0200", "pw2")

	var book models.Book
	require.Equal(t, http.StatusCreated, c.do("POST", "/api/v1/books", owner, map[string]string{"title": "Dune"}, &book))
	assert.Equal(t, int64(1), book.ID)
	assert.Equal(t, "555-0100", book.Owner)

	var req models.BorrowRequest
	require.Equal(t, http.StatusCreated, c.do("POST", "/api/v1/books/1/requests", borrower, nil, &req))
	assert.Equal(t, "555-0200", req.Requester)

	var incoming []models.BookRequests
	require.Equal(t, http.StatusOK, c.do("GET", "/api/v1/requests/incoming", owner, nil, &incoming))
	require.Len(t, incoming, 1)
	assert.Equal(t, "Dune", incoming[0].Book.Title)
	assert.Equal(t, []string{"555-0200"}, incoming[0].Requesters)

	var outgoing []models.BorrowRequest
	require.Equal(t, http.StatusOK, c.do("GET", "/api/v1/requests/outgoing", borrower, nil, &outgoing))
	require.Len(t, outgoing, 1)

	// Only the owner may resolve, and a refused attempt leaves the request pending.
	var refused errorResponse
	assert.Equal(t, http.StatusForbidden, c.do("POST", "/api/v1/books/1/requests/555-0200/accept", borrower, nil, &refused))
	assert.Equal(t, "UNAUTHORIZED", refused.Code)

	assert.Equal(t, http.StatusNoContent, c.do("POST", "/api/v1/books/1/requests/555-0200/accept", owner, nil, nil))
	assert.Equal(t, http.StatusNotFound, c.do("POST", "/api/v1/books/1/requests/555-0200/accept", owner, nil, nil))

	incoming = nil
	require.Equal(t, http.StatusOK, c.do("GET", "/api/v1/requests/incoming", owner, nil, &incoming))
	assert.Empty(t, incoming)

	var feed []models.Event
	require.Equal(t, http.StatusOK, c.do("GET", "/api/v1/events", borrower, nil, &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, models.EventRequestAccepted, feed[0].Type)

	assert.Equal(t, http.StatusNoContent, c.do("DELETE", "/api/v1/books/1", owner, nil, nil))
	var all []models.Book
	require.Equal(t, http.StatusOK, c.do("GET", "/api/v1/books", borrower, nil, &all))
	assert.Empty(t, all)
}

func TestAPI_CatalogAndSearch(t *testing.T) {
	c := newAPI(t)
	a := c.signUp("a", "pw")
	b := c.signUp("b", "pw")

	for token, titles := range map[string][]string{a: {"Dune", "Emma", "Dune"}, b: {"Children of Dune"}} {
		for _, title := range titles {
			require.Equal(t, http.StatusCreated, c.do("POST", "/api/v1/books", token, map[string]string{"title": title}, nil))
		}
	}

	var found []models.Book
	require.Equal(t, http.StatusOK, c.do("GET", "/api/v1/books?q=dUnE", b, nil, &found))
	assert.Len(t, found, 3)

	var mine []models.Book
	require.Equal(t, http.StatusOK, c.do("GET", "/api/v1/books/mine", b, nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "Children of Dune", mine[0].Title)

	var deleted map[string]int
	require.Equal(t, http.StatusOK, c.do("DELETE", "/api/v1/books?title=Dune", a, nil, &deleted))
	assert.Equal(t, 2, deleted["deleted"])
	assert.Equal(t, http.StatusNotFound, c.do("DELETE", "/api/v1/books?title=Dune", a, nil, nil))

	var book models.Book
	require.Equal(t, http.StatusOK, c.do("GET", fmt.Sprintf("/api/v1/books/%d", mine[0].ID), a, nil, &book))
	assert.Equal(t, "b", book.Owner)

	var missing errorResponse
	assert.Equal(t, http.StatusNotFound, c.do("GET", "/api/v1/books/999", a, nil, &missing))
	assert.Equal(t, "BOOK_NOT_FOUND", missing.Code)
	assert.Equal(t, http.StatusBadRequest, c.do("GET", "/api/v1/books/abc", a, nil, nil))
}

func TestAPI_RequestErrors(t *testing.T) {
	c := newAPI(t)
	owner := c.signUp("o", "pw")

	var book models.Book
	require.Equal(t, http.StatusCreated, c.do("POST", "/api/v1/books", owner, map[string]string{"title": "Dune"}, &book))

	var self errorResponse
	assert.Equal(t, http.StatusConflict, c.do("POST", fmt.Sprintf("/api/v1/books/%d/requests", book.ID), owner, nil, &self))
	assert.Equal(t, "SELF_REQUEST", self.Code)

	var unknown errorResponse
	assert.Equal(t, http.StatusNotFound, c.do("POST", "/api/v1/books/77/requests", owner, nil, &unknown))
	assert.Equal(t, "BOOK_NOT_FOUND", unknown.Code)
}

func TestAPI_Accounts(t *testing.T) {
	c := newAPI(t)
	token := c.signUp("555-0100", "pw1")

	var dup errorResponse
	assert.Equal(t, http.StatusConflict, c.do("POST", "/api/v1/auth/register", "", map[string]string{"username": "555-0100", "credential": "x"}, &dup))
	assert.Equal(t, "ALREADY_EXISTS", dup.Code)

	var bad errorResponse
	assert.Equal(t, http.StatusUnauthorized, c.do("POST", "/api/v1/auth/login", "", map[string]string{"username": "555-0100", "credential": "nope"}, &bad))
	assert.Equal(t, "INVALID_CREDENTIALS", bad.Code)

	var invalid errorResponse
	assert.Equal(t, http.StatusBadRequest, c.do("POST", "/api/v1/auth/register", "", map[string]string{"username": ""}, &invalid))
	assert.Equal(t, "VALIDATION", invalid.Code)
	assert.Equal(t, "is required", invalid.Details["username"])
	assert.Equal(t, "is required", invalid.Details["credential"])

	var me models.Account
	require.Equal(t, http.StatusOK, c.do("GET", "/api/v1/me", token, nil, &me))
	assert.Equal(t, "555-0100", me.Username)

	assert.Equal(t, http.StatusUnauthorized, c.do("GET", "/api/v1/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do("GET", "/api/v1/me", "not-a-jwt", nil, nil))

	var unauth errorResponse
	assert.Equal(t, http.StatusUnauthorized, c.do("GET", "/api/v1/me?token="+token, "", nil, &unauth),
		"query tokens are only for websocket upgrades")
	assert.Equal(t, "UNAUTHENTICATED", unauth.Code)
	assert.Equal(t, http.StatusNoContent, c.do("POST", "/api/v1/auth/logout", "", nil, nil))
}

func TestAPI_LoginSetsCookie(t *testing.T) {
	c := newAPI(t)
	c.signUp("u", "pw")

	body, _ := json.Marshal(map[string]string{"username": "u", "credential": "pw"})
	resp, err := http.Post(c.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == auth.CookieName {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req, err := http.NewRequest("GET", c.server.URL+"/api/v1/me", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	me, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)
}

func TestAPI_Healthz(t *testing.T) {
	c := newAPI(t)
	resp, err := http.Get(c.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_WebSocketNotifications(t *testing.T) {
	c := newAPI(t)
	owner := c.signUp("o", "pw")
	borrower := c.signUp("r", "pw")

	var book models.Book
	require.Equal(t, http.StatusCreated, c.do("POST", "/api/v1/books", owner, map[string]string{"title": "Dune"}, &book))

	wsURL := "ws" + strings.TrimPrefix(c.server.URL, "http") + "/api/v1/ws?token=" + owner
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// A ping round trip proves the client is registered before the event fires.
	require.NoError(t, conn.WriteJSON(websocket.Message{Action: "ping"}))
	var pong websocket.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, websocket.ActionPong, pong.Action)

	require.Equal(t, http.StatusCreated, c.do("POST", fmt.Sprintf("/api/v1/books/%d/requests", book.ID), borrower, nil, nil))

	var msg struct {
		Action  string       `json:"action"`
		Payload models.Event `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.ActionEvent, msg.Action)
	assert.Equal(t, models.EventRequestCreated, msg.Payload.Type)
	assert.Equal(t, "r", msg.Payload.Actor)
}

func TestAPI_WebSocketRequiresToken(t *testing.T) {
	c := newAPI(t)
	wsURL := "ws" + strings.TrimPrefix(c.server.URL, "http") + "/api/v1/ws"
	_, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_ResolveEscapedRequester(t *testing.T) {
	c := newAPI(t)
	owner := c.signUp("o", "pw")
	ann := c.signUp("ann@example.com", "pw")
	slashy := c.signUp("team/bob", "pw")

	var book models.Book
	require.Equal(t, http.StatusCreated, c.do("POST", "/api/v1/books", owner, map[string]string{"title": "Dune"}, &book))
	for _, token := range []string{ann, slashy} {
		require.Equal(t, http.StatusCreated, c.do("POST", fmt.Sprintf("/api/v1/books/%d/requests", book.ID), token, nil, nil))
	}

	assert.Equal(t, http.StatusNoContent,
		c.do("POST", fmt.Sprintf("/api/v1/books/%d/requests/ann%%40example.com/accept", book.ID), owner, nil, nil))
	assert.Equal(t, http.StatusNoContent,
		c.do("POST", fmt.Sprintf("/api/v1/books/%d/requests/team%%2Fbob/reject", book.ID), owner, nil, nil))

	var incoming []models.BookRequests
	require.Equal(t, http.StatusOK, c.do("GET", "/api/v1/requests/incoming", owner, nil, &incoming))
	assert.Empty(t, incoming)
}
