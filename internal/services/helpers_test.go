package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/isdelr/bookshare-be/internal/database"
	"github.com/isdelr/bookshare-be/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// recordingNotifier captures every pushed event.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Notify(_ string, event models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) typesFor(account string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var types []string
	for _, e := range n.events {
		if e.Account == account {
			types = append(types, e.Type)
		}
	}
	return types
}

type testEnv struct {
	db       *sqlx.DB
	notifier *recordingNotifier
	accounts *AccountService
	events   *EventService
	catalog  *CatalogService
	lending  *LendingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	notifier := &recordingNotifier{}
	events := NewEventService(db, notifier)
	return &testEnv{
		db:       db,
		notifier: notifier,
		accounts: NewAccountService(db, bcrypt.MinCost),
		events:   events,
		catalog:  NewCatalogService(db, events),
		lending:  NewLendingService(db, events),
	}
}

func (e *testEnv) register(t *testing.T, usernames ...string) {
	t.Helper()
	for _, u := range usernames {
		_, err := e.accounts.Register(context.Background(), u, "pw-"+u)
		require.NoError(t, err)
	}
}

func (e *testEnv) countRequests(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT COUNT(*) FROM requests`))
	return n
}

func titles(books []models.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}
