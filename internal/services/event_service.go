package services

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	apperrors "github.com/isdelr/bookshare-be/internal/errors"
	"github.com/isdelr/bookshare-be/internal/models"
	"github.com/jmoiron/sqlx"
)

// Notifier pushes a freshly recorded event to the addressed account's live clients.
type Notifier interface {
	Notify(account string, event models.Event)
}

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, account, actor string, bookID *int64, message string) error
	GetRecentEvents(ctx context.Context, account string, limit int) ([]models.Event, error)
}

// EventService records notification events and fans them out to live clients.
type EventService struct {
	db       *sqlx.DB
	notifier Notifier
	now      func() time.Time
}

// NewEventService creates a new EventService. notifier may be nil.
func NewEventService(db *sqlx.DB, notifier Notifier) *EventService {
	return &EventService{db: db, notifier: notifier, now: time.Now}
}

// CreateEvent stores a new event for account and notifies its live clients.
func (s *EventService) CreateEvent(ctx context.Context, eventType, account, actor string, bookID *int64, message string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Account:   account,
		Actor:     actor,
		BookID:    bookID,
		Message:   message,
		CreatedAt: s.now().UTC(),
	}

	insert := dialect.Insert("events").Prepared(true).Rows(goqu.Record{
		"id":         event.ID,
		"type":       event.Type,
		"account":    event.Account,
		"actor":      event.Actor,
		"book_id":    event.BookID,
		"message":    event.Message,
		"created_at": event.CreatedAt,
	})
	if _, err := execAffected(ctx, s.db, insert); err != nil {
		return apperrors.Internal("record event", err)
	}

	if s.notifier != nil {
		s.notifier.Notify(account, event)
	}
	return nil
}

// GetRecentEvents retrieves the newest events addressed to account.
func (s *EventService) GetRecentEvents(ctx context.Context, account string, limit int) ([]models.Event, error) {
	query := dialect.From("events").Prepared(true).
		Select("id", "type", "account", "actor", "book_id", "message", "created_at").
		Where(goqu.Ex{"account": account}).
		Order(goqu.I("created_at").Desc(), goqu.I("rowid").Desc()).
		Limit(uint(limit))

	events := []models.Event{}
	if err := selectAll(ctx, s.db, &events, query); err != nil {
		return nil, apperrors.Internal("list events", err)
	}
	return events, nil
}
