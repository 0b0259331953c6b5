package models

import "time"

// Event types recorded by the lending workflow.
const (
	EventRequestCreated  = "request.created"
	EventRequestAccepted = "request.accepted"
	EventRequestRejected = "request.rejected"
	EventRequestReminder = "request.reminder"
	EventBookWithdrawn   = "book.withdrawn"
)

// Event is an entry in an account's notification feed.
type Event struct {
	ID        string    `db:"id" json:"id"`
	Type      string    `db:"type" json:"type"`    // e.g., "request.created", "request.accepted"
	Account   string    `db:"account" json:"-"`    // the account the event is addressed to
	Actor     string    `db:"actor" json:"actor"`  // who caused it, empty for system events
	BookID    *int64    `db:"book_id" json:"bookId,omitempty"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
