package models

import "time"

// BorrowRequest is a pending claim by Requester on a book.
// A request exists only while pending; resolving it deletes the row.
type BorrowRequest struct {
	ID        int64     `db:"id" json:"id"`
	BookID    int64     `db:"book_id" json:"bookId"`
	Requester string    `db:"requester" json:"requester"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	// Filled by listings that join the book.
	BookTitle string `db:"book_title" json:"bookTitle,omitempty"`
	BookOwner string `db:"book_owner" json:"bookOwner,omitempty"`
}

// BookRequests groups the pending requesters of one owned book.
type BookRequests struct {
	Book       Book     `json:"book"`
	Requesters []string `json:"requesters"`
}

// OwnerPending summarises the pending requests across one owner's books.
type OwnerPending struct {
	Owner    string `db:"owner"`
	Books    int    `db:"books"`
	Requests int    `db:"requests"`
}
