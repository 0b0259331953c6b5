package models

import "time"

// Book is a catalog entry owned by exactly one account.
type Book struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Owner     string    `db:"owner" json:"owner"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
