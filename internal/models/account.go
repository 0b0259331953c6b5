package models

import "time"

// Account is a registered identity. Username is the stable handle used to
// authorize every later call.
type Account struct {
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"` // Never expose this to the client
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
