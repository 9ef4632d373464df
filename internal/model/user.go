// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Password always holds a bcrypt hash, never plaintext, and is tagged json:"-"
// so it can't leak into a response even if a handler serialises the whole struct.
//
// WHY Token *string?
// The token column is nullable: NULL before the first login and after logout.
// A pointer keeps "no session" (nil) distinct from any real token value.
type User struct {
	ID        string    `json:"id"        db:"id"`
	Username  string    `json:"username"  db:"username"`
	Password  string    `json:"-"         db:"password"`
	Name      string    `json:"name"      db:"name"`
	Token     *string   `json:"-"         db:"token"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// UserUpdate is a partial update of one user row.
//
// nil means "leave the column alone". For the token, SetToken decides whether
// the column is written at all, and Token (possibly nil) is the value written,
// so logout can store NULL.
type UserUpdate struct {
	Name     *string
	Password *string // already hashed
	SetToken bool
	Token    *string
}

// IsEmpty reports whether the update would not touch any column.
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Password == nil && !u.SetToken
}
