// Package repository declares the storage contracts the services depend on.
//
// Implementations live in subpackages (sqlite, postgres). Services only ever
// see these interfaces, so tests can hand them an in-memory fake.
package repository

import (
	"context"

	"github.com/sakif/user-accounts/internal/model"
)

// UserRepository is the Account Store: one users table keyed by username.
//
// Error contract, shared by every implementation:
//   - GetByUsername, GetByToken and Update return apperror.ErrNotFound when no row matches
//   - Create returns apperror.ErrConflict when the username is already taken;
//     the UNIQUE constraint is the authority, not a prior CountByUsername
type UserRepository interface {
	CountByUsername(ctx context.Context, username string) (int, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByToken(ctx context.Context, token string) (*model.User, error)

	// Create inserts user and fills in ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, user *model.User) error

	// Update applies upd to the row with the given username and returns the
	// row as stored afterwards.
	Update(ctx context.Context, username string, upd model.UserUpdate) (*model.User, error)
}

// Assignment is one "column = value" pair of an UPDATE statement.
type Assignment struct {
	Column string
	Value  any
}

// UpdateAssignments lists the columns upd touches, in a fixed order
// (name, password, token). Drivers render them with their own placeholder
// style and add updated_at themselves.
func UpdateAssignments(upd model.UserUpdate) []Assignment {
	var set []Assignment
	if upd.Name != nil {
		set = append(set, Assignment{Column: "name", Value: *upd.Name})
	}
	if upd.Password != nil {
		set = append(set, Assignment{Column: "password", Value: *upd.Password})
	}
	if upd.SetToken {
		// A nil *string must reach the driver as an untyped nil to store NULL.
		var token any
		if upd.Token != nil {
			token = *upd.Token
		}
		set = append(set, Assignment{Column: "token", Value: token})
	}
	return set
}
