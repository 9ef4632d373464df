package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/user-accounts/internal/apperror"
	"github.com/sakif/user-accounts/internal/model"
	"github.com/sakif/user-accounts/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const selectUser = `SELECT id, username, password, name, token, created_at, updated_at FROM users`

// CountByUsername returns how many rows hold username (0 or 1, given the
// UNIQUE constraint).
func (db *DB) CountByUsername(ctx context.Context, username string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, username,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return count, nil
}

// GetByUsername retrieves a user by username.
// Returns apperror.ErrNotFound if no user exists with that username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, selectUser+` WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("sqlite: getting user by username: %w", err)
	}
	return u, nil
}

// GetByToken retrieves the user currently holding token.
// Returns apperror.ErrNotFound if nobody does (never issued, replaced or logged out).
func (db *DB) GetByToken(ctx context.Context, token string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, selectUser+` WHERE token = ?`, token)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("sqlite: getting user by token: %w", err)
	}
	return u, nil
}

// Create inserts a new user, generating its ID and timestamps.
//
// The UNIQUE constraint on username is what actually prevents duplicates:
// two concurrent registrations can both pass a COUNT check, but only one
// INSERT succeeds. The loser gets apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password, name, token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Password,
		user.Name,
		nullString(user.Token),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", "Username already exists")
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// Update applies a partial update to the user with the given username and
// returns the stored row. Columns not named in upd are left untouched.
func (db *DB) Update(ctx context.Context, username string, upd model.UserUpdate) (*model.User, error) {
	set := repository.UpdateAssignments(upd)

	clauses := make([]string, 0, len(set)+1)
	args := make([]any, 0, len(set)+2)
	for _, a := range set {
		clauses = append(clauses, a.Column+" = ?")
		args = append(args, a.Value)
	}
	clauses = append(clauses, "updated_at = ?")
	args = append(args, time.Now().UTC(), username)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(clauses, ", ")+` WHERE username = ?`,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("token", "token already in use")
		}
		return nil, fmt.Errorf("sqlite: updating user: %w", err)
	}

	// RowsAffected tells us if the WHERE clause matched anything.
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("user")
	}

	return db.GetByUsername(ctx, username)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u     model.User
		token sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Password,
		&u.Name,
		&token,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		u.Token = &token.String
	}
	return &u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
// The driver may return the extended code (SQLITE_CONSTRAINT_UNIQUE) or just
// the primary SQLITE_CONSTRAINT, so both are checked; the message tells a
// UNIQUE failure apart from NOT NULL or CHECK.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
