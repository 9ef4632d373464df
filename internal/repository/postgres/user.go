package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/xid"

	"github.com/sakif/user-accounts/internal/apperror"
	"github.com/sakif/user-accounts/internal/model"
	"github.com/sakif/user-accounts/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// uniqueViolation is SQLSTATE 23505.
const uniqueViolation = "23505"

const selectUser = `SELECT id, username, password, name, token, created_at, updated_at FROM users`

func (db *DB) CountByUsername(ctx context.Context, username string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = $1`, username,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: counting users: %w", err)
	}
	return count, nil
}

func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getOne(ctx, selectUser+` WHERE username = $1`, username)
}

func (db *DB) GetByToken(ctx context.Context, token string) (*model.User, error) {
	return db.getOne(ctx, selectUser+` WHERE token = $1`, token)
}

func (db *DB) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var (
		u     model.User
		token sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Password, &u.Name, &token, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user")
		}
		return nil, fmt.Errorf("postgres: getting user: %w", err)
	}
	if token.Valid {
		u.Token = &token.String
	}
	return &u, nil
}

// Create inserts user. A duplicate username surfaces as apperror.ErrConflict
// from the users_username_key constraint.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	var token any
	if user.Token != nil {
		token = *user.Token
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password, name, token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Password, user.Name, token, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", "Username already exists")
		}
		return fmt.Errorf("postgres: inserting user: %w", err)
	}
	return nil
}

// Update applies upd and returns the row as stored, in one round trip.
func (db *DB) Update(ctx context.Context, username string, upd model.UserUpdate) (*model.User, error) {
	set := repository.UpdateAssignments(upd)

	clauses := make([]string, 0, len(set)+1)
	args := make([]any, 0, len(set)+2)
	for _, a := range set {
		args = append(args, a.Value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", a.Column, len(args)))
	}
	args = append(args, time.Now().UTC())
	clauses = append(clauses, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, username)

	query := `UPDATE users SET ` + strings.Join(clauses, ", ") +
		fmt.Sprintf(` WHERE username = $%d`, len(args)) +
		` RETURNING id, username, password, name, token, created_at, updated_at`

	var (
		u     model.User
		token sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.Password, &u.Name, &token, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user")
		}
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("token", "token already in use")
		}
		return nil, fmt.Errorf("postgres: updating user: %w", err)
	}
	if token.Valid {
		u.Token = &token.String
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
