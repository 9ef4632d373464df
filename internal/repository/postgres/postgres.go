// Package postgres implements the repository interfaces on PostgreSQL through
// pgx's database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sakif/user-accounts/internal/repository/migrations"
)

// DB wraps a pgx-backed sql.DB pool. It implements repository.UserRepository.
type DB struct {
	conn *sql.DB
}

// New connects to dsn, verifies the connection and applies pending migrations.
func New(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	if err := migrations.Up(ctx, conn, goose.DialectPostgres); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return NewFromConn(conn), nil
}

// NewFromConn wraps an already open pool without running migrations.
func NewFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
