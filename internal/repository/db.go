// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, so every
// repository works the same inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
