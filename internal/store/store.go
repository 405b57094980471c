// Package store defines the row-store contract behind the profiles table.
// Backends live in sub-packages: memory, sqlstore, supabase, and the redis cache decorator.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
)

// Table is the single table LinkHub reads and writes.
const Table = "profiles"

var (
	// ErrDuplicate is returned by Insert when the username is already present.
	ErrDuplicate = errors.New("duplicate key")

	// ErrNoRows is returned by UpdateByUsername when no row matched the filter.
	ErrNoRows = errors.New("no rows matched")
)

// Row mirrors one row of the profiles table.
type Row struct {
	Username  string              `json:"username"`
	UserID    string              `json:"user_id"`
	Links     []domain.LinkRecord `json:"links"`
	Theme     domain.Theme        `json:"theme"`
	CreatedAt time.Time           `json:"created_at"`
}

// Patch is a partial column set for UpdateByUsername. Nil columns are not written.
type Patch struct {
	Links *[]domain.LinkRecord
	Theme *domain.Theme
}

// Empty reports whether the patch writes nothing.
func (p Patch) Empty() bool { return p.Links == nil && p.Theme == nil }

// Backend is the persistence collaborator.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// SelectByUsername returns 0 or 1 rows.
	SelectByUsername(ctx context.Context, username string) ([]Row, error)

	// SelectByUserID returns the rows of one owner, newest first.
	SelectByUserID(ctx context.Context, userID string) ([]Row, error)

	// Insert writes one row. It returns ErrDuplicate if the username exists.
	Insert(ctx context.Context, row Row) error

	// UpdateByUsername writes patch to the row matching both username and userID.
	// It returns ErrNoRows when nothing matched.
	UpdateByUsername(ctx context.Context, username, userID string, patch Patch) error

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// FreshReader is implemented by decorators that serve reads from a copy, such
// as the redis cache. SelectByUsernameFresh always reads the row of record.
type FreshReader interface {
	SelectByUsernameFresh(ctx context.Context, username string) ([]Row, error)
}

// SelectFresh reads username from the row of record, bypassing any cache in
// front of b. Reads whose result is written back must use it.
func SelectFresh(ctx context.Context, b Backend, username string) ([]Row, error) {
	if f, ok := b.(FreshReader); ok {
		return f.SelectByUsernameFresh(ctx, username)
	}
	return b.SelectByUsername(ctx, username)
}

// Apply returns row with patch written into it.
func (p Patch) Apply(row Row) Row {
	if p.Links != nil {
		row.Links = append([]domain.LinkRecord(nil), (*p.Links)...)
	}
	if p.Theme != nil {
		row.Theme = *p.Theme
	}
	return row
}
