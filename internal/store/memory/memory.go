package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkhub/internal/store"
)

// Store keeps profile rows in process memory.
// Used for local development and tests; contents are lost on restart.
type Store struct {
	mu   sync.RWMutex
	rows map[string]store.Row // username -> row
	now  func() time.Time
}

// New creates an empty memory store.
func New() *Store {
	return &Store{
		rows: make(map[string]store.Row),
		now:  time.Now,
	}
}

func (s *Store) Name() string { return "memory" }

// SelectByUsername returns the row for username, if any.
func (s *Store) SelectByUsername(_ context.Context, username string) ([]store.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[username]
	if !ok {
		return []store.Row{}, nil
	}
	return []store.Row{cloneRow(row)}, nil
}

// SelectByUserID returns every row owned by userID, newest first.
func (s *Store) SelectByUserID(_ context.Context, userID string) ([]store.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]store.Row, 0)
	for _, row := range s.rows {
		if row.UserID == userID {
			rows = append(rows, cloneRow(row))
		}
	}
	slices.SortFunc(rows, func(a, b store.Row) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return rows, nil
}

// Insert adds a row. The username acts as primary key.
func (s *Store) Insert(_ context.Context, row store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[row.Username]; exists {
		return store.ErrDuplicate
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	s.rows[row.Username] = cloneRow(row)
	return nil
}

// UpdateByUsername applies patch to the row owned by userID.
func (s *Store) UpdateByUsername(_ context.Context, username, userID string, patch store.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[username]
	if !ok || row.UserID != userID {
		return store.ErrNoRows
	}
	s.rows[username] = patch.Apply(row)
	return nil
}

// Count returns the number of stored rows.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rows)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneRow(r store.Row) store.Row {
	r.Links = slices.Clone(r.Links)
	return r
}
