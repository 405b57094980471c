// Package sqlstore implements the profiles row store on database/sql.
// The same query code serves PostgreSQL and SQLite; see Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/store"
)

var columns = []string{"username", "user_id", "links", "theme", "created_at"}

// Store is a store.Backend on top of a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to dsn with the dialect's driver and pings it.
func Open(ctx context.Context, d Dialect, dsn string, opts Options) (*Store, error) {
	db, err := sql.Open(d.Driver, strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.Name, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", d.Name, err)
	}
	return New(db, d), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{
		db:      db,
		dialect: d,
		sb:      sq.StatementBuilder.PlaceholderFormat(d.Placeholder),
		now:     time.Now,
	}
}

func (s *Store) Name() string { return s.dialect.Name }

// Migrate creates the profiles table and its owner index if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema); err != nil {
		return fmt.Errorf("failed to apply %s schema: %w", s.dialect.Name, err)
	}
	return nil
}

func (s *Store) SelectByUsername(ctx context.Context, username string) ([]store.Row, error) {
	q := s.sb.Select(columns...).
		From(store.Table).
		Where(sq.Eq{"username": username}).
		Limit(1)
	return s.query(ctx, q)
}

func (s *Store) SelectByUserID(ctx context.Context, userID string) ([]store.Row, error) {
	q := s.sb.Select(columns...).
		From(store.Table).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	return s.query(ctx, q)
}

func (s *Store) Insert(ctx context.Context, row store.Row) error {
	links, err := encodeLinks(row.Links)
	if err != nil {
		return err
	}
	createdAt := row.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err = s.sb.Insert(store.Table).
		Columns(columns...).
		Values(row.Username, row.UserID, links, string(row.Theme), createdAt.UTC()).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to insert profile %s: %w", row.Username, err)
	}
	return nil
}

func (s *Store) UpdateByUsername(ctx context.Context, username, userID string, patch store.Patch) error {
	if patch.Empty() {
		return nil
	}

	set := make(map[string]interface{}, 2)
	if patch.Links != nil {
		links, err := encodeLinks(*patch.Links)
		if err != nil {
			return err
		}
		set["links"] = links
	}
	if patch.Theme != nil {
		set["theme"] = string(*patch.Theme)
	}

	res, err := s.sb.Update(store.Table).
		SetMap(set).
		Where(sq.Eq{"username": username, "user_id": userID}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return store.ErrNoRows
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) query(ctx context.Context, q sq.SelectBuilder) ([]store.Row, error) {
	rows, err := q.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make([]store.Row, 0, 1)
	for rows.Next() {
		var (
			row     store.Row
			links   []byte
			theme   string
			created sqlTime
		)
		if err := rows.Scan(&row.Username, &row.UserID, &links, &theme, &created); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		if err := json.Unmarshal(links, &row.Links); err != nil {
			return nil, fmt.Errorf("failed to decode links of %s: %w", row.Username, err)
		}
		row.Theme = domain.Theme(theme)
		row.CreatedAt = created.Time
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return out, nil
}

func encodeLinks(links []domain.LinkRecord) (string, error) {
	if links == nil {
		links = []domain.LinkRecord{}
	}
	data, err := json.Marshal(links)
	if err != nil {
		return "", fmt.Errorf("failed to encode links: %w", err)
	}
	return string(data), nil
}

// SQLite primary-key and unique constraint result codes.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqlTime scans the created_at column whichever way the driver reports it.
type sqlTime struct {
	Time time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *sqlTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case nil:
		t.Time = time.Time{}
		return nil
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported created_at type %T", src)
	}
}

func (t *sqlTime) parse(s string) error {
	s = strings.TrimSpace(s)
	// Go's time.Time String() form, as written by some drivers.
	if i := strings.Index(s, " m="); i >= 0 {
		s = s[:i]
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	if parsed, err := time.Parse("2006-01-02 15:04:05.999999999 -0700 MST", s); err == nil {
		t.Time = parsed
		return nil
	}
	return fmt.Errorf("unparseable created_at %q", s)
}
