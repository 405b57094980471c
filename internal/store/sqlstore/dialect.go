package sqlstore

import (
	sq "github.com/Masterminds/squirrel"
)

// Dialect captures what differs between the SQL engines LinkHub runs on.
type Dialect struct {
	Name        string
	Driver      string
	Placeholder sq.PlaceholderFormat
	Schema      string
}

// Postgres targets a self-hosted PostgreSQL (or the database behind Supabase) through lib/pq.
var Postgres = Dialect{
	Name:        "postgres",
	Driver:      "postgres",
	Placeholder: sq.Dollar,
	Schema: `CREATE TABLE IF NOT EXISTS profiles (
    username   TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    links      JSONB NOT NULL DEFAULT '[]'::jsonb,
    theme      TEXT NOT NULL DEFAULT 'light',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS profiles_user_id_created_at_idx ON profiles (user_id, created_at DESC);`,
}

// SQLite targets an embedded database file through modernc.org/sqlite.
var SQLite = Dialect{
	Name:        "sqlite",
	Driver:      "sqlite",
	Placeholder: sq.Question,
	Schema: `CREATE TABLE IF NOT EXISTS profiles (
    username   TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    links      TEXT NOT NULL DEFAULT '[]',
    theme      TEXT NOT NULL DEFAULT 'light',
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS profiles_user_id_created_at_idx ON profiles (user_id, created_at DESC);`,
}
