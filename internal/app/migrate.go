package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/linkhub/internal/config"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
	"github.com/MrSnakeDoc/linkhub/internal/store/sqlstore"
	redisstore "github.com/MrSnakeDoc/linkhub/internal/store/redis"
)

// ErrNoSchema is returned by Migrate for backends whose schema LinkHub does not manage.
var ErrNoSchema = errors.New("backend schema is not managed by linkhub")

// Migrate applies the SQL schema and, when Redis is configured, drops every
// cached profile row so no entry predates the migration.
func Migrate(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	var dialect sqlstore.Dialect
	switch cfg.Backend {
	case config.BackendSQLite:
		dialect = sqlstore.SQLite
	case config.BackendPostgres:
		dialect = sqlstore.Postgres
	default:
		return fmt.Errorf("%w: %s (use `linkhub migrate --print` and apply it by hand)", ErrNoSchema, cfg.Backend)
	}

	s, err := sqlstore.Open(ctx, dialect, cfg.DatabaseDSN, sqlstore.Options{MaxOpenConns: 1})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.Migrate(ctx); err != nil {
		return err
	}
	log.Info("database schema applied", logger.String("backend", dialect.Name))

	client, err := connectRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	defer func() { _ = client.Close() }()

	if err := redisstore.NewCache(s, client, cfg.CacheTTL, log, nil).Flush(ctx); err != nil {
		return err
	}
	log.Info("profile cache flushed")
	return nil
}

// Schema returns the DDL LinkHub expects for backend.
func Schema(backend string) (string, error) {
	switch backend {
	case config.BackendSQLite:
		return sqlstore.SQLite.Schema, nil
	case config.BackendPostgres, config.BackendSupabase:
		return sqlstore.Postgres.Schema, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoSchema, backend)
}
