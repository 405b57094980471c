package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/MrSnakeDoc/linkhub/internal/config"
	"github.com/MrSnakeDoc/linkhub/internal/identity"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
	"github.com/MrSnakeDoc/linkhub/internal/store"
	"github.com/MrSnakeDoc/linkhub/internal/store/memory"
	"github.com/MrSnakeDoc/linkhub/internal/store/sqlstore"
	"github.com/MrSnakeDoc/linkhub/internal/store/supabase"
)

const supabaseTimeout = 10 * time.Second

// OpenBackend connects the configured row store. SQL backends are migrated
// when cfg.AutoMigrate is set.
func OpenBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("using the in-memory backend, profiles are lost on restart")
		return memory.New(), nil

	case config.BackendSQLite, config.BackendPostgres:
		dialect := sqlstore.SQLite
		if cfg.Backend == config.BackendPostgres {
			dialect = sqlstore.Postgres
		}
		opts := sqlstore.Options{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		}
		if cfg.Backend == config.BackendSQLite {
			// one writer at a time avoids SQLITE_BUSY under concurrent saves
			opts.MaxOpenConns = 1
		}
		s, err := sqlstore.Open(ctx, dialect, cfg.DatabaseDSN, opts)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, err
			}
			log.Info("database schema applied", logger.String("backend", dialect.Name))
		}
		return s, nil

	case config.BackendSupabase:
		s := supabase.New(cfg.SupabaseURL, cfg.SupabaseKey,
			supabase.WithHTTPClient(&http.Client{Timeout: supabaseTimeout}))
		if err := s.Ping(ctx); err != nil {
			return nil, fmt.Errorf("supabase is not reachable: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// NewVerifier builds the session verifier. An RS256 public key file wins over the shared secret.
func NewVerifier(cfg *config.Config) (*identity.Verifier, error) {
	opts := []identity.VerifierOption{identity.WithLeeway(cfg.SessionLeeway)}
	if cfg.SessionIssuer != "" {
		opts = append(opts, identity.WithIssuer(cfg.SessionIssuer))
	}
	if cfg.SessionAudience != "" {
		opts = append(opts, identity.WithAudience(cfg.SessionAudience))
	}

	if cfg.SessionPublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.SessionPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read session public key: %w", err)
		}
		return identity.NewRSAVerifier(pem, opts...)
	}
	return identity.NewHMACVerifier([]byte(cfg.SessionSecret), opts...)
}
