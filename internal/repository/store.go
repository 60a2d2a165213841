package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/inspection-verifier/internal/common"
)

// Store is the document repository chosen by configuration plus the handles
// it owns.
type Store struct {
	Repo    DocumentRepository
	DB      *sql.DB
	Pool    *pgxpool.Pool
	Dialect Dialect
	logger  *slog.Logger
}

// Backend names the storage in use, for logs.
func (s *Store) Backend() string {
	if s.DB == nil {
		return "memory"
	}
	return string(s.Dialect)
}

func (s *Store) Close() {
	if s.DB == nil {
		return
	}
	Close(s.DB, s.Pool, s.logger)
}

// OpenStore picks Postgres when a DSN is set, else SQLite when a path is set
// (or inmem asks for ":memory:"), else the in-process repository. SQL
// backends are migrated before use.
func OpenStore(ctx context.Context, cfg common.DatabaseConfig, inmem bool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st := &Store{logger: logger}

	switch {
	case cfg.DSN != "" && !inmem:
		db, pool, err := OpenPostgres(ctx, Config{
			DSN:              cfg.DSN,
			MaxConns:         cfg.MaxConns,
			MinConns:         cfg.MinConns,
			MaxConnLifetime:  cfg.MaxConnLifetime,
			MaxConnIdleTime:  cfg.MaxConnIdleTime,
			DialTimeout:      cfg.DialTimeout,
			StatementTimeout: cfg.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		st.DB, st.Pool, st.Dialect = db, pool, DialectPostgres
	case cfg.SQLitePath != "" || inmem:
		path := cfg.SQLitePath
		if inmem {
			path = ":memory:"
		}
		db, err := OpenSQLite(ctx, path, logger)
		if err != nil {
			return nil, err
		}
		st.DB, st.Dialect = db, DialectSQLite
	default:
		logger.Info("no database configured, keeping documents in memory")
		st.Repo = NewMemoryRepository()
		return st, nil
	}

	if err := HealthCheck(ctx, st.DB, 5*time.Second, logger); err != nil {
		st.Close()
		return nil, err
	}
	if err := RunMigrations(ctx, st.DB, st.Dialect); err != nil {
		st.Close()
		return nil, err
	}
	st.Repo = NewSQLRepository(st.DB, st.Dialect, logger)
	logger.Info("document store ready", "backend", st.Backend())
	return st, nil
}
