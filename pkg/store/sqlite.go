package store

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"gitlab.com/tozd/go/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at dsn and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.Errorf("opening status database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Errorf("pinging status database: %w", err)
	}
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, errors.Errorf("migrating status database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return errors.Errorf("creating migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Errorf("creating migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return errors.Errorf("creating migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or overwrites the status row for repo. When commit is nil
// an update keeps the previously stored hash and an insert gets the
// all-zeros placeholder from the schema default.
func (s *SQLiteStore) Upsert(ctx context.Context, repo string, commit *string, status Outcome) error {
	now := time.Now().UTC()

	var err error
	if commit != nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO deploy_status (repo, commit_hash, updated_at, status)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(repo) DO UPDATE SET
				commit_hash = excluded.commit_hash,
				updated_at  = excluded.updated_at,
				status      = excluded.status
		`, repo, *commit, now, int(status))
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO deploy_status (repo, updated_at, status)
			VALUES (?, ?, ?)
			ON CONFLICT(repo) DO UPDATE SET
				updated_at = excluded.updated_at,
				status     = excluded.status
		`, repo, now, int(status))
	}
	if err != nil {
		return errors.Errorf("upserting status for %q: %w", repo, err)
	}
	return nil
}

// Get returns the status row for repo, or nil when the identity is unseen.
func (s *SQLiteStore) Get(ctx context.Context, repo string) (*Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec,
		`SELECT repo, commit_hash, updated_at, status FROM deploy_status WHERE repo = ?`, repo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("reading status for %q: %w", repo, err)
	}
	return &rec, nil
}

// ListQueued returns the identities of all units whose status is queued.
func (s *SQLiteStore) ListQueued(ctx context.Context) ([]string, error) {
	var repos []string
	err := s.db.SelectContext(ctx, &repos,
		`SELECT repo FROM deploy_status WHERE status = ? ORDER BY repo`, int(OutcomeQueued))
	if err != nil {
		return nil, errors.Errorf("listing queued units: %w", err)
	}
	return repos, nil
}
