package pg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"stockdata-pipeline/internal/application"

	"github.com/golang-migrate/migrate/v4"
	pgdriver "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// quoteTableDDL is re-applied on every EnsureSchema, so a dropped or restored
// stock_data table comes back even when schema_migrations says it is current.
const quoteTableDDL = "migrations/0001_create_stock_data.up.sql"

const (
	pingAttempts = 30
	pingInterval = 500 * time.Millisecond
)

// ErrDirtySchema means a previous migration stopped halfway. It needs a manual
// `migrate force` before migrations can run again.
var ErrDirtySchema = errors.New("schema migrations are dirty")

// RunMigrations applies the embedded migrations through a short-lived
// database/sql handle that is closed on every path. Re-running is a no-op.
func RunMigrations(ctx context.Context, db *DB) error {
	sqldb, err := sql.Open("pgx", db.Pool.Config().ConnString())
	if err != nil {
		return fmt.Errorf("open sql db: %w", err)
	}
	defer sqldb.Close()

	if err := waitReady(ctx, sqldb); err != nil {
		return err
	}
	m, err := newMigrator(sqldb)
	if err != nil {
		return err
	}
	defer m.Close()

	var dirty migrate.ErrDirty
	switch err := m.Up(); {
	case err == nil, errors.Is(err, migrate.ErrNoChange):
		return nil
	case errors.As(err, &dirty):
		return fmt.Errorf("%w: version %d", ErrDirtySchema, dirty.Version)
	default:
		return fmt.Errorf("migrate up: %w", err)
	}
}

// waitReady pings until the server accepts connections; a fresh container
// may take a few seconds.
func waitReady(ctx context.Context, sqldb *sql.DB) error {
	var err error
	for i := 0; i < pingAttempts; i++ {
		if err = sqldb.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping db: %w", ctx.Err())
		case <-time.After(pingInterval):
		}
	}
	return fmt.Errorf("ping db: %w", err)
}

func newMigrator(sqldb *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate src: %w", err)
	}
	driver, err := pgdriver.WithInstance(sqldb, &pgdriver.Config{})
	if err != nil {
		return nil, fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate init: %w", err)
	}
	return m, nil
}

// Schema is the postgres SchemaInitializer.
type Schema struct{ db *DB }

var _ application.SchemaInitializer = (*Schema)(nil)

func NewSchema(db *DB) *Schema { return &Schema{db: db} }

// EnsureSchema runs pending migrations and then re-issues the idempotent
// stock_data DDL. The table is ensured even when migrations report dirty.
func (s *Schema) EnsureSchema(ctx context.Context) error {
	migErr := RunMigrations(ctx, s.db)
	if err := s.ensureQuoteTable(ctx); err != nil {
		return errors.Join(migErr, err)
	}
	return migErr
}

func (s *Schema) ensureQuoteTable(ctx context.Context) error {
	ddl, err := migrationsFS.ReadFile(quoteTableDDL)
	if err != nil {
		return fmt.Errorf("read stock_data ddl: %w", err)
	}
	if _, err := s.db.Pool.Exec(ctx, string(ddl)); err != nil {
		return fmt.Errorf("ensure stock_data: %w", err)
	}
	return nil
}
