package postgres

import (
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// Migrator applies the embedded schema migrations. It owns a dedicated
// connection pool that is released by Close.
type Migrator struct {
	m      *migrate.Migrate
	logger logging.Logger
}

// NewMigrator opens a migration session against the database in cfg.
func NewMigrator(cfg config.DatabaseConfig, log logging.Logger) (*Migrator, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	db, err := sqlOpen(driverName, buildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to open migration connection")
	}
	m, err := newMigrate(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Migrator{m: m, logger: log.Named("migrator")}, nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load embedded migrations")
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create migrate instance")
	}
	return m, nil
}

// Up applies every pending migration. Nothing to apply is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mg.m.Version()
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations").
			WithDetail(versionDetail(version))
	}
	version, dirty, err := mg.Status()
	if err != nil {
		mg.logger.Warn("Failed to get migration version", logging.Err(err))
	}
	mg.logger.Info("Database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Rollback reverts the given number of migrations.
func (mg *Migrator) Rollback(steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "steps must be greater than 0, got %d", steps)
	}
	if err := mg.m.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeValidation, "no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations")
	}
	return nil
}

// Status returns the applied version and whether the last migration failed
// half way. A database with no migrations reports version 0.
func (mg *Migrator) Status() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get migration version")
	}
	return version, dirty, nil
}

// Force marks the schema as being at version without running anything.
// It is the manual recovery path for a dirty schema.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to force migration version").
			WithDetail(versionDetail(uint(version)))
	}
	return nil
}

// Close releases the migration session and its connection pool.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return errors.Wrap(srcErr, errors.ErrCodeInternal, "close migration source")
	}
	if dbErr != nil {
		return errors.Wrap(dbErr, errors.ErrCodeDatabaseError, "close migration database")
	}
	return nil
}

func versionDetail(v uint) string {
	return fmt.Sprintf("version %d", v)
}
