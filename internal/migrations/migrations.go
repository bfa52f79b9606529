package migrations

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

//go:embed sql
var files embed.FS

// Supported drivers.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
)

// Up applies every pending migration for driver. The dsn must allow multi
// statement execution for MySQL.
func Up(driver, dsn string, log zerolog.Logger) error {
	log = log.With().Str("component", "migrations").Str("driver", driver).Logger()

	m, db, err := open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	before, _, _ := m.Version()
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Uint("version", before).Msg("schema is up to date")
			return nil
		}
		return eris.Wrap(err, "apply migrations")
	}

	after, dirty, err := m.Version()
	if err != nil {
		return eris.Wrap(err, "read schema version")
	}
	log.Info().Uint("from", before).Uint("to", after).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}

func open(driver, dsn string) (*migrate.Migrate, *sql.DB, error) {
	src, err := iofs.New(files, "sql/"+driver)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "load %s migrations", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, eris.Wrap(err, "open migration connection")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, eris.Wrap(err, "ping migration connection")
	}

	var m *migrate.Migrate
	switch driver {
	case MySQL:
		target, derr := migratemysql.WithInstance(db, &migratemysql.Config{})
		if derr != nil {
			db.Close()
			return nil, nil, eris.Wrap(derr, "init mysql migration driver")
		}
		m, err = migrate.NewWithInstance("iofs", src, driver, target)
	case Postgres:
		target, derr := postgres.WithInstance(db, &postgres.Config{})
		if derr != nil {
			db.Close()
			return nil, nil, eris.Wrap(derr, "init postgres migration driver")
		}
		m, err = migrate.NewWithInstance("iofs", src, driver, target)
	default:
		db.Close()
		return nil, nil, eris.Errorf("no migrations for driver %q", driver)
	}
	if err != nil {
		db.Close()
		return nil, nil, eris.Wrap(err, "create migrator")
	}
	return m, db, nil
}
