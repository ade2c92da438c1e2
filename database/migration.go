package database

import (
	"database/sql"
	"embed"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/log"
)

//go:embed migrations
var schemaMigrations embed.FS

// migrationLog routes migrate's progress messages to the debug log.
type migrationLog struct{}

func (migrationLog) Printf(format string, v ...interface{}) {
	log.Debugf("db.migrate: "+strings.TrimRight(format, "\n"), v...)
}

func (migrationLog) Verbose() bool { return false }

func migrateDB(db *sql.DB) error {
	src, err := iofs.New(schemaMigrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "open migrations")
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return errors.Wrap(err, "migration driver")
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "sqlite3", dst)
	if err != nil {
		return errors.Wrap(err, "new migrator")
	}
	migrator.Log = migrationLog{}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		// schema already current
	case err != nil:
		return errors.Wrap(err, "migrate up")
	default:
		version, _, _ := migrator.Version()
		log.Infof("db.migrate: schema at version %d", version)
	}
	return nil
}
