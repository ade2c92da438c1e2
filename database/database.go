package database

import (
	"database/sql"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Open connects to the SQLite3 file at path and brings its schema up to date.
func Open(path string) (db *sql.DB, err error) {
	// foreign keys must be enabled on every pooled connection, so it goes in the DSN
	dsn := "file:" + path + "?" + url.Values{
		"_foreign_keys": {"on"},
		"_busy_timeout": {"5000"},
	}.Encode()

	db, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate db")
	}

	return
}
