// Package db opens the SQLite database that stores batch runs and applies
// its embedded schema migrations.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// Pragmas are applied to every pooled connection through the DSN, so settings
// such as foreign_keys hold regardless of which connection runs a query.
var Pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(ON)",
}

type DB struct {
	*sql.DB
}

// DSN returns the modernc.org/sqlite data source name for path with
// Pragmas attached.
func DSN(path string) string {
	q := url.Values{}
	for _, p := range Pragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + q.Encode()
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema version.
func Open(path string) (*DB, error) {
	db, err := OpenWithoutMigrations(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(Migrations()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenWithoutMigrations opens the database at path without touching its
// schema.
func OpenWithoutMigrations(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{sqlDB}, nil
}
