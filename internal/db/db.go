// Package db persists detections and tracking runs in SQLite. The schema
// is owned by the embedded migrations; OpenDB never creates tables itself.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/lagrangian.tracks/internal/timeutil"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MigrationsFS returns the embedded migration files rooted at the
// migrations directory.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return sub
}

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// OpenDB opens the database at path and applies connection pragmas
// without touching the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	// A single connection keeps transactions serialised on one handle.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &DB{DB: sqlDB, clock: timeutil.RealClock{}}, nil
}

// NewDB opens the database at path and brings the schema up to date.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SetClock replaces the clock used to timestamp inserted records.
func (db *DB) SetClock(c timeutil.Clock) {
	db.clock = c
}

func (db *DB) now() time.Time {
	return db.clock.Now()
}

// dsn attaches the connection pragmas so every pooled connection gets them.
func dsn(path string) string {
	pragmas := []string{"journal_mode(WAL)", "busy_timeout(5000)", "foreign_keys(1)"}
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}
