// Package db opens the SQLite run-history metastore and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// Mode selects how a pool is tuned.
type Mode string

// Pool modes.
const (
	// ModeWrite serialises writers on one connection and takes the write
	// lock at BEGIN.
	ModeWrite Mode = "write"
	// ModeRead allows several concurrent readers and rejects writes.
	ModeRead Mode = "read"
)

const (
	busyTimeoutMillis  = "5000"
	defaultReadMaxOpen = 4
)

// OpenSQLite opens a *sql.DB pool for the SQLite file at path.
//
// Both modes use WAL journaling, a 5s busy timeout, synchronous=NORMAL and
// foreign keys. Write pools hold a single connection; read pools hold
// maxOpen connections (0 means 4) and are query-only.
func OpenSQLite(path string, mode Mode, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = defaultReadMaxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

// OpenMetastore opens the run-history file for writing and brings its schema
// up to date. The CLI and the API server each own one process-wide pool.
func OpenMetastore(path string) (*sql.DB, error) {
	db, err := OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate metastore %s: %w", path, err)
	}
	return db, nil
}

// OpenMetastoreReader brings the run-history schema up to date and returns a
// query-only pool of maxOpen connections for serving history reads.
func OpenMetastoreReader(path string, maxOpen int) (*sql.DB, error) {
	w, err := OpenMetastore(path)
	if err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close metastore writer: %w", err)
	}
	return OpenSQLite(path, ModeRead, maxOpen)
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", busyTimeoutMillis)
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	} else {
		params.Set("_query_only", "true")
	}
	return path + "?" + params.Encode()
}
