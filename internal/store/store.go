// Package store persists telemetry, link history and saved paths in SQLite
// (WAL mode).
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps *sql.DB with domain helpers.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the SQLite file at path and applies migrations.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000", path)
	raw, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := raw.Ping(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	// One writer; WAL still allows concurrent readers.
	raw.SetMaxOpenConns(1)

	db := &DB{raw}
	if err := db.Migrate(context.Background()); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range []string{ddlTelemetry, ddlLinkEvents, ddlPathUploads, ddlPaths} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

const ddlTelemetry = `
CREATE TABLE IF NOT EXISTS telemetry (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    link        TEXT    NOT NULL,
    version     TEXT    NOT NULL DEFAULT '',
    temperature REAL    NOT NULL,
    depth       REAL    NOT NULL,
    layer       INTEGER NOT NULL,
    measured_at INTEGER NOT NULL,          -- Unix nanoseconds
    latitude    REAL    NOT NULL,
    longitude   REAL    NOT NULL,
    received_at INTEGER NOT NULL           -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_telemetry_link_measured ON telemetry (link, measured_at DESC);
`

const ddlLinkEvents = `
CREATE TABLE IF NOT EXISTS link_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    link        TEXT    NOT NULL,
    kind        TEXT    NOT NULL,          -- 'connected' | 'lost'
    occurred_at INTEGER NOT NULL           -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_link_events_link ON link_events (link, occurred_at DESC);
`

const ddlPathUploads = `
CREATE TABLE IF NOT EXISTS path_uploads (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    link        TEXT    NOT NULL,
    points      INTEGER NOT NULL,
    checksum    INTEGER NOT NULL,          -- CRC-16/MODBUS of the encoded path
    attempts    INTEGER NOT NULL,
    outcome     TEXT    NOT NULL,          -- 'acknowledged' | 'failed'
    error       TEXT    NOT NULL DEFAULT '',
    uploaded_at INTEGER NOT NULL           -- Unix milliseconds
);
`

const ddlPaths = `
CREATE TABLE IF NOT EXISTS paths (
    name        TEXT    PRIMARY KEY,
    version     TEXT    NOT NULL,
    points      INTEGER NOT NULL,          -- sample points in the MultiPoint
    document    BLOB    NOT NULL,          -- GeoJSON FeatureCollection
    saved_at    INTEGER NOT NULL           -- Unix milliseconds
);
`
