package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrPathNotFound = errors.New("store: path not found")

// SavedPath is a named path document kept for later upload or editing.
// Document holds the GeoJSON FeatureCollection as saved.
type SavedPath struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Points   int       `json:"points"`
	Document []byte    `json:"-"`
	SavedAt  time.Time `json:"saved_at"`
}

// SavePath stores p under p.Name, replacing any earlier document.
func (db *DB) SavePath(ctx context.Context, p SavedPath) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO paths (name, version, points, document, saved_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    version = excluded.version,
    points = excluded.points,
    document = excluded.document,
    saved_at = excluded.saved_at`,
		p.Name, p.Version, p.Points, p.Document, p.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: save path %s: %w", p.Name, err)
	}
	return nil
}

func (db *DB) LoadPath(ctx context.Context, name string) (SavedPath, error) {
	var (
		p  SavedPath
		ms int64
	)
	err := db.QueryRowContext(ctx,
		`SELECT name, version, points, document, saved_at FROM paths WHERE name = ?`, name,
	).Scan(&p.Name, &p.Version, &p.Points, &p.Document, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedPath{}, fmt.Errorf("%w: %s", ErrPathNotFound, name)
	}
	if err != nil {
		return SavedPath{}, fmt.Errorf("store: load path %s: %w", name, err)
	}
	p.SavedAt = time.UnixMilli(ms).UTC()
	return p, nil
}
