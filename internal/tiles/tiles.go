// Package tiles serves map tiles out of an MBTiles file for the UI's base
// map.
package tiles

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrTileNotFound = errors.New("tiles: tile not found")
	ErrOutOfRange   = errors.New("tiles: coordinates out of range")
)

const maxZoom = 24

// Source is a read-only MBTiles database.
type Source struct {
	db     *sql.DB
	format string
}

// Open opens path read-only and reads the "format" metadata entry when
// present.
func Open(path string) (*Source, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("tiles: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tiles: open %s: %w", path, err)
	}

	s := &Source{db: db}
	err = db.QueryRow(`SELECT value FROM metadata WHERE name = 'format'`).Scan(&s.format)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = db.Close()
		return nil, fmt.Errorf("tiles: read metadata: %w", err)
	}
	return s, nil
}

func (s *Source) Close() error {
	return s.db.Close()
}

// Format is the MBTiles "format" metadata value, such as "pbf" or "png".
func (s *Source) Format() string {
	return s.format
}

func (s *Source) ContentType() string {
	switch s.format {
	case "pbf", "mvt":
		return "application/x-protobuf"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Tile returns the tile at XYZ coordinates. MBTiles stores rows in TMS order,
// so y is flipped. Gzipped tile data is inflated.
func (s *Source) Tile(ctx context.Context, z, x, y int) ([]byte, error) {
	if z < 0 || z > maxZoom {
		return nil, ErrOutOfRange
	}
	n := 1 << z
	if x < 0 || x >= n || y < 0 || y >= n {
		return nil, ErrOutOfRange
	}

	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ? LIMIT 1`,
		z, x, n-1-y,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tiles: query %d/%d/%d: %w", z, x, y, err)
	}
	return inflate(data)
}

func inflate(b []byte) ([]byte, error) {
	if len(b) < 2 || b[0] != 0x1f || b[1] != 0x8b {
		return b, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("tiles: gzip: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("tiles: gzip: %w", err)
	}
	return out, nil
}
