package tiles

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/danmuck/boatlink/internal/testutil/testlog"
)

func gz(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// writeMBTiles creates a file with a gzipped tile at TMS 2/1/0 and a raw tile
// at TMS 1/0/1.
func writeMBTiles(t *testing.T, format string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "base.mbtiles")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE metadata (name TEXT, value TEXT)`,
		`CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
	if format != "" {
		if _, err := db.Exec(`INSERT INTO metadata (name, value) VALUES ('format', ?)`, format); err != nil {
			t.Fatalf("metadata: %v", err)
		}
	}
	if _, err := db.Exec(`INSERT INTO tiles VALUES (2, 1, 0, ?)`, gz(t, []byte("vector tile"))); err != nil {
		t.Fatalf("tile: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO tiles VALUES (1, 0, 1, ?)`, []byte("raw tile")); err != nil {
		t.Fatalf("tile: %v", err)
	}
	return path
}

func TestTileFlipsRowAndInflates(t *testing.T) {
	testlog.Start(t)
	src, err := Open(writeMBTiles(t, "pbf"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	if src.ContentType() != "application/x-protobuf" {
		t.Fatalf("unexpected content type %q", src.ContentType())
	}
	got, err := src.Tile(context.Background(), 2, 1, 3)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	if string(got) != "vector tile" {
		t.Fatalf("unexpected tile %q", got)
	}
	got, err = src.Tile(context.Background(), 1, 0, 0)
	if err != nil {
		t.Fatalf("raw tile: %v", err)
	}
	if string(got) != "raw tile" {
		t.Fatalf("unexpected raw tile %q", got)
	}
}

func TestTileErrors(t *testing.T) {
	testlog.Start(t)
	src, err := Open(writeMBTiles(t, ""))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	if src.ContentType() != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", src.ContentType())
	}
	if _, err := src.Tile(context.Background(), 2, 1, 0); !errors.Is(err, ErrTileNotFound) {
		t.Fatalf("expected ErrTileNotFound, got %v", err)
	}
	for _, c := range [][3]int{{-1, 0, 0}, {25, 0, 0}, {2, 4, 0}, {2, 0, -1}} {
		if _, err := src.Tile(context.Background(), c[0], c[1], c[2]); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("%v: expected ErrOutOfRange, got %v", c, err)
		}
	}
}

func TestOpenMissingSchema(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "empty.mbtiles")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE other (id INTEGER)`); err != nil {
		t.Fatalf("schema: %v", err)
	}
	_ = db.Close()

	if _, err := Open(path); err == nil {
		t.Fatalf("expected metadata error")
	}
}
