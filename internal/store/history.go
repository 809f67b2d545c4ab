package store

import (
	"context"
	"fmt"
	"time"
)

const (
	LinkConnected = "connected"
	LinkLost      = "lost"
)

// LinkEvent is one row of link history.
type LinkEvent struct {
	Link       string    `json:"link"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (db *DB) RecordLinkEvent(ctx context.Context, link, kind string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO link_events (link, kind, occurred_at) VALUES (?, ?, ?)`,
		link, kind, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: insert link event: %w", err)
	}
	return nil
}

func (db *DB) ListLinkEvents(ctx context.Context, link string, limit int) ([]LinkEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
SELECT link, kind, occurred_at FROM link_events
WHERE (? = '' OR link = ?)
ORDER BY occurred_at DESC, id DESC LIMIT ?`, link, link, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query link events: %w", err)
	}
	defer rows.Close()

	var out []LinkEvent
	for rows.Next() {
		var (
			e  LinkEvent
			ms int64
		)
		if err := rows.Scan(&e.Link, &e.Kind, &ms); err != nil {
			return nil, fmt.Errorf("store: scan link event: %w", err)
		}
		e.OccurredAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// PathUpload records one SendPath call.
type PathUpload struct {
	Link       string    `json:"link"`
	Points     int       `json:"points"`
	Checksum   uint16    `json:"checksum"`
	Attempts   int       `json:"attempts"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (db *DB) RecordPathUpload(ctx context.Context, u PathUpload) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO path_uploads (link, points, checksum, attempts, outcome, error, uploaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Link, u.Points, int64(u.Checksum), u.Attempts, u.Outcome, u.Error, u.UploadedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: insert path upload: %w", err)
	}
	return nil
}

func (db *DB) ListPathUploads(ctx context.Context, link string, limit int) ([]PathUpload, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
SELECT link, points, checksum, attempts, outcome, error, uploaded_at FROM path_uploads
WHERE (? = '' OR link = ?)
ORDER BY uploaded_at DESC, id DESC LIMIT ?`, link, link, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query path uploads: %w", err)
	}
	defer rows.Close()

	var out []PathUpload
	for rows.Next() {
		var (
			u        PathUpload
			checksum int64
			ms       int64
		)
		if err := rows.Scan(&u.Link, &u.Points, &checksum, &u.Attempts, &u.Outcome, &u.Error, &ms); err != nil {
			return nil, fmt.Errorf("store: scan path upload: %w", err)
		}
		u.Checksum = uint16(checksum)
		u.UploadedAt = time.UnixMilli(ms).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}
