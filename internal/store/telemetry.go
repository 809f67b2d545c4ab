package store

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/boatlink/internal/protocol/payload"
)

// Reading is one stored telemetry feature.
type Reading struct {
	ID         int64
	Link       string
	Version    string
	Feature    payload.Feature
	ReceivedAt time.Time
}

// InsertTelemetry stores every feature of data in one transaction.
func (db *DB) InsertTelemetry(ctx context.Context, link string, data payload.BoatData, receivedAt time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO telemetry (link, version, temperature, depth, layer, measured_at, latitude, longitude, received_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare telemetry: %w", err)
	}
	defer stmt.Close()

	for i, f := range data.Features {
		if _, err := stmt.ExecContext(ctx,
			link, data.Version, f.Temperature, f.Depth, int32(f.Layer),
			f.Time.UnixNano(), f.Geometry.Latitude, f.Geometry.Longitude,
			receivedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("store: insert telemetry %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// TelemetryFilter narrows ListTelemetry. Zero values mean no constraint.
type TelemetryFilter struct {
	Link  string
	Since time.Time
	Limit int
}

// ListTelemetry returns readings newest first.
func (db *DB) ListTelemetry(ctx context.Context, f TelemetryFilter) ([]Reading, error) {
	query := `
SELECT id, link, version, temperature, depth, layer, measured_at, latitude, longitude, received_at
FROM telemetry WHERE 1=1`
	var args []any
	if f.Link != "" {
		query += ` AND link = ?`
		args = append(args, f.Link)
	}
	if !f.Since.IsZero() {
		query += ` AND measured_at >= ?`
		args = append(args, f.Since.UnixNano())
	}
	query += ` ORDER BY measured_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query telemetry: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var (
			r          Reading
			layer      int32
			measuredAt int64
			receivedAt int64
		)
		if err := rows.Scan(&r.ID, &r.Link, &r.Version,
			&r.Feature.Temperature, &r.Feature.Depth, &layer, &measuredAt,
			&r.Feature.Geometry.Latitude, &r.Feature.Geometry.Longitude, &receivedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan telemetry: %w", err)
		}
		r.Feature.Layer = payload.Layer(layer)
		r.Feature.Time = time.Unix(0, measuredAt).UTC()
		r.ReceivedAt = time.UnixMilli(receivedAt).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
