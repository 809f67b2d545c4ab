package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/testutil/testlog"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "boatlink.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	testlog.Start(t)
	db := openTest(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestTelemetryRoundTrip(t *testing.T) {
	testlog.Start(t)
	db := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 7, 2, 10, 0, 0, 987654321, time.UTC)

	data := payload.NewBoatData([]payload.Feature{
		{Temperature: 18.25, Depth: 0.5, Layer: payload.LayerSurface, Time: base, Geometry: payload.LatLng{Latitude: 60.1, Longitude: 24.9}},
		{Temperature: 9.5, Depth: 40, Layer: payload.LayerSeaBed, Time: base.Add(time.Minute), Geometry: payload.LatLng{Latitude: 60.2, Longitude: 24.8}},
	})
	if err := db.InsertTelemetry(ctx, "A", data, base.Add(2*time.Minute)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.InsertTelemetry(ctx, "B", payload.NewBoatData(data.Features[:1]), base); err != nil {
		t.Fatalf("insert: %v", err)
	}

	all, err := db.ListTelemetry(ctx, TelemetryFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(all))
	}

	got, err := db.ListTelemetry(ctx, TelemetryFilter{Link: "A", Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(got))
	}
	newest := got[0]
	if newest.Link != "A" || newest.Version != data.Version {
		t.Fatalf("unexpected reading: %+v", newest)
	}
	if !newest.Feature.Time.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected newest first with ns precision, got %v", newest.Feature.Time)
	}
	if newest.Feature.Layer != payload.LayerSeaBed || newest.Feature.Depth != 40 {
		t.Fatalf("unexpected feature: %+v", newest.Feature)
	}

	since, err := db.ListTelemetry(ctx, TelemetryFilter{Since: base.Add(30 * time.Second)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(since) != 1 {
		t.Fatalf("expected 1 reading after since, got %d", len(since))
	}
}

func TestLinkEventsAndPathUploads(t *testing.T) {
	testlog.Start(t)
	db := openTest(t)
	ctx := context.Background()
	now := time.Now()

	if err := db.RecordLinkEvent(ctx, "A", LinkConnected, now); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := db.RecordLinkEvent(ctx, "A", LinkLost, now.Add(time.Second)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := db.RecordLinkEvent(ctx, "B", LinkConnected, now); err != nil {
		t.Fatalf("record: %v", err)
	}
	events, err := db.ListLinkEvents(ctx, "A", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].Kind != LinkLost {
		t.Fatalf("unexpected events: %+v", events)
	}

	up := PathUpload{Link: "A", Points: 4, Checksum: 0xBEEF, Attempts: 3, Outcome: "acknowledged", UploadedAt: now}
	if err := db.RecordPathUpload(ctx, up); err != nil {
		t.Fatalf("record upload: %v", err)
	}
	uploads, err := db.ListPathUploads(ctx, "", 10)
	if err != nil {
		t.Fatalf("list uploads: %v", err)
	}
	if len(uploads) != 1 || uploads[0].Checksum != 0xBEEF || uploads[0].Attempts != 3 {
		t.Fatalf("unexpected uploads: %+v", uploads)
	}
}

func TestSavePathReplacesByName(t *testing.T) {
	testlog.Start(t)
	db := openTest(t)
	ctx := context.Background()

	if _, err := db.LoadPath(ctx, "survey"); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
	first := SavedPath{Name: "survey", Version: "0.1.0", Points: 2, Document: []byte(`{"a":1}`), SavedAt: time.Unix(100, 0)}
	if err := db.SavePath(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := SavedPath{Name: "survey", Version: "0.2.0", Points: 5, Document: []byte(`{"b":2}`), SavedAt: time.Unix(200, 0)}
	if err := db.SavePath(ctx, second); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := db.LoadPath(ctx, "survey")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Version != "0.2.0" || got.Points != 5 || string(got.Document) != `{"b":2}` || !got.SavedAt.Equal(time.Unix(200, 0)) {
		t.Fatalf("unexpected saved path: %+v", got)
	}
}
