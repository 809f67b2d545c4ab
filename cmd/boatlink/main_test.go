package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/boatlink/internal/geo"
	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/registry"
	"github.com/danmuck/boatlink/internal/store"
	"github.com/danmuck/boatlink/internal/testutil/boattest"
	"github.com/danmuck/boatlink/internal/testutil/testlog"
)

const testPath = `{
  "type": "FeatureCollection",
  "version": "0.1.0",
  "features": [
    {"type": "Feature", "properties": {}, "geometry": {"type": "LineString", "coordinates": [[2.10, 41.30], [2.20, 41.35]]}},
    {"type": "Feature", "properties": {}, "geometry": {"type": "MultiPoint", "coordinates": [[2.15, 41.32], [2.25, 41.38]]}}
  ]
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfigFile(t *testing.T, storePath string) string {
	t.Helper()
	return writeFile(t, "boatlink.toml", `
[protocol]
max_attempts = 3
reply_delay = "1ms"
monitor_interval = "1ms"

[store]
path = "`+storePath+`"

[log]
level = "error"
`)
}

func executeCommand(ports registry.Ports, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root := newRootCmd(ports)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	testlog.Start(t)
	out, err := executeCommand(boattest.NewPorts(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, protocol.Version) {
		t.Fatalf("expected protocol version in output, got %q", out)
	}
}

func TestPortsCommandMarksAnsweringBoats(t *testing.T) {
	testlog.Start(t)
	ports := boattest.NewPorts()
	ports.Add("/dev/ttyUSB0", boattest.NewRemote(boattest.Boat()))
	ports.Add("/dev/ttyUSB1", boattest.NewRemote(boattest.Silent()))

	out, err := executeCommand(ports, "--config", testConfigFile(t, ""), "ports", "-o", "json")
	if err != nil {
		t.Fatalf("ports: %v", err)
	}
	var rows []portRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := []portRow{{Port: "/dev/ttyUSB0", Boat: true}, {Port: "/dev/ttyUSB1", Boat: false}}
	if len(rows) != len(want) || rows[0] != want[0] || rows[1] != want[1] {
		t.Fatalf("expected %+v, got %+v", want, rows)
	}
}

func TestSendPathDirect(t *testing.T) {
	testlog.Start(t)
	boat := boattest.NewRemote(boattest.AckOnAttempt(2))
	ports := boattest.NewPorts()
	ports.Add("A", boat)

	file := writeFile(t, "path.geojson", testPath)
	out, err := executeCommand(ports, "--config", testConfigFile(t, ""), "send-path", file, "-o", "json")
	if err != nil {
		t.Fatalf("send-path: %v", err)
	}
	var res sendResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Link != "A" || res.Points != 2 || res.Attempts != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := boat.Sent(protocol.KindPathData); got != 2 {
		t.Fatalf("expected 2 path frames, got %d", got)
	}
}

func TestSendPathUnknownLink(t *testing.T) {
	testlog.Start(t)
	ports := boattest.NewPorts()
	ports.Add("A", boattest.NewRemote(boattest.Boat()))

	file := writeFile(t, "path.geojson", testPath)
	_, err := executeCommand(ports, "--config", testConfigFile(t, ""), "send-path", file, "--link", "Z")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSendPathViaGateway(t *testing.T) {
	testlog.Start(t)
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"acknowledged","link":"/dev/ttyUSB0","points":2,"attempts":1,"checksum":4660}`))
	}))
	defer srv.Close()

	file := writeFile(t, "path.geojson", testPath)
	out, err := executeCommand(boattest.NewPorts(), "--config", testConfigFile(t, ""),
		"send-path", file, "--link", "/dev/ttyUSB0", "--gateway", srv.URL, "--token", "s3cret", "-o", "yaml")
	if err != nil {
		t.Fatalf("send-path: %v", err)
	}
	if gotPath != "/api/v1/links/%2Fdev%2FttyUSB0/path" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if gotAuth != "Bearer s3cret" {
		t.Fatalf("unexpected authorization %q", gotAuth)
	}
	if !strings.Contains(out, "checksum: 4660") || !strings.Contains(out, "attempts: 1") {
		t.Fatalf("unexpected yaml output: %q", out)
	}
}

func TestSendPathGatewayError(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		_, _ = w.Write([]byte(`{"error":"session: no acknowledgement","attempts":10}`))
	}))
	defer srv.Close()

	file := writeFile(t, "path.geojson", testPath)
	_, err := executeCommand(boattest.NewPorts(), "--config", testConfigFile(t, ""),
		"send-path", file, "--link", "A", "--gateway", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "no acknowledgement") {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestExportWritesTelemetryGeoJSON(t *testing.T) {
	testlog.Start(t)
	dbPath := filepath.Join(t.TempDir(), "export.db")
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	data := payload.NewBoatData([]payload.Feature{
		{Temperature: 12, Depth: 4, Layer: payload.LayerMiddle, Time: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), Geometry: payload.LatLng{Latitude: 5, Longitude: 6}},
	})
	if err := db.InsertTelemetry(context.Background(), "A", data, time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = db.Close()

	outFile := filepath.Join(t.TempDir(), "data.geojson")
	if _, err := executeCommand(boattest.NewPorts(), "--config", testConfigFile(t, dbPath), "export", "--out", outFile); err != nil {
		t.Fatalf("export: %v", err)
	}
	raw, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	got, err := geo.ParseTelemetry(raw)
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(got.Features) != 1 || got.Features[0].Layer != payload.LayerMiddle {
		t.Fatalf("unexpected export: %+v", got)
	}
}

func TestConfigInitThenValidate(t *testing.T) {
	testlog.Start(t)
	target := filepath.Join(t.TempDir(), "boatlink.toml")
	if _, err := executeCommand(nil, "config", "init", target); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := executeCommand(nil, "config", "init", target); err == nil {
		t.Fatalf("expected init to refuse overwriting without --force")
	}
	out, err := executeCommand(nil, "config", "validate", target)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "is valid") {
		t.Fatalf("unexpected output %q", out)
	}

	broken := writeFile(t, "broken.toml", "[protocol]\nmax_attempts = 0\n")
	if _, err := executeCommand(nil, "--config", broken, "config", "validate"); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestTableFormatter(t *testing.T) {
	testlog.Start(t)
	out := NewFormatter("table").Format([]portRow{{Port: "COM3", Boat: true}})
	if !strings.Contains(out, "PORT") || !strings.Contains(out, "COM3") || !strings.Contains(out, "true") {
		t.Fatalf("unexpected table: %q", out)
	}
	if out := NewFormatter("table").Format([]portRow{}); !strings.Contains(out, "No results") {
		t.Fatalf("unexpected empty table: %q", out)
	}
}

func TestImportCSVThenExportCSV(t *testing.T) {
	testlog.Start(t)
	dbPath := filepath.Join(t.TempDir(), "import.db")
	cfg := testConfigFile(t, dbPath)
	in := writeFile(t, "data.csv", "temperature,depth,layer,time,lat,lng\n"+
		"12.5,4,middle,1714979289000,5,6\n"+
		"9,20,sea bed,1714979349000,5.1,6.1\n")

	out, err := executeCommand(boattest.NewPorts(), "--config", cfg, "-o", "json", "import", in, "--link", "COM7")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	var res importResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Format != "csv" || res.Features != 2 || res.Link != "COM7" {
		t.Fatalf("unexpected import result: %+v", res)
	}

	outFile := filepath.Join(t.TempDir(), "out.csv")
	if _, err := executeCommand(boattest.NewPorts(), "--config", cfg, "export", "--format", "csv", "--link", "COM7", "--out", outFile); err != nil {
		t.Fatalf("export: %v", err)
	}
	raw, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	got, err := geo.ParseTelemetryCSV(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(got.Features) != 2 || got.Features[0].Layer != payload.LayerSeaBed || got.Features[0].Time.UnixMilli() != 1714979349000 {
		t.Fatalf("expected newest reading first, got %+v", got.Features)
	}
}

func TestImportGeoJSONAndRejectUnknownFormat(t *testing.T) {
	testlog.Start(t)
	dbPath := filepath.Join(t.TempDir(), "import.db")
	cfg := testConfigFile(t, dbPath)
	doc, err := json.Marshal(geo.TelemetryCollection("", []payload.Feature{
		{Temperature: 3, Depth: 1, Layer: payload.LayerSurface, Time: time.Unix(1000, 0).UTC(), Geometry: payload.LatLng{Latitude: 1, Longitude: 2}},
	}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	in := writeFile(t, "data.geojson", string(doc))

	if _, err := executeCommand(boattest.NewPorts(), "--config", cfg, "import", in); err != nil {
		t.Fatalf("import: %v", err)
	}
	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	readings, err := db.ListTelemetry(context.Background(), store.TelemetryFilter{Link: "import"})
	if err != nil || len(readings) != 1 || readings[0].Feature.Temperature != 3 {
		t.Fatalf("unexpected readings: %+v err=%v", readings, err)
	}

	if _, err := executeCommand(boattest.NewPorts(), "--config", cfg, "import", in, "--format", "xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestPathSaveThenShow(t *testing.T) {
	testlog.Start(t)
	cfg := testConfigFile(t, filepath.Join(t.TempDir(), "paths.db"))

	out, err := executeCommand(boattest.NewPorts(), "--config", cfg, "path", "show", "--name", "survey")
	if err != nil {
		t.Fatalf("show empty: %v", err)
	}
	if empty, err := geo.ParsePath([]byte(out)); err != nil || len(empty.Points) != 0 {
		t.Fatalf("expected empty path, got %q err=%v", out, err)
	}

	file := writeFile(t, "path.geojson", testPath)
	out, err = executeCommand(boattest.NewPorts(), "--config", cfg, "path", "save", file, "--name", "survey")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.Contains(out, "Points:") || !strings.Contains(out, "survey") {
		t.Fatalf("unexpected save output %q", out)
	}

	outFile := filepath.Join(t.TempDir(), "survey.geojson")
	if _, err := executeCommand(boattest.NewPorts(), "--config", cfg, "path", "show", "--name", "survey", "--out", outFile); err != nil {
		t.Fatalf("show: %v", err)
	}
	raw, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	p, err := geo.ParsePath(raw)
	if err != nil {
		t.Fatalf("parse shown path: %v", err)
	}
	if len(p.Points) != 2 || len(p.Track) != 2 {
		t.Fatalf("unexpected shown path: %+v", p)
	}
}
