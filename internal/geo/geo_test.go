package geo

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/testutil/testlog"
)

const samplePath = `{
  "type": "FeatureCollection",
  "version": "0.1.0",
  "features": [
    {"type": "Feature", "properties": {}, "geometry": {"type": "LineString", "coordinates": [[2.10, 41.30], [2.20, 41.35], [2.30, 41.40]]}},
    {"type": "Feature", "properties": {}, "geometry": {"type": "MultiPoint", "coordinates": [[2.15, 41.32], [2.25, 41.38]]}}
  ]
}`

func TestParsePathUsesCollectionPoints(t *testing.T) {
	testlog.Start(t)
	p, err := ParsePath([]byte(samplePath))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Version != "0.1.0" || len(p.Track) != 3 || len(p.Points) != 2 {
		t.Fatalf("unexpected path: %+v", p)
	}
	data := p.PathData()
	if len(data.Points) != 2 {
		t.Fatalf("expected 2 upload points, got %d", len(data.Points))
	}
	if data.Points[0] != (payload.LatLng{Latitude: 41.32, Longitude: 2.15}) {
		t.Fatalf("expected lat/lng swap from lon/lat, got %+v", data.Points[0])
	}
}

func TestParsePathRejectsBadShapes(t *testing.T) {
	testlog.Start(t)
	noVersion := `{"type":"FeatureCollection","features":[]}`
	if _, err := ParsePath([]byte(noVersion)); !errors.Is(err, ErrMissingVersion) {
		t.Fatalf("expected ErrMissingVersion, got %v", err)
	}
	oneFeature := `{"type":"FeatureCollection","version":"0.1.0","features":[
	  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`
	if _, err := ParsePath([]byte(oneFeature)); !errors.Is(err, ErrPathShape) {
		t.Fatalf("expected ErrPathShape, got %v", err)
	}
	twoLines := `{"type":"FeatureCollection","version":"0.1.0","features":[
	  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}},
	  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`
	if _, err := ParsePath([]byte(twoLines)); !errors.Is(err, ErrPathShape) {
		t.Fatalf("expected ErrPathShape, got %v", err)
	}
}

func TestPathFeatureCollectionRoundTrip(t *testing.T) {
	testlog.Start(t)
	p, err := ParsePath([]byte(samplePath))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := json.Marshal(p.FeatureCollection())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	again, err := ParsePath(b)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if again.Version != p.Version || len(again.Points) != len(p.Points) || len(again.Track) != len(p.Track) {
		t.Fatalf("round trip mismatch: %+v", again)
	}
}

func TestTelemetryCollectionRoundTrip(t *testing.T) {
	testlog.Start(t)
	features := []payload.Feature{
		{Temperature: 11.5, Depth: 22, Layer: payload.LayerSeaBed, Time: time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC), Geometry: payload.LatLng{Latitude: 10, Longitude: 20}},
	}
	b, err := json.Marshal(TelemetryCollection("", features))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["version"] != "0.1.0" {
		t.Fatalf("expected version member, got %v", raw["version"])
	}

	data, err := ParseTelemetry(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(data.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(data.Features))
	}
	got := data.Features[0]
	if got.Layer != payload.LayerSeaBed || got.Depth != 22 || !got.Time.Equal(features[0].Time) || got.Geometry != features[0].Geometry {
		t.Fatalf("unexpected feature: %+v", got)
	}
}

func TestTelemetryCSVRoundTrip(t *testing.T) {
	testlog.Start(t)
	features := []payload.Feature{
		{Temperature: 18.25, Depth: 0.5, Layer: payload.LayerSurface, Time: time.UnixMilli(1719914400123).UTC(), Geometry: payload.LatLng{Latitude: 60.1, Longitude: 24.9}},
		{Temperature: -1.5, Depth: 40, Layer: payload.LayerSeaBed, Time: time.UnixMilli(1719914460000).UTC(), Geometry: payload.LatLng{Latitude: -33.5, Longitude: 151.25}},
	}
	var buf bytes.Buffer
	if err := WriteTelemetryCSV(&buf, features); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "temperature,depth,layer,time,lat,lng\n") {
		t.Fatalf("unexpected header: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "sea bed,1719914460000,") {
		t.Fatalf("expected layer name and millisecond time, got %q", buf.String())
	}

	data, err := ParseTelemetryCSV(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(data.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(data.Features))
	}
	for i, got := range data.Features {
		want := features[i]
		if got.Temperature != want.Temperature || got.Depth != want.Depth || got.Layer != want.Layer ||
			!got.Time.Equal(want.Time) || got.Geometry != want.Geometry {
			t.Fatalf("feature %d: got %+v want %+v", i, got, want)
		}
	}
}

func TestParseTelemetryCSVMatchesColumnsByName(t *testing.T) {
	testlog.Start(t)
	in := "lng,lat,time,layer,depth,temperature\n24.9,60.1,1000,middle,3,12\n"
	data, err := ParseTelemetryCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := data.Features[0]
	if got.Layer != payload.LayerMiddle || got.Temperature != 12 || got.Geometry.Longitude != 24.9 || got.Time.UnixMilli() != 1000 {
		t.Fatalf("unexpected feature: %+v", got)
	}
}

func TestParseTelemetryCSVRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	if _, err := ParseTelemetryCSV(strings.NewReader("temperature,depth,layer,time,lat\n")); !errors.Is(err, ErrCSVHeader) {
		t.Fatalf("expected ErrCSVHeader, got %v", err)
	}
	badLayer := "temperature,depth,layer,time,lat,lng\n1,2,deep,0,0,0\n"
	if _, err := ParseTelemetryCSV(strings.NewReader(badLayer)); !errors.Is(err, payload.ErrUnknownLayer) {
		t.Fatalf("expected ErrUnknownLayer, got %v", err)
	}
	data, err := ParseTelemetryCSV(strings.NewReader(""))
	if err != nil || len(data.Features) != 0 {
		t.Fatalf("empty input: data=%+v err=%v", data, err)
	}
}

func TestPathDocumentParsesBack(t *testing.T) {
	testlog.Start(t)
	doc, err := Path{}.Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	p, err := ParsePath(doc)
	if err != nil {
		t.Fatalf("empty path must parse back: %v", err)
	}
	if p.Version != "0.1.0" || len(p.Points) != 0 {
		t.Fatalf("unexpected empty path: %+v", p)
	}
}
