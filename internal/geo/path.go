// Package geo converts between GeoJSON documents and link payloads.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrMissingVersion = errors.New("geo: path is missing a string version member")
	ErrPathShape      = errors.New("geo: path needs exactly one MultiPoint and one LineString feature")
)

// Path is a planned route: the track to follow and the points where samples
// are collected. Only the collection points are uploaded to the boat.
type Path struct {
	Version string
	Track   orb.LineString
	Points  orb.MultiPoint
}

// ParsePath decodes a path FeatureCollection. The collection carries a
// top-level "version" member and two features in either order.
func ParsePath(data []byte) (Path, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return Path{}, fmt.Errorf("geo: parse path: %w", err)
	}
	version, ok := fc.ExtraMembers["version"].(string)
	if !ok {
		return Path{}, ErrMissingVersion
	}
	if len(fc.Features) != 2 {
		return Path{}, fmt.Errorf("%w: got %d features", ErrPathShape, len(fc.Features))
	}

	p := Path{Version: version}
	var haveTrack, havePoints bool
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			p.Track, haveTrack = g, true
		case orb.MultiPoint:
			p.Points, havePoints = g, true
		}
	}
	if !haveTrack || !havePoints {
		return Path{}, ErrPathShape
	}
	return p, nil
}

// FeatureCollection renders p in the same shape ParsePath accepts.
func (p Path) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	points := p.Points
	if points == nil {
		points = orb.MultiPoint{}
	}
	track := p.Track
	if track == nil {
		track = orb.LineString{}
	}
	fc.Append(geojson.NewFeature(points))
	fc.Append(geojson.NewFeature(track))
	fc.ExtraMembers = geojson.Properties{"version": p.versionOrDefault()}
	return fc
}

// Document is the indented GeoJSON form of FeatureCollection.
func (p Path) Document() ([]byte, error) {
	return json.MarshalIndent(p.FeatureCollection(), "", "  ")
}

// PathData converts the collection points into the upload payload.
func (p Path) PathData() payload.PathData {
	out := payload.PathData{Version: p.versionOrDefault(), Points: make([]payload.LatLng, 0, len(p.Points))}
	for _, pt := range p.Points {
		out.Points = append(out.Points, LatLngOf(pt))
	}
	return out
}

func (p Path) versionOrDefault() string {
	if p.Version == "" {
		return protocol.Version
	}
	return p.Version
}

// LatLngOf maps an orb point (lon, lat) to a wire coordinate.
func LatLngOf(pt orb.Point) payload.LatLng {
	return payload.LatLng{Latitude: pt.Lat(), Longitude: pt.Lon()}
}

// PointOf maps a wire coordinate to an orb point (lon, lat).
func PointOf(ll payload.LatLng) orb.Point {
	return orb.Point{ll.Longitude, ll.Latitude}
}
