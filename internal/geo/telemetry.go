package geo

import (
	"time"

	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/paulmach/orb/geojson"
)

// TelemetryCollection renders readings as Point features with temperature,
// depth, layer and RFC 3339 time properties.
func TelemetryCollection(version string, features []payload.Feature) *geojson.FeatureCollection {
	if version == "" {
		version = protocol.Version
	}
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		gf := geojson.NewFeature(PointOf(f.Geometry))
		gf.Properties["temperature"] = f.Temperature
		gf.Properties["depth"] = f.Depth
		gf.Properties["layer"] = f.Layer.String()
		gf.Properties["time"] = f.Time.UTC().Format(time.RFC3339Nano)
		fc.Append(gf)
	}
	fc.ExtraMembers = geojson.Properties{"version": version}
	return fc
}

// ParseTelemetry reads a collection produced by TelemetryCollection.
func ParseTelemetry(data []byte) (payload.BoatData, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return payload.BoatData{}, err
	}
	out := payload.BoatData{Version: protocol.Version}
	if v, ok := fc.ExtraMembers["version"].(string); ok {
		out.Version = v
	}
	for i, gf := range fc.Features {
		f, err := featureOf(gf)
		if err != nil {
			return payload.BoatData{}, errAt(i, err)
		}
		out.Features = append(out.Features, f)
	}
	return out, nil
}
