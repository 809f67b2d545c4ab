package geo

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrTelemetryShape = errors.New("geo: telemetry feature is malformed")

func featureOf(gf *geojson.Feature) (payload.Feature, error) {
	pt, ok := gf.Geometry.(orb.Point)
	if !ok {
		return payload.Feature{}, fmt.Errorf("%w: geometry is %T", ErrTelemetryShape, gf.Geometry)
	}
	layer, err := payload.ParseLayer(gf.Properties.MustString("layer", ""))
	if err != nil {
		return payload.Feature{}, err
	}
	raw, ok := gf.Properties["time"].(string)
	if !ok {
		return payload.Feature{}, fmt.Errorf("%w: missing time", ErrTelemetryShape)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return payload.Feature{}, fmt.Errorf("%w: time: %w", ErrTelemetryShape, err)
	}
	return payload.Feature{
		Temperature: gf.Properties.MustFloat64("temperature", 0),
		Depth:       gf.Properties.MustFloat64("depth", 0),
		Layer:       layer,
		Time:        ts,
		Geometry:    LatLngOf(pt),
	}, nil
}

func errAt(i int, err error) error {
	return fmt.Errorf("feature %d: %w", i, err)
}
