package payload

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/danmuck/boatlink/internal/protocol"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Layer is the water column a reading was taken from.
type Layer int32

const (
	LayerSurface Layer = 0
	LayerMiddle  Layer = 1
	LayerSeaBed  Layer = 2
)

func (l Layer) Valid() bool {
	return l >= LayerSurface && l <= LayerSeaBed
}

func (l Layer) String() string {
	switch l {
	case LayerSurface:
		return "surface"
	case LayerMiddle:
		return "middle"
	case LayerSeaBed:
		return "sea bed"
	default:
		return fmt.Sprintf("layer(%d)", int32(l))
	}
}

// ParseLayer accepts the display names produced by String.
func ParseLayer(s string) (Layer, error) {
	switch s {
	case "surface":
		return LayerSurface, nil
	case "middle":
		return LayerMiddle, nil
	case "sea bed":
		return LayerSeaBed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLayer, s)
	}
}

// Feature is one sensor reading. Time and Geometry are required on the wire.
type Feature struct {
	Temperature float64   `json:"temperature"`
	Depth       float64   `json:"depth"`
	Layer       Layer     `json:"layer"`
	Time        time.Time `json:"time"`
	Geometry    LatLng    `json:"geometry"`
}

func (f Feature) Marshal() ([]byte, error) {
	ts, err := proto.Marshal(timestamppb.New(f.Time))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimestamp, err)
	}
	b := appendDouble(nil, 1, f.Temperature)
	b = appendDouble(b, 2, f.Depth)
	if f.Layer != LayerSurface {
		b = appendEnum(b, 3, int32(f.Layer))
	}
	b = appendMessage(b, 4, ts)
	b = appendMessage(b, 5, f.Geometry.Marshal())
	return b, nil
}

func UnmarshalFeature(b []byte) (Feature, error) {
	var (
		out         Feature
		hasTime     bool
		hasGeometry bool
	)
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			out.Temperature, err = f.float64()
		case 2:
			out.Depth, err = f.float64()
		case 3:
			var v uint64
			if v, err = f.varint(); err != nil {
				return err
			}
			out.Layer = Layer(int32(v))
			if !out.Layer.Valid() {
				return fmt.Errorf("%w: %d", ErrUnknownLayer, int32(v))
			}
		case 4:
			var raw []byte
			if raw, err = f.message(); err != nil {
				return err
			}
			var ts timestamppb.Timestamp
			if err = proto.Unmarshal(raw, &ts); err != nil {
				return fmt.Errorf("%w: %w", ErrTimestamp, err)
			}
			if err = ts.CheckValid(); err != nil {
				return fmt.Errorf("%w: %w", ErrTimestamp, err)
			}
			out.Time = ts.AsTime()
			hasTime = true
		case 5:
			var raw []byte
			if raw, err = f.message(); err != nil {
				return err
			}
			out.Geometry, err = UnmarshalLatLng(raw)
			hasGeometry = true
		}
		return err
	})
	if err != nil {
		return Feature{}, err
	}
	if !hasTime {
		return Feature{}, fmt.Errorf("%w: feature time", ErrMissingField)
	}
	if !hasGeometry {
		return Feature{}, fmt.Errorf("%w: feature geometry", ErrMissingField)
	}
	return out, nil
}

// BoatData is a batch of readings reported by the boat.
type BoatData struct {
	Version  string    `json:"version"`
	Features []Feature `json:"features"`
}

func NewBoatData(features []Feature) BoatData {
	return BoatData{Version: protocol.Version, Features: features}
}

func (d BoatData) Marshal() ([]byte, error) {
	b := appendString(nil, 1, d.Version)
	for i, f := range d.Features {
		fb, err := f.Marshal()
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		b = appendMessage(b, 2, fb)
	}
	return b, nil
}

func UnmarshalBoatData(b []byte) (BoatData, error) {
	var d BoatData
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.message()
			if err != nil {
				return err
			}
			if !utf8.Valid(v) {
				return fmt.Errorf("%w: boat data version", ErrInvalidString)
			}
			d.Version = string(v)
		case 2:
			v, err := f.message()
			if err != nil {
				return err
			}
			feat, err := UnmarshalFeature(v)
			if err != nil {
				return fmt.Errorf("feature %d: %w", len(d.Features), err)
			}
			d.Features = append(d.Features, feat)
		}
		return nil
	})
	if err != nil {
		return BoatData{}, err
	}
	return d, nil
}
