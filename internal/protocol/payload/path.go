package payload

import (
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/boatlink/internal/protocol"
)

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p LatLng) Marshal() []byte {
	b := appendDouble(nil, 1, p.Latitude)
	return appendDouble(b, 2, p.Longitude)
}

func UnmarshalLatLng(b []byte) (LatLng, error) {
	var p LatLng
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			p.Latitude, err = f.float64()
		case 2:
			p.Longitude, err = f.float64()
		}
		return err
	})
	if err != nil {
		return LatLng{}, err
	}
	return p, nil
}

// PathData is an ordered list of waypoints for the boat to follow.
type PathData struct {
	Version string   `json:"version"`
	Points  []LatLng `json:"points"`
}

func NewPathData(points []LatLng) PathData {
	return PathData{Version: protocol.Version, Points: points}
}

func (p PathData) Marshal() []byte {
	b := appendString(nil, 1, p.Version)
	for _, pt := range p.Points {
		b = appendMessage(b, 2, pt.Marshal())
	}
	return b
}

func UnmarshalPathData(b []byte) (PathData, error) {
	var p PathData
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			v, err := f.message()
			if err != nil {
				return err
			}
			if !utf8.Valid(v) {
				return fmt.Errorf("%w: path version", ErrInvalidString)
			}
			p.Version = string(v)
		case 2:
			v, err := f.message()
			if err != nil {
				return err
			}
			pt, err := UnmarshalLatLng(v)
			if err != nil {
				return fmt.Errorf("path point %d: %w", len(p.Points), err)
			}
			p.Points = append(p.Points, pt)
		}
		return nil
	})
	if err != nil {
		return PathData{}, err
	}
	return p, nil
}
