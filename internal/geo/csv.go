package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/danmuck/boatlink/internal/protocol/payload"
)

var ErrCSVHeader = errors.New("geo: telemetry csv header is missing a column")

// csvColumns is the telemetry CSV layout. time is Unix milliseconds.
var csvColumns = []string{"temperature", "depth", "layer", "time", "lat", "lng"}

// WriteTelemetryCSV writes a header row and one row per feature.
func WriteTelemetryCSV(w io.Writer, features []payload.Feature) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}
	for _, f := range features {
		row := []string{
			strconv.FormatFloat(f.Temperature, 'f', -1, 64),
			strconv.FormatFloat(f.Depth, 'f', -1, 64),
			f.Layer.String(),
			strconv.FormatInt(f.Time.UnixMilli(), 10),
			strconv.FormatFloat(f.Geometry.Latitude, 'f', -1, 64),
			strconv.FormatFloat(f.Geometry.Longitude, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseTelemetryCSV reads rows written by WriteTelemetryCSV. Columns are
// matched by header name, so their order may differ. CSV carries no version;
// the result uses the protocol default.
func ParseTelemetryCSV(r io.Reader) (payload.BoatData, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return payload.BoatData{Version: protocol.Version}, nil
	}
	if err != nil {
		return payload.BoatData{}, fmt.Errorf("geo: csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range csvColumns {
		if _, ok := index[name]; !ok {
			return payload.BoatData{}, fmt.Errorf("%w: %s", ErrCSVHeader, name)
		}
	}

	out := payload.BoatData{Version: protocol.Version}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return payload.BoatData{}, fmt.Errorf("geo: csv: %w", err)
		}
		f, err := csvFeature(row, index)
		if err != nil {
			return payload.BoatData{}, fmt.Errorf("geo: csv line %d: %w", line, err)
		}
		out.Features = append(out.Features, f)
	}
}

func csvFeature(row []string, index map[string]int) (payload.Feature, error) {
	num := func(col string) (float64, error) {
		v, err := strconv.ParseFloat(row[index[col]], 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", col, err)
		}
		return v, nil
	}

	var (
		f   payload.Feature
		err error
	)
	if f.Temperature, err = num("temperature"); err != nil {
		return f, err
	}
	if f.Depth, err = num("depth"); err != nil {
		return f, err
	}
	if f.Layer, err = payload.ParseLayer(row[index["layer"]]); err != nil {
		return f, err
	}
	ms, err := strconv.ParseInt(row[index["time"]], 10, 64)
	if err != nil {
		return f, fmt.Errorf("time: %w", err)
	}
	f.Time = time.UnixMilli(ms).UTC()
	if f.Geometry.Latitude, err = num("lat"); err != nil {
		return f, err
	}
	if f.Geometry.Longitude, err = num("lng"); err != nil {
		return f, err
	}
	return f, nil
}
