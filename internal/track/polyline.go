package track

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"
)

// Resolve decodes the path of a trip, tagging failures with the trip id.
func Resolve(tripID, path string) (orb.LineString, error) {
	line, err := Decode(path)
	if err != nil {
		var gErr *GeometryError
		if errors.As(err, &gErr) {
			gErr.TripID = tripID
		}
		return nil, err
	}
	return line, nil
}

// Decode turns an encoded polyline (precision 5) into a line of
// [lon, lat] points. Some older exports store the path as a JSON array of
// [lon, lat] pairs instead; those are accepted too.
func Decode(path string) (orb.LineString, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, &GeometryError{Op: "decode", Err: errors.New("empty path")}
	}

	var line orb.LineString
	if strings.HasPrefix(path, "[") {
		line, _ = decodeJSON(path)
	}
	if line == nil {
		coords, rest, err := polyline.DecodeCoords([]byte(path))
		if err != nil {
			return nil, &GeometryError{Op: "decode", Err: fmt.Errorf("malformed polyline: %w", err)}
		}
		if len(rest) > 0 {
			return nil, &GeometryError{Op: "decode", Err: fmt.Errorf("malformed polyline: %d trailing bytes", len(rest))}
		}
		line = make(orb.LineString, 0, len(coords))
		for _, c := range coords {
			line = append(line, orb.Point{c[1], c[0]})
		}
	}

	if err := validate(line); err != nil {
		return nil, &GeometryError{Op: "decode", Err: err}
	}
	return line, nil
}

// Encode is the inverse of Decode for polyline paths.
func Encode(line orb.LineString) string {
	coords := make([][]float64, len(line))
	for i, p := range line {
		coords[i] = []float64{p.Lat(), p.Lon()}
	}
	return string(polyline.EncodeCoords(coords))
}

func decodeJSON(path string) (orb.LineString, error) {
	var pairs [][]float64
	if err := json.Unmarshal([]byte(path), &pairs); err != nil {
		return nil, err
	}
	line := make(orb.LineString, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			return nil, fmt.Errorf("coordinate with %d values", len(p))
		}
		line = append(line, orb.Point{p[0], p[1]})
	}
	return line, nil
}

func validate(line orb.LineString) error {
	if len(line) < 2 {
		return fmt.Errorf("need at least 2 points, got %d", len(line))
	}
	distinct := false
	for _, p := range line {
		if p.Lat() < -90 || p.Lat() > 90 || p.Lon() < -180 || p.Lon() > 180 {
			return fmt.Errorf("coordinate out of range: lat %v lon %v", p.Lat(), p.Lon())
		}
		if p != line[0] {
			distinct = true
		}
	}
	if !distinct {
		return errors.New("all points are identical")
	}
	return nil
}
