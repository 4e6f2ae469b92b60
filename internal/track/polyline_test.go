package track

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// Reference example from the encoded polyline format documentation
const referencePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

func TestDecodeReference(t *testing.T) {
	line, err := Decode(referencePolyline)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := orb.LineString{{-120.2, 38.5}, {-120.95, 40.7}, {-126.453, 43.252}}
	if len(line) != len(want) {
		t.Fatalf("got %d points, want %d", len(line), len(want))
	}
	for i := range want {
		if math.Abs(line[i].Lon()-want[i].Lon()) > 1e-9 || math.Abs(line[i].Lat()-want[i].Lat()) > 1e-9 {
			t.Errorf("point %d = %v, want %v ([lon, lat])", i, line[i], want[i])
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	paths := []string{
		referencePolyline,
		Encode(orb.LineString{{2.17403, 41.38879}, {2.14011, 41.37935}, {1.99942, 41.29307}}),
		Encode(orb.LineString{{-0.12, 51.5}, {2.35, 48.85}}),
	}

	for _, path := range paths {
		line, err := Decode(path)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", path, err)
		}
		if got := Encode(line); got != path {
			t.Errorf("round trip of %q gave %q", path, got)
		}
	}
}

func TestDecodeJSONPath(t *testing.T) {
	line, err := Decode(" [[2.17, 41.38], [2.14, 41.37], [1.99, 41.29]] ")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(line) != 3 {
		t.Fatalf("got %d points, want 3", len(line))
	}
	if line[0] != (orb.Point{2.17, 41.38}) {
		t.Errorf("first point = %v, want [2.17 41.38]", line[0])
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"invalid bytes", "not a polyline!"},
		{"single point", Encode(orb.LineString{{2.17, 41.38}})},
		{"identical points", Encode(orb.LineString{{2.17, 41.38}, {2.17, 41.38}})},
		{"out of range", "[[200, 10], [201, 10]]"},
		{"short json pair", "[[2.17], [2.14, 41.37]]"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.path)
			var gErr *GeometryError
			if !errors.As(err, &gErr) {
				t.Fatalf("Decode(%q): expected *GeometryError, got %v", tc.path, err)
			}
			if gErr.Op != "decode" {
				t.Errorf("Op = %q, want decode", gErr.Op)
			}
		})
	}
}

func TestResolveTagsTrip(t *testing.T) {
	_, err := Resolve("4242", "not a polyline!")
	var gErr *GeometryError
	if !errors.As(err, &gErr) {
		t.Fatalf("expected *GeometryError, got %v", err)
	}
	if gErr.TripID != "4242" {
		t.Errorf("TripID = %q, want 4242", gErr.TripID)
	}
}
