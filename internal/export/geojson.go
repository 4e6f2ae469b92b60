package export

import (
	"log"
	"math"
	"os"

	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// WriteGeoJSON writes the segments as a FeatureCollection for previewing
// on a map.
func WriteGeoJSON(path string, records []Record) error {
	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		f := geojson.NewFeature(rec.Line)
		f.ID = rec.SegmentID().String()
		f.Properties["segment_id"] = rec.SegmentID().String()
		f.Properties["trip_id"] = rec.Trip.ID
		f.Properties["type"] = rec.Trip.Type
		f.Properties["date"] = rec.Trip.Start.Format("2006-01-02")
		f.Properties["segment"] = rec.Index
		f.Properties["length_m"] = math.Round(geo.Length(rec.Line)*10) / 10
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return &OutputError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &OutputError{Path: path, Err: err}
	}

	log.Printf("Wrote GeoJSON preview with %d features to %s", len(records), path)
	return nil
}
