package export

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/pawelz/trainlog-new-tracks/internal/track"
	"github.com/pawelz/trainlog-new-tracks/internal/triplog"
)

// segmentNamespace seeds the deterministic segment ids. Never change it:
// ids must stay stable across runs.
var segmentNamespace = uuid.MustParse("3d9f6a8e-5b1c-4f2e-9c7a-8e0b1d2f4a6c")

// Record is one novel segment of a trip
type Record struct {
	Trip  triplog.Trip
	Index int // position of the segment within its trip
	Line  orb.LineString
}

// SegmentID returns a stable id for the segment, derived from the trip and
// the segment position.
func (r Record) SegmentID() uuid.UUID {
	return uuid.NewSHA1(segmentNamespace, []byte(fmt.Sprintf("segment:%s:%d:%d", r.Trip.ID, r.Trip.Row, r.Index)))
}

// WriteCSV writes the segments using the header of the input export. Every
// row is the original trip record with its path column replaced by the
// encoded segment. An existing file is overwritten.
func WriteCSV(path string, header []string, pathCol int, records []Record) error {
	if pathCol < 0 || pathCol >= len(header) {
		return &OutputError{Path: path, Err: fmt.Errorf("path column %d outside header of %d columns", pathCol, len(header))}
	}

	f, err := os.Create(path)
	if err != nil {
		return &OutputError{Path: path, Err: err}
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return &OutputError{Path: path, Err: err}
	}

	for _, rec := range records {
		row := make([]string, len(header))
		copy(row, rec.Trip.Fields)
		row[pathCol] = track.Encode(rec.Line)
		if err := w.Write(row); err != nil {
			f.Close()
			return &OutputError{Path: path, Err: err}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return &OutputError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &OutputError{Path: path, Err: err}
	}

	log.Printf("Wrote %d new segments to %s", len(records), path)
	return nil
}
