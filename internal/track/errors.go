package track

import "fmt"

// GeometryError reports a trip whose geometry could not be decoded or
// compared against the known track.
type GeometryError struct {
	TripID string
	Op     string // decode, build, difference, union
	Err    error
}

func (e *GeometryError) Error() string {
	if e.TripID != "" {
		return fmt.Sprintf("trip %s: %s: %v", e.TripID, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }
