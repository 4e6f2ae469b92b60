package track

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulsmith/gogeos/geos"
)

// Options tune the novelty engine
type Options struct {
	// Tolerance is the buffer distance, in degrees, within which a line is
	// considered to follow known track. Used both for coverage checks and
	// for growing the known track.
	Tolerance float64

	// MinLengthMeters drops novel pieces shorter than this. Zero keeps
	// every non-empty piece.
	MinLengthMeters float64
}

// Engine extracts the novel part of candidate lines against a known track
// that grows with every candidate processed. Candidates must be fed in
// chronological order.
type Engine struct {
	opts  Options
	known *KnownTrack
}

// NewEngine creates an engine with an empty known track
func NewEngine(opts Options) (*Engine, error) {
	if opts.Tolerance <= 0 {
		return nil, fmt.Errorf("tolerance must be positive, got %v", opts.Tolerance)
	}
	return &Engine{
		opts:  opts,
		known: NewKnownTrack(opts.Tolerance),
	}, nil
}

// Known exposes the accumulated known track
func (e *Engine) Known() *KnownTrack {
	return e.known
}

// AddKnown merges a line travelled before the cutoff into the known track.
func (e *Engine) AddKnown(line orb.LineString) error {
	g, err := toGeos(line)
	if err != nil {
		return &GeometryError{Op: "build", Err: err}
	}
	if err := e.known.add(g, line.Bound()); err != nil {
		return &GeometryError{Op: "union", Err: err}
	}
	return nil
}

// ExtractNew returns the parts of line that are farther than the tolerance
// from the known track, then merges the whole line into the known track.
// A nil result means the line added nothing new. On error the known track
// is left unchanged.
func (e *Engine) ExtractNew(line orb.LineString) ([]orb.LineString, error) {
	g, err := toGeos(line)
	if err != nil {
		return nil, &GeometryError{Op: "build", Err: err}
	}

	var pieces []orb.LineString
	rest, hits, err := e.known.subtract(g, line.Bound())
	if err != nil {
		return nil, &GeometryError{Op: "difference", Err: err}
	}
	if hits == 0 {
		pieces = []orb.LineString{line}
	} else {
		pieces, err = mergedPieces(rest)
		if err != nil {
			return nil, &GeometryError{Op: "difference", Err: err}
		}
		orient(pieces, line)
	}

	if err := e.known.add(g, line.Bound()); err != nil {
		return nil, &GeometryError{Op: "union", Err: err}
	}

	var novel []orb.LineString
	for _, p := range pieces {
		if len(p) < 2 {
			continue
		}
		if e.opts.MinLengthMeters > 0 && geo.Length(p) < e.opts.MinLengthMeters {
			continue
		}
		novel = append(novel, p)
	}
	return novel, nil
}

// mergedPieces joins pieces of a difference result that touch end to end.
// Successive differences can split a stretch of new track where it only
// grazed a buffer boundary.
func mergedPieces(g *geos.Geometry) ([]orb.LineString, error) {
	empty, err := g.IsEmpty()
	if err != nil || empty {
		return nil, err
	}

	typ, err := g.Type()
	if err != nil {
		return nil, err
	}
	if typ != geos.LINESTRING {
		if g, err = g.LineMerge(); err != nil {
			return nil, err
		}
	}
	return lineStrings(g)
}
