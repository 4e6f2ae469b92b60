package track

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulsmith/gogeos/geos"
)

// knownBuffer is one travelled line grown by the tolerance
type knownBuffer struct {
	area   *geos.Geometry
	bounds rtreego.Rect
}

func (b *knownBuffer) Bounds() rtreego.Rect { return b.bounds }

// KnownTrack is the union of every buffered line travelled so far, stored
// as an R-tree of the individual buffers. Subtracting the buffers near a
// line one after another equals subtracting their union. It only grows.
type KnownTrack struct {
	tolerance float64
	tree      *rtreego.Rtree
}

// NewKnownTrack returns an empty known track with the given buffer distance (degrees).
func NewKnownTrack(tolerance float64) *KnownTrack {
	return &KnownTrack{
		tolerance: tolerance,
		tree:      rtreego.NewTree(2, 25, 50),
	}
}

// Len returns the number of lines merged into the known track.
func (k *KnownTrack) Len() int {
	return k.tree.Size()
}

func (k *KnownTrack) add(g *geos.Geometry, bound orb.Bound) error {
	area, err := g.Buffer(k.tolerance)
	if err != nil {
		return err
	}
	rect, err := k.rect(bound)
	if err != nil {
		return err
	}
	k.tree.Insert(&knownBuffer{area: area, bounds: rect})
	return nil
}

// subtract removes the known track from g. It also reports how many known
// buffers were near enough to be considered; zero means g was left untouched.
func (k *KnownTrack) subtract(g *geos.Geometry, bound orb.Bound) (*geos.Geometry, int, error) {
	rect, err := k.rect(bound)
	if err != nil {
		return nil, 0, err
	}

	hits := k.tree.SearchIntersect(rect)
	rest := g
	for _, hit := range hits {
		rest, err = rest.Difference(hit.(*knownBuffer).area)
		if err != nil {
			return nil, 0, err
		}
		empty, err := rest.IsEmpty()
		if err != nil {
			return nil, 0, err
		}
		if empty {
			break
		}
	}
	return rest, len(hits), nil
}

func (k *KnownTrack) rect(b orb.Bound) (rtreego.Rect, error) {
	b = b.Pad(k.tolerance)
	return rtreego.NewRectFromPoints(
		rtreego.Point{b.Min[0], b.Min[1]},
		rtreego.Point{b.Max[0], b.Max[1]},
	)
}
