package track

import (
	"github.com/paulmach/orb"
	"github.com/paulsmith/gogeos/geos"
)

func toGeos(line orb.LineString) (*geos.Geometry, error) {
	coords := make([]geos.Coord, len(line))
	for i, p := range line {
		coords[i] = geos.NewCoord(p[0], p[1])
	}
	return geos.NewLineString(coords...)
}

// lineStrings flattens the linear parts of a GEOS result. Overlay results
// can be a LineString, a MultiLineString or a mixed collection; points
// carry no track and are ignored.
func lineStrings(g *geos.Geometry) ([]orb.LineString, error) {
	empty, err := g.IsEmpty()
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, nil
	}

	typ, err := g.Type()
	if err != nil {
		return nil, err
	}

	switch typ {
	case geos.LINESTRING:
		coords, err := g.Coords()
		if err != nil {
			return nil, err
		}
		line := make(orb.LineString, len(coords))
		for i, c := range coords {
			line[i] = orb.Point{c.X, c.Y}
		}
		return []orb.LineString{line}, nil

	case geos.MULTILINESTRING, geos.GEOMETRYCOLLECTION:
		n, err := g.NGeometry()
		if err != nil {
			return nil, err
		}
		var out []orb.LineString
		for i := 0; i < n; i++ {
			part, err := g.Geometry(i)
			if err != nil {
				return nil, err
			}
			lines, err := lineStrings(part)
			if err != nil {
				return nil, err
			}
			out = append(out, lines...)
		}
		return out, nil
	}

	return nil, nil
}
