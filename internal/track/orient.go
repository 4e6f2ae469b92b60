package track

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// orient makes every piece run in the direction of travel of line and
// sorts the pieces by where they start along it. Line merging is free to
// reverse pieces or emit them in any order.
func orient(pieces []orb.LineString, line orb.LineString) {
	start := make([]float64, len(pieces))
	for i, p := range pieces {
		if len(p) == 0 {
			continue
		}
		from, to := locate(line, p[0]), locate(line, p[len(p)-1])
		if from > to {
			p.Reverse()
			from = to
		}
		start[i] = from
	}

	idx := make([]int, len(pieces))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return start[idx[a]] < start[idx[b]] })

	sorted := make([]orb.LineString, len(pieces))
	for i, j := range idx {
		sorted[i] = pieces[j]
	}
	copy(pieces, sorted)
}

// locate returns the planar distance along line to the point of line
// closest to p.
func locate(line orb.LineString, p orb.Point) float64 {
	best, bestDist := 0.0, math.Inf(1)
	var along float64
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		seg := planar.Distance(a, b)

		t := 0.0
		if seg > 0 {
			dx, dy := b[0]-a[0], b[1]-a[1]
			t = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (seg * seg)
			t = math.Max(0, math.Min(1, t))
		}
		q := orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
		if d := planar.DistanceSquared(p, q); d < bestDist {
			best, bestDist = along+t*seg, d
		}
		along += seg
	}
	return best
}
