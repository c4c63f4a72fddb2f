package roadnet

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Snap is the result of projecting a point onto a lane.
type Snap struct {
	Lane     *Lane
	Pos      orb.Point
	Z        float64
	Distance float64
}

// Project returns the point of l nearest to p, its interpolated elevation
// and the distance from p.
func (l *Lane) Project(p orb.Point) (orb.Point, float64, float64) {
	if len(l.Line) == 1 {
		return l.Line[0], l.Z[0], planar.Distance(p, l.Line[0])
	}
	var (
		best     orb.Point
		bestZ    float64
		bestDist = math.Inf(1)
	)
	for i := 0; i+1 < len(l.Line); i++ {
		a, b := l.Line[i], l.Line[i+1]
		dx, dy := b[0]-a[0], b[1]-a[1]
		t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
		t = math.Max(0, math.Min(1, t))
		foot := orb.Point{a[0] + t*dx, a[1] + t*dy}
		if d := planar.Distance(p, foot); d < bestDist {
			best, bestDist = foot, d
			bestZ = l.Z[i] + t*(l.Z[i+1]-l.Z[i])
		}
	}
	return best, bestZ, bestDist
}

// Nearest snaps p onto the closest of lanes. Ties go to the earlier lane.
// It reports false when lanes is empty.
func Nearest(lanes []Lane, p orb.Point) (Snap, bool) {
	best := Snap{Distance: math.Inf(1)}
	for i := range lanes {
		l := &lanes[i]
		if boundDistance(l.Bound, p) >= best.Distance {
			continue
		}
		pos, z, d := l.Project(p)
		if d < best.Distance {
			best = Snap{Lane: l, Pos: pos, Z: z, Distance: d}
		}
	}
	return best, best.Lane != nil
}

// boundDistance is a lower bound on the distance from p to anything
// inside b.
func boundDistance(b orb.Bound, p orb.Point) float64 {
	if b.Contains(p) {
		return 0
	}
	dx := math.Max(0, math.Max(b.Min[0]-p[0], p[0]-b.Max[0]))
	dy := math.Max(0, math.Max(b.Min[1]-p[1], p[1]-b.Max[1]))
	return math.Hypot(dx, dy)
}
