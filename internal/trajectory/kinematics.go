package trajectory

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/trajectory.report/internal/units"
)

// Estimate is a position, speed and heading derived for a frame that has
// no direct fix.
type Estimate struct {
	Pos      r2.Vec
	Velocity float64 // km/h
	Yaw      float64 // degrees, [0, 360)
}

// EstimateAt applies the temporal interpolation rule for frame f given
// references (f1, c1, v1) and (f2, c2, v2) with f1 < f2.
//
// Between the references the position is interpolated along c1→c2 and
// takes v2. Before f1 the movement vector is run backwards from c1, the
// estimate takes v1 and heads toward c1. Otherwise the movement vector is
// extended past c2 and the estimate takes v2.
func EstimateAt(f, f1, f2 int, c1, c2 r2.Vec, v1, v2 float64) Estimate {
	span := float64(f2 - f1)
	move := r2.Sub(c2, c1)

	switch {
	case f1 < f && f < f2:
		r := float64(f-f1) / span
		p := r2.Add(c1, r2.Scale(r, move))
		return Estimate{Pos: p, Velocity: v2, Yaw: Heading(r2.Sub(p, c1))}
	case f < f1:
		r := float64(f1-f) / span
		p := r2.Sub(c1, r2.Scale(r, move))
		return Estimate{Pos: p, Velocity: v1, Yaw: Heading(r2.Sub(c1, p))}
	default:
		r := float64(f-f2) / span
		p := r2.Add(c2, r2.Scale(r, move))
		return Estimate{Pos: p, Velocity: v2, Yaw: Heading(r2.Sub(p, c2))}
	}
}

// Heading returns the direction of v in degrees, counter-clockwise from +x
// and normalised to [0, 360). A zero vector has heading 0.
func Heading(v r2.Vec) float64 {
	a := math.Atan2(v.Y, v.X)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a * 180 / math.Pi
}

// AngleBetween returns the unsigned angle between a and b in degrees,
// rounded to two decimals. The cosine is clamped to [-1, 1]. If either
// vector has zero length no turn can be measured and the angle is 0.
func AngleBetween(a, b r2.Vec) float64 {
	na, nb := r2.Norm(a), r2.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	c := r2.Dot(a, b) / (na * nb)
	c = math.Max(-1, math.Min(1, c))
	deg := math.Acos(c) * 180 / math.Pi
	return math.Round(deg*100) / 100
}

// UnitVector normalises v, failing for a zero vector.
func UnitVector(v r2.Vec) (r2.Vec, error) {
	if v.X == 0 && v.Y == 0 {
		return r2.Vec{}, ErrUndefinedDirection
	}
	return r2.Unit(v), nil
}

// Perpendicular returns v rotated a quarter turn clockwise when right is
// true, otherwise counter-clockwise.
func Perpendicular(v r2.Vec, right bool) r2.Vec {
	if right {
		return r2.Vec{X: v.Y, Y: -v.X}
	}
	return r2.Vec{X: -v.Y, Y: v.X}
}

// SpeedKMH is the speed in km/h of covering from→to in seconds.
func SpeedKMH(from, to r2.Vec, seconds float64) (float64, error) {
	if seconds <= 0 {
		return 0, fmt.Errorf("%w: non-positive elapsed time %g s", ErrMalformedInput, seconds)
	}
	return units.ConvertSpeed(r2.Norm(r2.Sub(to, from))/seconds, units.KMPH), nil
}

// frameSeconds converts a frame delta into seconds.
func (p Params) frameSeconds(df int) float64 {
	return float64(df) / p.FPS
}
