package trajectory

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// PlaceDetections converts each camera-relative detection into a world
// position. Ego heading for frame i comes from the ego displacement
// i-1→i; frame 0 borrows the heading of 0→1. The detection lies dy metres
// ahead and |dx| metres to the side given by the sign of dx.
//
// When the ego is stationary the nearest earlier heading is reused, or
// the nearest later one at the start of the sequence. If the ego never
// moves, frames with detections fail with ErrUndefinedDirection.
func PlaceDetections(frames []FrameRecord, proj Projector) ([]FrameRecord, error) {
	out := CloneFrames(frames)
	for _, r := range out {
		if r.Ego == nil {
			return nil, fmt.Errorf("%w: frame %d has no ego state", ErrMalformedInput, r.Frame)
		}
	}

	fwd := headings(out)
	for i := range out {
		r := &out[i]
		if len(r.Detections) == 0 {
			continue
		}
		dir := fwd[i]
		if dir == nil {
			return nil, fmt.Errorf("frame %d: ego never moves: %w", r.Frame, ErrUndefinedDirection)
		}
		origin := r.Ego.World.Vec()
		for j := range r.Detections {
			d := &r.Detections[j]
			if len(d.Distance) < 2 {
				return nil, fmt.Errorf("%w: frame %d object %d has no distance", ErrMalformedInput, r.Frame, d.ObjectID)
			}
			dx, dy := d.Distance[0], d.Distance[1]
			side := Perpendicular(*dir, dx > 0)
			w := r2.Add(origin, r2.Add(r2.Scale(dy, *dir), r2.Scale(math.Abs(dx), side)))

			p := Pt(w.X, w.Y)
			lat, lon := proj.Unproject(w.X, w.Y)
			d.World = &p
			d.Latitude, d.Longitude = f64(lat), f64(lon)
			d.Kind = Native
		}
	}
	return out, nil
}

// headings returns the unit ego forward vector per frame, nil where none
// can be defined.
func headings(frames []FrameRecord) []*r2.Vec {
	raw := make([]*r2.Vec, len(frames))
	for i := 1; i < len(frames); i++ {
		move := r2.Sub(frames[i].Ego.World.Vec(), frames[i-1].Ego.World.Vec())
		if u, err := UnitVector(move); err == nil {
			raw[i] = &u
		}
	}
	if len(frames) > 1 {
		raw[0] = raw[1]
	}

	out := make([]*r2.Vec, len(frames))
	var last *r2.Vec
	for i, v := range raw {
		if v != nil {
			last = v
		} else if last != nil {
			monitoring.Logf("transform: ego stationary at frame %d, reusing previous heading", frames[i].Frame)
		}
		out[i] = last
	}
	// Leading stationary frames take the first defined heading.
	var next *r2.Vec
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != nil {
			next = out[i]
			continue
		}
		out[i] = next
	}
	return out
}
