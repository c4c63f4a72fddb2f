package trajectory

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Recompute derives ego and detection velocity and yaw again from
// consecutive positions. It is meant to run after map snapping has moved
// positions onto lane centerlines.
//
// A detection that has not moved since its previous sighting keeps its
// values; a stationary ego gets zero velocity and keeps the previous yaw.
// The first record copies ego motion from the second, and each of its
// detections copies from the same object in the second record. With
// limitYaw set, detection yaw is clamped to ego yaw ± DetectionYawLimit.
func Recompute(frames []FrameRecord, p Params, limitYaw bool) ([]FrameRecord, error) {
	out := CloneFrames(frames)
	if len(out) < 2 {
		return out, nil
	}
	for _, r := range out {
		if r.Ego == nil {
			return nil, fmt.Errorf("%w: frame %d has no ego state", ErrMalformedInput, r.Frame)
		}
	}

	type last struct {
		frame int
		pos   r2.Vec
	}
	seen := make(map[int]last)
	for _, d := range out[0].Detections {
		if d.World != nil {
			seen[d.ObjectID] = last{out[0].Frame, d.World.Vec()}
		}
	}

	for i := 1; i < len(out); i++ {
		r := &out[i]
		prev := out[i-1]
		from, to := prev.Ego.World.Vec(), r.Ego.World.Vec()
		if from == to {
			r.Ego.Velocity, r.Ego.Yaw = 0, prev.Ego.Yaw
		} else {
			v, err := SpeedKMH(from, to, p.frameSeconds(r.Frame-prev.Frame))
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", r.Frame, err)
			}
			r.Ego.Velocity, r.Ego.Yaw = v, Heading(r2.Sub(to, from))
		}

		for j := range r.Detections {
			d := &r.Detections[j]
			if d.World == nil {
				continue
			}
			cur := d.World.Vec()
			before, ok := seen[d.ObjectID]
			seen[d.ObjectID] = last{r.Frame, cur}
			if !ok || before.pos == cur {
				continue
			}
			v, err := SpeedKMH(before.pos, cur, p.frameSeconds(r.Frame-before.frame))
			if err != nil {
				return nil, fmt.Errorf("frame %d object %d: %w", r.Frame, d.ObjectID, err)
			}
			yaw := Heading(r2.Sub(cur, before.pos))
			if limitYaw {
				yaw = LimitYaw(r.Ego.Yaw, yaw, p.DetectionYawLimit)
			}
			d.Velocity, d.Yaw = f64(v), f64(yaw)
		}
	}

	first, second := &out[0], out[1]
	first.Ego.Velocity, first.Ego.Yaw = second.Ego.Velocity, second.Ego.Yaw
	next := byObject(second)
	for j := range first.Detections {
		d := &first.Detections[j]
		if n, ok := next[d.ObjectID]; ok {
			d.Velocity, d.Yaw = clonePtr(n.Velocity), clonePtr(n.Yaw)
		}
	}
	return out, nil
}

// LimitYaw returns yaw unchanged if it is within limit degrees of ref,
// otherwise the nearer of ref±limit. All angles are in [0, 360).
func LimitYaw(ref, yaw, limit float64) float64 {
	if angleDiff(ref, yaw) <= limit {
		return yaw
	}
	hi := math.Mod(ref+limit+360, 360)
	lo := math.Mod(ref-limit+360, 360)
	if angleDiff(hi, yaw) <= angleDiff(lo, yaw) {
		return hi
	}
	return lo
}

// angleDiff is the smallest absolute difference between two headings.
func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b+180, 360)
	if d < 0 {
		d += 360
	}
	return math.Abs(d - 180)
}
