package trajectory

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// AccelSample is one accelerometer row.
type AccelSample struct {
	Frame    int
	AccX     float64
	AccY     float64
	AccZ     float64
	Velocity float64
}

// BuildEgo produces exactly one EgoState per frame between the first and
// last detection record. Frames missing from the detection log are
// inserted as empty records.
//
// Frames with a matching GPS fix are projected directly; their velocity
// and yaw come from the displacement to the previous matched frame over
// the elapsed GPS time. The first matched frame copies velocity and yaw
// from the second. All other frames are estimated from the nearest
// enclosing matched frames, or the two nearest matched frames at either
// end. Fixes on frames that were filled in are ignored. Fixes should
// already have been through FilterFixes.
func BuildEgo(frames []FrameRecord, fixes []Fix, accel []AccelSample, proj Projector, p Params) ([]FrameRecord, error) {
	if err := Validate(frames); err != nil {
		return nil, err
	}
	out := fillFrames(frames)
	for i := range out {
		out[i].Ego = nil
	}

	byFrame := make(map[int]Fix, len(fixes))
	for _, f := range fixes {
		if f.Status == FixNG {
			continue
		}
		if _, dup := byFrame[f.Frame]; !dup {
			byFrame[f.Frame] = f
		}
	}

	// Only frames present in the detection log count; a fix on a filled
	// frame is not an overlap.
	var matched []int // indices into out
	for _, r := range frames {
		if _, ok := byFrame[r.Frame]; ok {
			matched = append(matched, r.Frame-out[0].Frame)
		}
	}
	if len(matched) < 2 {
		return nil, fmt.Errorf("%w: %d frames have both GPS and detections, need 2", ErrInsufficientOverlap, len(matched))
	}

	accel = sortedAccel(accel)
	for k, idx := range matched {
		fix := byFrame[out[idx].Frame]
		x, y := proj.Project(fix.Lat, fix.Lon)
		ego := &EgoState{World: Pt(x, y), Latitude: fix.Lat, Longitude: fix.Lon}

		if k > 0 {
			prevIdx := matched[k-1]
			prevFix := byFrame[out[prevIdx].Frame]
			dt, err := elapsedSeconds(prevFix, fix, p)
			if err != nil {
				return nil, err
			}
			from := out[prevIdx].Ego.World.Vec()
			v, err := SpeedKMH(from, ego.World.Vec(), dt)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", fix.Frame, err)
			}
			ego.Velocity = v
			ego.Yaw = Heading(r2.Sub(ego.World.Vec(), from))
		}
		attachAccel(ego, out[idx].Frame, accel, p)
		out[idx].Ego = ego
	}
	first, second := out[matched[0]].Ego, out[matched[1]].Ego
	first.Velocity, first.Yaw = second.Velocity, second.Yaw

	next := 0 // first matched position with out index > i
	for i := range out {
		for next < len(matched) && matched[next] <= i {
			next++
		}
		if out[i].Ego != nil {
			continue
		}
		var a, b int
		switch {
		case next == 0:
			a, b = matched[0], matched[1]
		case next == len(matched):
			a, b = matched[len(matched)-2], matched[len(matched)-1]
		default:
			a, b = matched[next-1], matched[next]
		}
		ea, eb := out[a].Ego, out[b].Ego
		est := EstimateAt(out[i].Frame, out[a].Frame, out[b].Frame, ea.World.Vec(), eb.World.Vec(), ea.Velocity, eb.Velocity)
		lat, lon := proj.Unproject(est.Pos.X, est.Pos.Y)
		out[i].Ego = &EgoState{
			World:     Pt(est.Pos.X, est.Pos.Y),
			Latitude:  lat,
			Longitude: lon,
			Velocity:  est.Velocity,
			Yaw:       est.Yaw,
		}
	}
	return out, nil
}

// elapsedSeconds decodes the GPS clock for two fixes. When the clock does
// not advance the frame delta is used instead.
func elapsedSeconds(from, to Fix, p Params) (float64, error) {
	ts, err := DecodeTimestamp(from.Time, p.FPS)
	if err != nil {
		return 0, fmt.Errorf("frame %d: %w", from.Frame, err)
	}
	te, err := DecodeTimestamp(to.Time, p.FPS)
	if err != nil {
		return 0, fmt.Errorf("frame %d: %w", to.Frame, err)
	}
	if dt := te - ts; dt > 0 {
		return dt, nil
	}
	monitoring.Logf("ego: GPS clock did not advance between frames %d and %d, using frame count", from.Frame, to.Frame)
	return p.frameSeconds(to.Frame - from.Frame), nil
}

// fillFrames copies frames and inserts empty records for missing indices.
func fillFrames(frames []FrameRecord) []FrameRecord {
	if len(frames) == 0 {
		return nil
	}
	lo, hi := frames[0].Frame, frames[len(frames)-1].Frame
	out := make([]FrameRecord, 0, hi-lo+1)
	j := 0
	for f := lo; f <= hi; f++ {
		if frames[j].Frame == f {
			out = append(out, frames[j].Clone())
			j++
			continue
		}
		out = append(out, FrameRecord{Frame: f})
	}
	return out
}

func sortedAccel(in []AccelSample) []AccelSample {
	out := append([]AccelSample(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out
}

// attachAccel copies the latest accelerometer sample at or before frame
// onto ego, unless it is at least MaxAccAge old.
func attachAccel(ego *EgoState, frame int, accel []AccelSample, p Params) {
	i := sort.Search(len(accel), func(i int) bool { return accel[i].Frame > frame }) - 1
	if i < 0 {
		return
	}
	s := accel[i]
	if p.frameSeconds(frame-s.Frame) >= p.MaxAccAge {
		return
	}
	ego.AccX, ego.AccY, ego.AccZ = f64(s.AccX), f64(s.AccY), f64(s.AccZ)
}
