package trajectory

// Smooth runs repeat passes of three-point smoothing over detections.
//
// A pass walks the interior records in frame order and updates them in
// place. A detection is replaced by the interpolation between its previous
// neighbour, already smoothed in this pass, and its next neighbour, not yet
// touched: position along prev→next at the frame ratio, the next record's
// velocity, and the heading of the move from prev. Elevation, when all
// three points carry it, is interpolated by the same ratio. Every object
// in the first record can serve as a previous neighbour; after that only
// objects smoothed in the previous record can. Which objects appear in
// which frames never changes.
func Smooth(frames []FrameRecord, proj Projector, repeat int) ([]FrameRecord, error) {
	if _, _, err := sightings(frames); err != nil {
		return nil, err
	}
	out := CloneFrames(frames)
	for pass := 0; pass < repeat; pass++ {
		smoothPass(out, proj)
	}
	return out, nil
}

func smoothPass(frames []FrameRecord, proj Projector) {
	if len(frames) < 3 {
		return
	}
	prev := byObject(frames[0])
	for i := 1; i+1 < len(frames); i++ {
		next := byObject(frames[i+1])
		f1, f, f2 := frames[i-1].Frame, frames[i].Frame, frames[i+1].Frame

		smoothed := make(map[int]Detection, len(frames[i].Detections))
		for j := range frames[i].Detections {
			d := &frames[i].Detections[j]
			a, okA := prev[d.ObjectID]
			b, okB := next[d.ObjectID]
			if !okA || !okB {
				continue
			}
			var v2 float64
			if b.Velocity != nil {
				v2 = *b.Velocity
			} else if d.Velocity != nil {
				v2 = *d.Velocity
			}
			est := EstimateAt(f, f1, f2, a.World.Vec(), b.World.Vec(), 0, v2)

			pt := d.World.WithVec(est.Pos)
			if pt.HasZ && a.World.HasZ && b.World.HasZ {
				r := float64(f-f1) / float64(f2-f1)
				pt.Z = a.World.Z + (b.World.Z-a.World.Z)*r
			}
			lat, lon := proj.Unproject(est.Pos.X, est.Pos.Y)
			d.World = &pt
			d.Latitude, d.Longitude = f64(lat), f64(lon)
			d.Velocity = f64(est.Velocity)
			d.Yaw = f64(est.Yaw)
			smoothed[d.ObjectID] = *d
		}
		prev = smoothed
	}
}

func byObject(r FrameRecord) map[int]Detection {
	m := make(map[int]Detection, len(r.Detections))
	for _, d := range r.Detections {
		m[d.ObjectID] = d
	}
	return m
}
