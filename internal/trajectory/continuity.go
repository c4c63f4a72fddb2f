package trajectory

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// sighting locates one detection inside a record collection.
type sighting struct {
	rec, det int
	frame    int
	pos      r2.Vec
}

// sightings groups detections by object id, in frame order. ids lists the
// objects in order of first appearance.
func sightings(frames []FrameRecord) (ids []int, byObj map[int][]sighting, err error) {
	byObj = make(map[int][]sighting)
	for i, r := range frames {
		for j, d := range r.Detections {
			if d.World == nil {
				return nil, nil, fmt.Errorf("%w: frame %d object %d has no world position", ErrMalformedInput, r.Frame, d.ObjectID)
			}
			if _, ok := byObj[d.ObjectID]; !ok {
				ids = append(ids, d.ObjectID)
			}
			byObj[d.ObjectID] = append(byObj[d.ObjectID], sighting{rec: i, det: j, frame: r.Frame, pos: d.World.Vec()})
		}
	}
	return ids, byObj, nil
}

// FilterTracks removes detections whose direction of travel jumps more
// than TrackAngleThreshold from the object's established track.
//
// The first sighting is always kept. A sighting more than TrackGapFrames
// after the previous raw sighting is kept unconditionally. The second
// kept point is judged against the first sighting at least
// TrackLookaheadFrames after the first, when there is one. Every later
// point is judged against the direction into the last kept point from the
// latest kept point at a different position. Rejected points never enter
// the history.
func FilterTracks(frames []FrameRecord, p Params) ([]FrameRecord, error) {
	ids, byObj, err := sightings(frames)
	if err != nil {
		return nil, err
	}

	type key struct{ rec, obj int }
	rejected := make(map[key]bool)

	for _, id := range ids {
		track := byObj[id]
		if len(track) < 2 {
			continue
		}
		for _, s := range rejectedSightings(track, p) {
			rejected[key{s.rec, id}] = true
			monitoring.Logf("continuity: dropping object %d at frame %d", id, s.frame)
		}
	}

	out := CloneFrames(frames)
	if len(rejected) == 0 {
		return out, nil
	}
	for i := range out {
		kept := out[i].Detections[:0]
		for _, d := range out[i].Detections {
			if !rejected[key{i, d.ObjectID}] {
				kept = append(kept, d)
			}
		}
		out[i].Detections = kept
	}
	return out, nil
}

func rejectedSightings(track []sighting, p Params) []sighting {
	first := track[0]
	var ahead *sighting
	for i := 1; i < len(track); i++ {
		if track[i].frame >= first.frame+p.TrackLookaheadFrames {
			ahead = &track[i]
			break
		}
	}

	valid := []sighting{first}
	var rejected []sighting
	for i := 1; i < len(track); i++ {
		cand := track[i]
		var ok bool
		switch {
		case cand.frame-track[i-1].frame > p.TrackGapFrames:
			ok = true
		case len(valid) == 1:
			ok = ahead == nil ||
				AngleBetween(r2.Sub(cand.pos, first.pos), r2.Sub(ahead.pos, first.pos)) <= p.TrackAngleThreshold
		default:
			b := valid[len(valid)-1]
			ref, moved := lastHeading(valid)
			ok = !moved || AngleBetween(ref, r2.Sub(cand.pos, b.pos)) <= p.TrackAngleThreshold
		}
		if ok {
			valid = append(valid, cand)
		} else {
			rejected = append(rejected, cand)
		}
	}
	return rejected
}

// lastHeading is the displacement into the last kept point, skipping kept
// points at the same position. moved is false while the track has not
// moved at all.
func lastHeading(valid []sighting) (v r2.Vec, moved bool) {
	b := valid[len(valid)-1]
	for k := len(valid) - 2; k >= 0; k-- {
		if valid[k].pos != b.pos {
			return r2.Sub(b.pos, valid[k].pos), true
		}
	}
	return r2.Vec{}, false
}
