package trajectory

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// observation is one sighting of an object as seen by the densifier.
type observation struct {
	rec, det int
	frame    int
	pos      r2.Vec
	vel, yaw float64
}

// objectTrack accumulates the sightings of one object needed for gap
// filling and edge extrapolation.
type objectTrack struct {
	first        *observation
	second       *observation
	secondToLast *observation
	last         *observation

	// pending is the segment start still waiting for a velocity.
	pending *observation
}

// Densify fills every object's track so it has a record in each frame.
//
// Each sighting after the first gets velocity and yaw from the previous
// sighting of the same object; the first copies them from the second.
// Frames strictly between two sightings receive OnScreen records. Objects
// seen at least twice are extrapolated to every earlier frame
// (BeforeEntry) and later frame (AfterExit). Objects seen once are left
// alone. Frames that already hold a record for the object are never
// touched, so densifying a dense collection adds nothing.
func Densify(frames []FrameRecord, proj Projector, p Params) ([]FrameRecord, error) {
	ids, _, err := sightings(frames)
	if err != nil {
		return nil, err
	}
	out := CloneFrames(frames)

	type key struct{ rec, obj int }
	present := make(map[key]bool)
	for i, r := range out {
		for _, d := range r.Detections {
			present[key{i, d.ObjectID}] = true
		}
	}

	extra := make([][]Detection, len(out))
	synth := func(rec, obj int, est Estimate, kind Kind) {
		lat, lon := proj.Unproject(est.Pos.X, est.Pos.Y)
		pt := Pt(est.Pos.X, est.Pos.Y)
		extra[rec] = append(extra[rec], Detection{
			ObjectID:  obj,
			World:     &pt,
			Latitude:  f64(lat),
			Longitude: f64(lon),
			Velocity:  f64(est.Velocity),
			Yaw:       f64(est.Yaw),
			Kind:      kind,
		})
	}
	setMotion := func(o *observation, vel, yaw float64) {
		o.vel, o.yaw = vel, yaw
		d := &out[o.rec].Detections[o.det]
		d.Velocity, d.Yaw = f64(vel), f64(yaw)
	}

	tracks := make(map[int]*objectTrack, len(ids))
	for i := range out {
		for j := range out[i].Detections {
			d := &out[i].Detections[j]
			obs := &observation{rec: i, det: j, frame: out[i].Frame, pos: d.World.Vec()}

			tr, seen := tracks[d.ObjectID]
			if !seen {
				tracks[d.ObjectID] = &objectTrack{first: obs, last: obs, pending: obs}
				continue
			}

			prev := tr.last
			gap := obs.frame - prev.frame
			if p.MaxBridgeFrames > 0 && gap > p.MaxBridgeFrames {
				monitoring.Logf("densify: object %d unseen for %d frames before frame %d, not bridging", d.ObjectID, gap, obs.frame)
				tr.secondToLast, tr.last, tr.pending = nil, obs, obs
				continue
			}

			vel, err := SpeedKMH(prev.pos, obs.pos, p.frameSeconds(gap))
			if err != nil {
				return nil, err
			}
			setMotion(obs, vel, Heading(r2.Sub(obs.pos, prev.pos)))
			if tr.pending != nil {
				setMotion(tr.pending, obs.vel, obs.yaw)
				tr.pending = nil
			}

			for k := prev.rec + 1; k < i; k++ {
				if present[key{k, d.ObjectID}] {
					continue
				}
				est := EstimateAt(out[k].Frame, prev.frame, obs.frame, prev.pos, obs.pos, 0, obs.vel)
				synth(k, d.ObjectID, est, OnScreen)
			}

			if tr.second == nil && prev == tr.first {
				tr.second = obs
			}
			tr.secondToLast, tr.last = prev, obs
		}
	}

	for _, id := range ids {
		tr := tracks[id]
		if tr.second == nil {
			continue
		}
		a, b := tr.first, tr.second
		for k := range out {
			if out[k].Frame < a.frame && !present[key{k, id}] {
				synth(k, id, EstimateAt(out[k].Frame, a.frame, b.frame, a.pos, b.pos, a.vel, b.vel), BeforeEntry)
			}
		}
		if tr.secondToLast == nil {
			continue
		}
		a, b = tr.secondToLast, tr.last
		for k := range out {
			if out[k].Frame > b.frame && !present[key{k, id}] {
				synth(k, id, EstimateAt(out[k].Frame, a.frame, b.frame, a.pos, b.pos, a.vel, b.vel), AfterExit)
			}
		}
	}

	for k := range out {
		out[k].Detections = append(out[k].Detections, extra[k]...)
	}
	return out, nil
}
