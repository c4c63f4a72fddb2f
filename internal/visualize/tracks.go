package visualize

import (
	"sort"

	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// sample is one point of a track, already made relative to the origin.
type sample struct {
	Frame int
	X, Y  float64
	Speed *float64 // km/h
	Kind  trajectory.Kind
}

type tracks struct {
	Ego     []sample
	Objects map[int][]sample
	IDs     []int // sorted object ids
}

// collect splits frames into the ego track and one track per object,
// relative to the first ego position.
func collect(frames []trajectory.FrameRecord) (tracks, error) {
	origin, ok := firstEgo(frames)
	if !ok {
		return tracks{}, errNoEgo
	}
	t := tracks{Objects: make(map[int][]sample)}
	for _, r := range frames {
		if r.Ego != nil {
			v := r.Ego.Velocity
			t.Ego = append(t.Ego, sample{
				Frame: r.Frame,
				X:     r.Ego.World.X - origin.X,
				Y:     r.Ego.World.Y - origin.Y,
				Speed: &v,
			})
		}
		for _, d := range r.Detections {
			if d.World == nil {
				continue
			}
			t.Objects[d.ObjectID] = append(t.Objects[d.ObjectID], sample{
				Frame: r.Frame,
				X:     d.World.X - origin.X,
				Y:     d.World.Y - origin.Y,
				Speed: d.Velocity,
				Kind:  d.Kind,
			})
		}
	}
	for id := range t.Objects {
		t.IDs = append(t.IDs, id)
	}
	sort.Ints(t.IDs)
	return t, nil
}

func firstEgo(frames []trajectory.FrameRecord) (trajectory.Point, bool) {
	for _, r := range frames {
		if r.Ego != nil {
			return r.Ego.World, true
		}
	}
	return trajectory.Point{}, false
}
