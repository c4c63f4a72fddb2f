package roadnet

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// Corrector snaps ego and detection positions onto a lane network.
type Corrector struct {
	net     *Network
	proj    trajectory.Projector
	targets *Targets
}

// NewCorrector checks that the artifact zone matches the lane document.
// targets may be nil.
func NewCorrector(net *Network, artifactEPSG string, proj trajectory.Projector, targets *Targets) (*Corrector, error) {
	if artifactEPSG != net.EPSG {
		return nil, fmt.Errorf("%w: artifact EPSG %q, lane document EPSG %q", trajectory.ErrInconsistentReference, artifactEPSG, net.EPSG)
	}
	return &Corrector{net: net, proj: proj, targets: targets}, nil
}

func (c *Corrector) lanes(allow AllowList) ([]Lane, error) {
	lanes := c.net.Filter(allow)
	if len(lanes) == 0 {
		return nil, fmt.Errorf("%w: no lanes match the correction targets", trajectory.ErrConfiguration)
	}
	return lanes, nil
}

// CorrectEgo snaps every ego position and returns the corrected frames
// with the lanes that were used, suitable for Targets.Self.
func (c *Corrector) CorrectEgo(frames []trajectory.FrameRecord) ([]trajectory.FrameRecord, *TargetSet, error) {
	lanes, err := c.lanes(c.targets.SelfAllow())
	if err != nil {
		return nil, nil, err
	}
	out := trajectory.CloneFrames(frames)
	used := newUsage[struct{}]()
	for i := range out {
		ego := out[i].Ego
		if ego == nil {
			return nil, nil, fmt.Errorf("%w: frame %d has no ego state", trajectory.ErrMalformedInput, out[i].Frame)
		}
		s, err := snap(lanes, ego.World)
		if err != nil {
			return nil, nil, fmt.Errorf("frame %d ego: %w", out[i].Frame, err)
		}
		ego.World = c.snapped(s)
		ego.Latitude, ego.Longitude = c.proj.Unproject(s.Pos[0], s.Pos[1])
		ref := s.Lane.Ref()
		ego.RoadCorrection = &ref
		used.add(struct{}{}, ref)
	}
	return out, &TargetSet{Targets: used.refs[struct{}{}]}, nil
}

// DetectionOptions narrows which detections are moved.
type DetectionOptions struct {
	// Kind, when set, restricts correction to detections of that kind.
	// Other detections only take the elevation of their nearest lane.
	Kind *trajectory.Kind
}

// CorrectDetections snaps detections and returns the corrected frames
// with the lanes used per object, suitable for Targets.Detections.
//
// An object listed in the correction targets is only snapped onto its
// listed lanes. When correcting before-entry records, each object's
// before-entry records are instead locked to the lane its first
// following sighting snaps to.
func (c *Corrector) CorrectDetections(frames []trajectory.FrameRecord, opts DetectionOptions) ([]trajectory.FrameRecord, []ObjectTargets, error) {
	allow := c.targets.ObjectAllow()
	if opts.Kind != nil && *opts.Kind == trajectory.BeforeEntry {
		locks, err := c.entryLocks(frames, allow)
		if err != nil {
			return nil, nil, err
		}
		allow = locks
	}

	out := trajectory.CloneFrames(frames)
	cache := make(map[int][]Lane)
	used := newUsage[int]()
	for i := range out {
		for j := range out[i].Detections {
			d := &out[i].Detections[j]
			if d.World == nil {
				return nil, nil, fmt.Errorf("%w: frame %d object %d has no world position", trajectory.ErrMalformedInput, out[i].Frame, d.ObjectID)
			}
			lanes, ok := cache[d.ObjectID]
			if !ok {
				var err error
				if lanes, err = c.lanes(allow[d.ObjectID]); err != nil {
					return nil, nil, fmt.Errorf("object %d: %w", d.ObjectID, err)
				}
				cache[d.ObjectID] = lanes
			}
			s, err := snap(lanes, *d.World)
			if err != nil {
				return nil, nil, fmt.Errorf("frame %d object %d: %w", out[i].Frame, d.ObjectID, err)
			}

			if opts.Kind != nil && *opts.Kind != d.Kind {
				if s.Lane.HasZ {
					d.World.Z, d.World.HasZ = s.Z, true
				}
				continue
			}
			w := c.snapped(s)
			d.World = &w
			lat, lon := c.proj.Unproject(s.Pos[0], s.Pos[1])
			d.Latitude, d.Longitude = &lat, &lon
			ref := s.Lane.Ref()
			d.RoadCorrection = &ref
			used.add(d.ObjectID, ref)
		}
	}

	targets := make([]ObjectTargets, 0, len(used.order))
	for _, id := range used.order {
		targets = append(targets, ObjectTargets{ID: id, Targets: used.refs[id]})
	}
	return out, targets, nil
}

// entryLocks finds, for every object with before-entry records, the lane
// its first later non-before-entry record snaps to.
func (c *Corrector) entryLocks(frames []trajectory.FrameRecord, allow map[int]AllowList) (map[int]AllowList, error) {
	locks := make(map[int]AllowList)
	pending := make(map[int]bool)
	for _, r := range frames {
		for _, d := range r.Detections {
			switch {
			case d.Kind == trajectory.BeforeEntry:
				if _, done := locks[d.ObjectID]; !done {
					pending[d.ObjectID] = true
				}
			case pending[d.ObjectID]:
				if d.World == nil {
					return nil, fmt.Errorf("%w: frame %d object %d has no world position", trajectory.ErrMalformedInput, r.Frame, d.ObjectID)
				}
				lanes, err := c.lanes(allow[d.ObjectID])
				if err != nil {
					return nil, fmt.Errorf("object %d: %w", d.ObjectID, err)
				}
				s, err := snap(lanes, *d.World)
				if err != nil {
					return nil, fmt.Errorf("frame %d object %d: %w", r.Frame, d.ObjectID, err)
				}
				locks[d.ObjectID] = NewAllowList([]trajectory.RoadCorrection{s.Lane.Ref()})
				delete(pending, d.ObjectID)
				monitoring.Logf("roadnet: object %d enters on road %s lane %s", d.ObjectID, s.Lane.Road, s.Lane.ID)
			}
		}
	}
	return locks, nil
}

func snap(lanes []Lane, p trajectory.Point) (Snap, error) {
	s, ok := Nearest(lanes, orb.Point{p.X, p.Y})
	if !ok {
		return Snap{}, fmt.Errorf("%w: position (%g, %g) cannot be snapped", trajectory.ErrMalformedInput, p.X, p.Y)
	}
	return s, nil
}

func (c *Corrector) snapped(s Snap) trajectory.Point {
	p := trajectory.Pt(s.Pos[0], s.Pos[1])
	if s.Lane.HasZ {
		p.Z, p.HasZ = s.Z, true
	}
	return p
}
