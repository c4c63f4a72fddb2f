// Package trajectory reconstructs dense, world-referenced trajectories for
// an ego vehicle and the vehicles it detects.
//
// The pipeline stages are pure functions over a frame-indexed record
// collection: each stage receives a slice of FrameRecord and returns a new
// slice, leaving its input untouched.
package trajectory

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a world-frame position in metres. Z is carried through from
// lane geometry but never derived.
type Point struct {
	X, Y float64
	Z    float64
	HasZ bool
}

// Pt returns a planar point.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Vec returns the planar part of p.
func (p Point) Vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// WithVec replaces the planar part of p, keeping elevation.
func (p Point) WithVec(v r2.Vec) Point {
	p.X, p.Y = v.X, v.Y
	return p
}

// MarshalJSON encodes the point as [x, y] or [x, y, z].
func (p Point) MarshalJSON() ([]byte, error) {
	if p.HasZ {
		return json.Marshal([3]float64{p.X, p.Y, p.Z})
	}
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON accepts a two or three element coordinate array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var xs []float64
	if err := json.Unmarshal(data, &xs); err != nil {
		return fmt.Errorf("%w: coordinate: %v", ErrMalformedInput, err)
	}
	switch len(xs) {
	case 2:
		*p = Point{X: xs[0], Y: xs[1]}
	case 3:
		*p = Point{X: xs[0], Y: xs[1], Z: xs[2], HasZ: true}
	default:
		return fmt.Errorf("%w: coordinate needs 2 or 3 values, got %d", ErrMalformedInput, len(xs))
	}
	return nil
}

// Kind records how a detection came to exist.
type Kind int

const (
	// Native detections were observed by the camera.
	Native Kind = iota
	// BeforeEntry records are extrapolated before the first sighting.
	BeforeEntry
	// OnScreen records fill gaps between two sightings.
	OnScreen
	// AfterExit records are extrapolated after the last sighting.
	AfterExit
)

var kindNames = map[Kind]string{
	BeforeEntry: "beforeIn",
	OnScreen:    "onScreen",
	AfterExit:   "afterOut",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "native"
}

// ParseKind maps a wire name back to a Kind. The empty string and
// "native" both denote Native.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "native":
		return Native, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return Native, fmt.Errorf("%w: unknown interpolation_type %q", ErrMalformedInput, s)
}

// MarshalJSON encodes Native as null.
func (k Kind) MarshalJSON() ([]byte, error) {
	if k == Native {
		return []byte("null"), nil
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes null or a wire name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: interpolation_type: %v", ErrMalformedInput, err)
	}
	if s == nil {
		*k = Native
		return nil
	}
	v, err := ParseKind(*s)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// RoadCorrection names the lane a position was snapped onto.
type RoadCorrection struct {
	Road string `json:"road"`
	Lane string `json:"lane"`
}

// EgoState is the camera vehicle's state in one frame.
type EgoState struct {
	World     Point    `json:"world_coordinate"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Velocity  float64  `json:"velocity"`
	Yaw       float64  `json:"yaw"`
	AccX      *float64 `json:"acc_x"`
	AccY      *float64 `json:"acc_y"`
	AccZ      *float64 `json:"acc_z"`

	RoadCorrection *RoadCorrection `json:"road_correction,omitempty"`
}

// Detection is one observed or synthesized vehicle in one frame. Fields
// that a stage has not computed yet are nil.
type Detection struct {
	ObjectID       int       `json:"obj_id"`
	DetectionPoint []int     `json:"detection_point,omitempty"`
	Distance       []float64 `json:"distance,omitempty"` // dx, dy, d
	Angle          []float64 `json:"angle,omitempty"`    // psi_x, psi_y

	World     *Point   `json:"world_coordinate,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Velocity  *float64 `json:"velocity,omitempty"`
	Yaw       *float64 `json:"yaw,omitempty"`
	Kind      Kind     `json:"interpolation_type"`

	RoadCorrection *RoadCorrection `json:"road_correction,omitempty"`
}

// FrameRecord holds everything known about one video frame.
type FrameRecord struct {
	Frame      int         `json:"frame"`
	File       string      `json:"file"`
	Ego        *EgoState   `json:"-"`
	Detections []Detection `json:"detections"`
}

type frameRecordJSON struct {
	Frame      int             `json:"frame"`
	File       string          `json:"file"`
	Self       json.RawMessage `json:"self"`
	Detections []Detection     `json:"detections"`
}

// MarshalJSON writes an absent ego state as an empty object.
func (r FrameRecord) MarshalJSON() ([]byte, error) {
	out := frameRecordJSON{Frame: r.Frame, File: r.File, Detections: r.Detections}
	if out.Detections == nil {
		out.Detections = []Detection{}
	}
	if r.Ego == nil {
		out.Self = json.RawMessage("{}")
	} else {
		b, err := json.Marshal(r.Ego)
		if err != nil {
			return nil, err
		}
		out.Self = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON treats a missing, null or position-less "self" as absent.
func (r *FrameRecord) UnmarshalJSON(data []byte) error {
	var in frameRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Frame, r.File, r.Detections = in.Frame, in.File, in.Detections
	r.Ego = nil

	if len(in.Self) == 0 || string(in.Self) == "null" {
		return nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(in.Self, &probe); err != nil {
		return fmt.Errorf("%w: frame %d self: %v", ErrMalformedInput, in.Frame, err)
	}
	if _, ok := probe["world_coordinate"]; !ok {
		return nil
	}
	var ego EgoState
	if err := json.Unmarshal(in.Self, &ego); err != nil {
		return fmt.Errorf("frame %d self: %w", in.Frame, err)
	}
	r.Ego = &ego
	return nil
}

// Clone returns a deep copy of d.
func (d Detection) Clone() Detection {
	out := d
	out.DetectionPoint = cloneSlice(d.DetectionPoint)
	out.Distance = cloneSlice(d.Distance)
	out.Angle = cloneSlice(d.Angle)
	if d.World != nil {
		w := *d.World
		out.World = &w
	}
	out.Latitude = clonePtr(d.Latitude)
	out.Longitude = clonePtr(d.Longitude)
	out.Velocity = clonePtr(d.Velocity)
	out.Yaw = clonePtr(d.Yaw)
	if d.RoadCorrection != nil {
		rc := *d.RoadCorrection
		out.RoadCorrection = &rc
	}
	return out
}

// Clone returns a deep copy of e.
func (e *EgoState) Clone() *EgoState {
	if e == nil {
		return nil
	}
	out := *e
	out.AccX = clonePtr(e.AccX)
	out.AccY = clonePtr(e.AccY)
	out.AccZ = clonePtr(e.AccZ)
	if e.RoadCorrection != nil {
		rc := *e.RoadCorrection
		out.RoadCorrection = &rc
	}
	return &out
}

// Clone returns a deep copy of r.
func (r FrameRecord) Clone() FrameRecord {
	out := FrameRecord{Frame: r.Frame, File: r.File, Ego: r.Ego.Clone()}
	if r.Detections != nil {
		out.Detections = make([]Detection, len(r.Detections))
		for i, d := range r.Detections {
			out.Detections[i] = d.Clone()
		}
	}
	return out
}

// CloneFrames deep-copies a record collection.
func CloneFrames(frames []FrameRecord) []FrameRecord {
	out := make([]FrameRecord, len(frames))
	for i, r := range frames {
		out[i] = r.Clone()
	}
	return out
}

// Validate checks collection invariants: strictly increasing frame
// indices, positive object ids, and at most one detection per object per
// frame.
func Validate(frames []FrameRecord) error {
	for i, r := range frames {
		if i > 0 && r.Frame <= frames[i-1].Frame {
			return fmt.Errorf("%w: frame %d follows frame %d", ErrMalformedInput, r.Frame, frames[i-1].Frame)
		}
		seen := make(map[int]bool, len(r.Detections))
		for _, d := range r.Detections {
			if d.ObjectID <= 0 {
				return fmt.Errorf("%w: frame %d: object id %d", ErrMalformedInput, r.Frame, d.ObjectID)
			}
			if seen[d.ObjectID] {
				return fmt.Errorf("%w: frame %d: object %d appears twice", ErrMalformedInput, r.Frame, d.ObjectID)
			}
			seen[d.ObjectID] = true
		}
	}
	return nil
}

func f64(v float64) *float64 { return &v }

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s...)
}
