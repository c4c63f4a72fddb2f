package roadnet

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// Two parallel eastbound lanes of road "1" at y=0 and y=4, and a
// northbound lane of road "2" at x=50. Offsets shift everything by
// (100, 200).
const laneDocJSON = `{
  "EPSG": "6677",
  "map_offset": ["100", 200],
  "roads": [
    {"id": 1, "lanes": [
      {"lane_id": "-1", "lane": "driving", "coordinate": [[-100, -200, 1], [-100, -200, 1], [0, -200, 3]]},
      {"lane_id": "-2", "lane": "driving", "coordinate": [[-100, -196, 1], [0, -196, 3]]}
    ]},
    {"id": "2", "lanes": [
      {"lane_id": "1", "lane": "driving", "coordinate": [[-50, -250, 0], [-50, -150, 0]]}
    ]}
  ]
}`

// planeProjector treats lat/lon as world x/y.
type planeProjector struct{}

func (planeProjector) Project(lat, lon float64) (float64, float64) { return lat, lon }
func (planeProjector) Unproject(x, y float64) (float64, float64)   { return x, y }

func network(t *testing.T) *Network {
	t.Helper()
	n, err := DecodeNetwork([]byte(laneDocJSON))
	require.NoError(t, err)
	return n
}

func TestDecodeNetwork(t *testing.T) {
	t.Parallel()
	n := network(t)
	assert.Equal(t, "6677", n.EPSG)
	assert.Equal(t, orb.Point{100, 200}, n.Offset)
	require.Len(t, n.Lanes, 3)

	l := n.Lanes[0]
	assert.Equal(t, "1", l.Road)
	assert.Equal(t, "-1", l.ID)
	assert.Equal(t, orb.LineString{{0, 0}, {100, 0}}, l.Line, "offset applied and repeated point dropped")
	assert.Equal(t, []float64{1, 3}, l.Z)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 0}}, l.Bound)
	assert.Equal(t, "2", n.Lanes[2].Road)
}

func TestDecodeNetwork_Malformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, in string
	}{
		{"not json", `[`},
		{"missing EPSG", `{"map_offset": [0, 0], "roads": []}`},
		{"missing offset", `{"EPSG": "6677", "roads": []}`},
		{"short offset", `{"EPSG": "6677", "map_offset": [0], "roads": []}`},
		{"bad offset", `{"EPSG": "6677", "map_offset": ["x", 0], "roads": []}`},
		{"missing roads", `{"EPSG": "6677", "map_offset": [0, 0]}`},
		{"missing lane id", `{"EPSG": "6677", "map_offset": [0, 0], "roads": [{"id": "1", "lanes": [{"coordinate": [[0, 0, 0]]}]}]}`},
		{"empty coordinates", `{"EPSG": "6677", "map_offset": [0, 0], "roads": [{"id": "1", "lanes": [{"lane_id": "1", "coordinate": []}]}]}`},
		{"one-value coordinate", `{"EPSG": "6677", "map_offset": [0, 0], "roads": [{"id": "1", "lanes": [{"lane_id": "1", "coordinate": [[0]]}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeNetwork([]byte(tt.in))
			assert.ErrorIs(t, err, trajectory.ErrMalformedInput)
		})
	}
}

func TestLaneProject(t *testing.T) {
	t.Parallel()
	l := network(t).Lanes[0]

	tests := []struct {
		name     string
		p        orb.Point
		want     orb.Point
		wantZ    float64
		wantDist float64
	}{
		{"perpendicular foot", orb.Point{30, 5}, orb.Point{30, 0}, 1.6, 5},
		{"already on line", orb.Point{50, 0}, orb.Point{50, 0}, 2, 0},
		{"before start clamps", orb.Point{-3, 4}, orb.Point{0, 0}, 1, 5},
		{"past end clamps", orb.Point{103, -4}, orb.Point{100, 0}, 3, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, z, d := l.Project(tt.p)
			assert.InDelta(t, tt.want[0], got[0], 1e-12)
			assert.InDelta(t, tt.want[1], got[1], 1e-12)
			assert.InDelta(t, tt.wantZ, z, 1e-12)
			assert.InDelta(t, tt.wantDist, d, 1e-12)
		})
	}
}

func TestNearest(t *testing.T) {
	t.Parallel()
	lanes := network(t).Lanes

	s, ok := Nearest(lanes, orb.Point{20, 3})
	require.True(t, ok)
	assert.Equal(t, "-2", s.Lane.ID)
	assert.InDelta(t, 1, s.Distance, 1e-12)

	s, ok = Nearest(lanes, orb.Point{49, 30})
	require.True(t, ok)
	assert.Equal(t, "2", s.Lane.Road)
	assert.InDelta(t, 50, s.Pos[0], 1e-12)
	assert.InDelta(t, 30, s.Pos[1], 1e-12)

	s, ok = Nearest(lanes, orb.Point{20, 2})
	require.True(t, ok)
	assert.Equal(t, "-1", s.Lane.ID, "ties go to the earlier lane")

	_, ok = Nearest(nil, orb.Point{0, 0})
	assert.False(t, ok)
}

func TestFilter(t *testing.T) {
	t.Parallel()
	n := network(t)
	assert.Len(t, n.Filter(nil), 3)

	got := n.Filter(NewAllowList([]trajectory.RoadCorrection{{Road: "1", Lane: "-2"}, {Road: "9", Lane: "1"}}))
	require.Len(t, got, 1)
	assert.Equal(t, "-2", got[0].ID)
}

func TestNewCorrector_EPSGMismatch(t *testing.T) {
	t.Parallel()
	_, err := NewCorrector(network(t), "6669", planeProjector{}, nil)
	assert.ErrorIs(t, err, trajectory.ErrInconsistentReference)
}

func egoFrames(pts ...orb.Point) []trajectory.FrameRecord {
	out := make([]trajectory.FrameRecord, len(pts))
	for i, p := range pts {
		out[i] = trajectory.FrameRecord{Frame: i, Ego: &trajectory.EgoState{World: trajectory.Pt(p[0], p[1]), Latitude: p[0], Longitude: p[1]}}
	}
	return out
}

func TestCorrectEgo(t *testing.T) {
	t.Parallel()
	c, err := NewCorrector(network(t), "6677", planeProjector{}, nil)
	require.NoError(t, err)

	frames := egoFrames(orb.Point{10, 0.5}, orb.Point{20, 3.5}, orb.Point{30, 0})
	out, used, err := c.CorrectEgo(frames)
	require.NoError(t, err)

	w := out[0].Ego.World
	assert.InDelta(t, 10, w.X, 1e-12)
	assert.InDelta(t, 0, w.Y, 1e-12)
	assert.True(t, w.HasZ)
	assert.InDelta(t, 1.2, w.Z, 1e-12)
	assert.InDelta(t, 4, out[1].Ego.World.Y, 1e-12)
	assert.Equal(t, &trajectory.RoadCorrection{Road: "1", Lane: "-2"}, out[1].Ego.RoadCorrection)
	assert.Equal(t, 30.0, out[2].Ego.Latitude)
	assert.Equal(t, []trajectory.RoadCorrection{{Road: "1", Lane: "-1"}, {Road: "1", Lane: "-2"}}, used.Targets)
	assert.InDelta(t, 0.5, frames[0].Ego.World.Y, 1e-12, "input is not mutated")
}

func TestCorrectEgo_Targets(t *testing.T) {
	t.Parallel()
	targets := &Targets{Self: &TargetSet{Targets: []trajectory.RoadCorrection{{Road: "1", Lane: "-1"}}}}
	c, err := NewCorrector(network(t), "6677", planeProjector{}, targets)
	require.NoError(t, err)

	out, _, err := c.CorrectEgo(egoFrames(orb.Point{20, 3.5}))
	require.NoError(t, err)
	assert.InDelta(t, 0, out[0].Ego.World.Y, 1e-12)

	targets.Self.Targets = []trajectory.RoadCorrection{{Road: "7", Lane: "1"}}
	_, _, err = c.CorrectEgo(egoFrames(orb.Point{20, 3.5}))
	assert.ErrorIs(t, err, trajectory.ErrConfiguration)
}

func det(obj int, x, y float64, kind trajectory.Kind) trajectory.Detection {
	p := trajectory.Pt(x, y)
	return trajectory.Detection{ObjectID: obj, World: &p, Kind: kind}
}

func TestCorrectDetections(t *testing.T) {
	t.Parallel()
	c, err := NewCorrector(network(t), "6677", planeProjector{}, nil)
	require.NoError(t, err)

	frames := []trajectory.FrameRecord{
		{Frame: 0, Detections: []trajectory.Detection{det(5, 10, 1, trajectory.Native), det(6, 49, 30, trajectory.Native)}},
		{Frame: 1, Detections: []trajectory.Detection{det(5, 20, 3, trajectory.OnScreen)}},
	}
	out, used, err := c.CorrectDetections(frames, DetectionOptions{})
	require.NoError(t, err)

	d := out[0].Detections[0]
	assert.InDelta(t, 0, d.World.Y, 1e-12)
	assert.InDelta(t, 10, *d.Latitude, 1e-12)
	assert.Equal(t, "-1", d.RoadCorrection.Lane)
	assert.InDelta(t, 4, out[1].Detections[0].World.Y, 1e-12)

	assert.Equal(t, []ObjectTargets{
		{ID: 5, Targets: []trajectory.RoadCorrection{{Road: "1", Lane: "-1"}, {Road: "1", Lane: "-2"}}},
		{ID: 6, Targets: []trajectory.RoadCorrection{{Road: "2", Lane: "1"}}},
	}, used)
}

func TestCorrectDetections_KindFilter(t *testing.T) {
	t.Parallel()
	c, err := NewCorrector(network(t), "6677", planeProjector{}, nil)
	require.NoError(t, err)

	frames := []trajectory.FrameRecord{
		{Frame: 0, Detections: []trajectory.Detection{det(5, 10, 1, trajectory.Native)}},
		{Frame: 1, Detections: []trajectory.Detection{det(5, 20, 1, trajectory.AfterExit)}},
	}
	kind := trajectory.AfterExit
	out, _, err := c.CorrectDetections(frames, DetectionOptions{Kind: &kind})
	require.NoError(t, err)

	native := out[0].Detections[0]
	assert.InDelta(t, 1, native.World.Y, 1e-12, "other kinds keep their plane position")
	assert.True(t, native.World.HasZ)
	assert.InDelta(t, 1.2, native.World.Z, 1e-12, "but take the lane elevation")
	assert.Nil(t, native.RoadCorrection)

	assert.InDelta(t, 0, out[1].Detections[0].World.Y, 1e-12)
	assert.NotNil(t, out[1].Detections[0].RoadCorrection)
}

func TestCorrectDetections_BeforeEntryLock(t *testing.T) {
	t.Parallel()
	c, err := NewCorrector(network(t), "6677", planeProjector{}, nil)
	require.NoError(t, err)

	// The before-entry record is nearer lane -1, but the first real
	// sighting is on lane -2, so the before-entry record follows it.
	frames := []trajectory.FrameRecord{
		{Frame: 0, Detections: []trajectory.Detection{det(5, 10, 1.5, trajectory.BeforeEntry)}},
		{Frame: 1, Detections: []trajectory.Detection{det(5, 20, 3.5, trajectory.Native)}},
		{Frame: 2, Detections: []trajectory.Detection{det(5, 30, 0.5, trajectory.Native)}},
	}
	kind := trajectory.BeforeEntry
	out, used, err := c.CorrectDetections(frames, DetectionOptions{Kind: &kind})
	require.NoError(t, err)

	assert.InDelta(t, 4, out[0].Detections[0].World.Y, 1e-12)
	assert.Equal(t, "-2", out[0].Detections[0].RoadCorrection.Lane)
	assert.InDelta(t, 3.5, out[1].Detections[0].World.Y, 1e-12)
	assert.InDelta(t, 0.5, out[2].Detections[0].World.Y, 1e-12)
	assert.Equal(t, []ObjectTargets{{ID: 5, Targets: []trajectory.RoadCorrection{{Road: "1", Lane: "-2"}}}}, used)
}

func TestCorrectDetections_ObjectTargets(t *testing.T) {
	t.Parallel()
	targets := &Targets{Detections: []ObjectTargets{{ID: 5, Targets: []trajectory.RoadCorrection{{Road: "1", Lane: "-2"}}}}}
	c, err := NewCorrector(network(t), "6677", planeProjector{}, targets)
	require.NoError(t, err)

	frames := []trajectory.FrameRecord{
		{Frame: 0, Detections: []trajectory.Detection{det(5, 10, 0, trajectory.Native), det(6, 10, 1, trajectory.Native)}},
	}
	out, _, err := c.CorrectDetections(frames, DetectionOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 4, out[0].Detections[0].World.Y, 1e-12)
	assert.InDelta(t, 0, out[0].Detections[1].World.Y, 1e-12, "unlisted objects use every lane")
}

func TestCorrectDetections_RequiresWorld(t *testing.T) {
	t.Parallel()
	c, err := NewCorrector(network(t), "6677", planeProjector{}, nil)
	require.NoError(t, err)
	frames := []trajectory.FrameRecord{{Frame: 0, Detections: []trajectory.Detection{{ObjectID: 1}}}}
	_, _, err = c.CorrectDetections(frames, DetectionOptions{})
	assert.ErrorIs(t, err, trajectory.ErrMalformedInput)
}

func TestTargetsRoundTrip(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	path := "/run/" + TargetsFileName

	self := &TargetSet{Targets: []trajectory.RoadCorrection{{Road: "1", Lane: "-1"}}}
	require.NoError(t, SaveTargets(mfs, path, &Targets{Self: self}))

	dets := []ObjectTargets{{ID: 5, Targets: []trajectory.RoadCorrection{{Road: "2", Lane: "1"}}}}
	require.NoError(t, SaveTargets(mfs, path, &Targets{Detections: dets}))

	got, err := LoadTargets(mfs, path)
	require.NoError(t, err)
	assert.Equal(t, self, got.Self, "earlier section is kept")
	assert.Equal(t, dets, got.Detections)

	assert.True(t, got.SelfAllow().Has("1", "-1"))
	assert.True(t, got.ObjectAllow()[5].Has("2", "1"))
	assert.False(t, got.ObjectAllow()[5].Has("1", "-1"))
}

func TestDecodeTargets_Malformed(t *testing.T) {
	t.Parallel()
	_, err := DecodeTargets([]byte(`{"detections": [{"id": 0, "targets": []}]}`))
	assert.ErrorIs(t, err, trajectory.ErrMalformedInput)
	_, err = DecodeTargets([]byte(`{"self": []}`))
	assert.ErrorIs(t, err, trajectory.ErrMalformedInput)
}
