package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/api"
	"github.com/banshee-data/trajectory.report/internal/artifact"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/geo"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/roadnet"
	"github.com/banshee-data/trajectory.report/internal/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/timeutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

const detectionDoc = `{
  "camera_parameter": {"fx": 1200},
  "results": [
    {"frame": 0, "file": "0.jpg", "detections": [{"obj_id": 1, "distance": [0, 20, 0], "angle": [0, 0]}]},
    {"frame": 1, "file": "1.jpg", "detections": []},
    {"frame": 2, "file": "2.jpg", "detections": [{"obj_id": 1, "distance": [0, 12, 0], "angle": [0, 0]}]},
    {"frame": 3, "file": "3.jpg", "detections": []}
  ]
}`

// One eastbound lane one metre north of the ego track.
const laneDoc = `{
  "EPSG": "6677",
  "map_offset": [0, 0],
  "roads": [{"id": 1, "lanes": [{"lane_id": "-1", "lane": "driving", "coordinate": [[-10, 1, 2], [100, 1, 2]]}]}]
}`

// runCLI runs the command line and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })

	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// fixture writes a detection log and a GPS log for an ego driving 30 m
// east over three frames.
func fixture(t *testing.T) (dir, detections, gps string) {
	t.Helper()
	dir = t.TempDir()
	zone, err := geo.LookupZone("6677")
	require.NoError(t, err)
	proj := geo.NewProjection(zone)
	lat0, lon0 := proj.Unproject(0, 0)
	lat3, lon3 := proj.Unproject(30, 0)

	detections = filepath.Join(dir, artifact.DetectionFileName)
	require.NoError(t, os.WriteFile(detections, []byte(detectionDoc), 0o644))
	gps = filepath.Join(dir, "gps.csv")
	csv := fmt.Sprintf("time,lat,lon,frame\n00:00:00,%.12f,%.12f,0\n00:03:00,%.12f,%.12f,3\n", lat0, lon0, lat3, lon3)
	require.NoError(t, os.WriteFile(gps, []byte(csv), 0o644))
	return dir, detections, gps
}

func loadResult(t *testing.T, path string) *artifact.Document {
	t.Helper()
	doc, err := artifact.Load(fsutil.OSFileSystem{}, path)
	require.NoError(t, err)
	return doc
}

func findDetection(r trajectory.FrameRecord, obj int) *trajectory.Detection {
	for i := range r.Detections {
		if r.Detections[i].ObjectID == obj {
			return &r.Detections[i]
		}
	}
	return nil
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage: trajectory")

	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	for _, c := range commands {
		assert.Contains(t, stdout, c.name)
	}

	code, _, stderr = runCLI(t, "nope")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: nope")
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "trajectory dev"))
}

func TestBuild_RequiresInputs(t *testing.T) {
	code, _, stderr := runCLI(t, "build", "-gps", "x.csv")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "-detections is required")
}

func TestBuild(t *testing.T) {
	dir, detections, gps := fixture(t)

	code, stdout, stderr := runCLI(t, "build", "-detections", detections, "-gps", gps, "-output-gps-csv")
	require.Equal(t, 0, code, stderr)
	out := filepath.Join(dir, artifact.ResultFileName)
	assert.Equal(t, out+"\n", stdout)
	assert.FileExists(t, filepath.Join(dir, "gps_updated.csv"))

	doc := loadResult(t, out)
	assert.Equal(t, "6677", doc.EPSG)
	assert.JSONEq(t, `{"fx": 1200}`, string(doc.CameraParameter))
	require.Len(t, doc.Results, 4)
	for i, r := range doc.Results {
		require.NotNil(t, r.Ego, "frame %d", i)
		assert.InDelta(t, 10*float64(i), r.Ego.World.X, 1e-3, "frame %d", i)
	}
	last := findDetection(doc.Results[3], 1)
	require.NotNil(t, last)
	assert.Equal(t, trajectory.AfterExit, last.Kind)
	assert.InDelta(t, 38, last.World.X, 1e-3)
}

func TestBuild_UnknownZone(t *testing.T) {
	_, detections, gps := fixture(t)
	code, _, stderr := runCLI(t, "build", "-detections", detections, "-gps", gps, "-epsg", "1234")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "build failed")
}

func TestPostProcessing(t *testing.T) {
	dir, detections, gps := fixture(t)
	out := filepath.Join(dir, artifact.ResultFileName)
	code, _, stderr := runCLI(t, "build", "-detections", detections, "-gps", gps)
	require.Equal(t, 0, code, stderr)

	code, _, stderr = runCLI(t, "smooth", "-artifact", out, "-repeat", "2")
	require.Equal(t, 0, code, stderr)
	code, _, stderr = runCLI(t, "recompute", "-artifact", out, "-limit-yaw")
	require.Equal(t, 0, code, stderr)

	// Recompute works from frame spacing: 10 m per frame at 30 fps.
	doc := loadResult(t, out)
	for i, r := range doc.Results {
		assert.InDelta(t, 1080, r.Ego.Velocity, 1e-3, "frame %d", i)
	}

	code, stdout, stderr := runCLI(t, "plot", "-artifact", out, "-units", "mps")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, SpeedChartName)
	assert.FileExists(t, filepath.Join(dir, TrackPlotName))
	assert.FileExists(t, filepath.Join(dir, SpeedChartName))

	code, _, _ = runCLI(t, "plot", "-artifact", out, "-units", "knots")
	assert.Equal(t, 1, code)
}

func TestCorrect(t *testing.T) {
	dir, detections, gps := fixture(t)
	out := filepath.Join(dir, artifact.ResultFileName)
	code, _, stderr := runCLI(t, "build", "-detections", detections, "-gps", gps)
	require.Equal(t, 0, code, stderr)
	lanes := filepath.Join(dir, "lanes.json")
	require.NoError(t, os.WriteFile(lanes, []byte(laneDoc), 0o644))

	code, _, stderr = runCLI(t, "correct", "-lanes", lanes, "-artifact", out, "self")
	require.Equal(t, 0, code, stderr)
	doc := loadResult(t, out)
	for _, r := range doc.Results {
		assert.InDelta(t, 1, r.Ego.World.Y, 1e-9)
		assert.Equal(t, &trajectory.RoadCorrection{Road: "1", Lane: "-1"}, r.Ego.RoadCorrection)
	}

	code, stdout, stderr := runCLI(t, "correct", "-lanes", lanes, "-artifact", out, "-kind", "afterOut", "-no-overwrite", "detections")
	require.Equal(t, 0, code, stderr)
	corrected := filepath.Join(dir, "car_abs_pos_result_corrected.json")
	assert.Equal(t, corrected+"\n", stdout)

	doc = loadResult(t, corrected)
	moved := findDetection(doc.Results[3], 1)
	assert.InDelta(t, 1, moved.World.Y, 1e-9)
	assert.Equal(t, 2.0, moved.World.Z)
	kept := findDetection(doc.Results[0], 1)
	assert.InDelta(t, 0, kept.World.Y, 1e-6, "other kinds keep their position")
	assert.True(t, kept.World.HasZ, "other kinds still take lane elevation")

	targets, err := roadnet.LoadTargets(fsutil.OSFileSystem{}, filepath.Join(dir, roadnet.TargetsFileName))
	require.NoError(t, err)
	require.NotNil(t, targets.Self)
	assert.Equal(t, []trajectory.RoadCorrection{{Road: "1", Lane: "-1"}}, targets.Self.Targets)
	require.Len(t, targets.Detections, 1)
	assert.Equal(t, 1, targets.Detections[0].ID)
}

func TestCorrect_Arguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing target", []string{"correct", "-lanes", "l.json", "-artifact", "a.json"}},
		{"unknown target", []string{"correct", "-lanes", "l.json", "-artifact", "a.json", "roads"}},
		{"kind on self", []string{"correct", "-lanes", "l.json", "-artifact", "a.json", "-kind", "onScreen", "self"}},
		{"native kind", []string{"correct", "-lanes", "l.json", "-artifact", "a.json", "-kind", "native", "detections"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, 1, code)
		})
	}
}

func TestStore(t *testing.T) {
	dir, detections, gps := fixture(t)
	out := filepath.Join(dir, artifact.ResultFileName)
	code, _, stderr := runCLI(t, "build", "-detections", detections, "-gps", gps)
	require.Equal(t, 0, code, stderr)
	db := filepath.Join(dir, "trajectory.db")

	code, stdout, stderr := runCLI(t, "store", "-db", db, "-save", out)
	require.Equal(t, 0, code, stderr)
	id := strings.TrimSpace(stdout)
	require.NotEmpty(t, id)

	code, stdout, _ = runCLI(t, "store", "-db", db, "-list")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, id)
	assert.Contains(t, stdout, "6677")

	code, stdout, _ = runCLI(t, "store", "-db", db, "-run", id, "-object", "1")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[2], "onScreen")
	assert.Contains(t, lines[4], "afterOut")

	code, _, stderr = runCLI(t, "store", "-db", db, "-run", id, "-delete")
	require.Equal(t, 0, code, stderr)
	code, _, _ = runCLI(t, "store", "-db", db, "-run", id, "-delete")
	assert.Equal(t, 1, code)

	code, _, _ = runCLI(t, "store", "-db", db)
	assert.Equal(t, 1, code)
}

func TestServe(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "serve.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	e := &env{
		fsys:   fsutil.OSFileSystem{},
		stdout: io.Discard,
		stderr: io.Discard,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  timeutil.RealClock{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, e, ln, api.NewServer(store, "kmph")) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/runs")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(body))

	cancel()
	assert.NoError(t, <-done)
}
