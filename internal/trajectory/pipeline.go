package trajectory

import (
	"fmt"

	"github.com/banshee-data/trajectory.report/internal/geo"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// BuildInput is everything the reconstruction reads.
type BuildInput struct {
	Frames []FrameRecord // detection log with camera-relative detections
	Fixes  []Fix         // raw GPS log
	Accel  []AccelSample // optional
	EPSG   string        // zone code or geo.AutoZone
	Smooth int           // smoothing passes, 0 to skip
}

// BuildResult is the reconstructed collection and what was decided on
// the way.
type BuildResult struct {
	Frames []FrameRecord
	Fixes  []Fix // classified, including NG fixes
	Zone   geo.Zone
}

// Build runs the reconstruction stages in order: GPS filter, zone
// selection, ego builder, detection placement, continuity filter,
// densifier and optional smoothing.
func Build(in BuildInput, p Params) (*BuildResult, error) {
	classified := ClassifyFixes(in.Fixes, p.GPSAngleThreshold)
	accepted := AcceptedFixes(classified)
	monitoring.Logf("gps: %d of %d fixes accepted", len(accepted), len(classified))

	lats := make([]float64, len(accepted))
	lons := make([]float64, len(accepted))
	for i, f := range accepted {
		lats[i], lons[i] = f.Lat, f.Lon
	}
	zone, err := geo.SelectZone(in.EPSG, lats, lons)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("projection: EPSG %s (%s), origin %.6f, %.6f", zone.Code, zone.Name, zone.Lat0, zone.Lon0)
	proj := geo.NewProjection(zone)

	type stage struct {
		name string
		run  func([]FrameRecord) ([]FrameRecord, error)
	}
	stages := []stage{
		{"ego", func(f []FrameRecord) ([]FrameRecord, error) { return BuildEgo(f, accepted, in.Accel, proj, p) }},
		{"transform", func(f []FrameRecord) ([]FrameRecord, error) { return PlaceDetections(f, proj) }},
		{"continuity", func(f []FrameRecord) ([]FrameRecord, error) { return FilterTracks(f, p) }},
		{"densify", func(f []FrameRecord) ([]FrameRecord, error) { return Densify(f, proj, p) }},
	}
	if in.Smooth > 0 {
		stages = append(stages, stage{"smooth", func(f []FrameRecord) ([]FrameRecord, error) { return Smooth(f, proj, in.Smooth) }})
	}

	frames := in.Frames
	for _, s := range stages {
		frames, err = s.run(frames)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return &BuildResult{Frames: frames, Fixes: classified, Zone: zone}, nil
}
