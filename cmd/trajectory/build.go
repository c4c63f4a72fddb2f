package main

import (
	"path/filepath"

	"github.com/banshee-data/trajectory.report/internal/artifact"
	"github.com/banshee-data/trajectory.report/internal/gpslog"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

func runBuild(e *env, args []string) error {
	fs := newFlagSet(e, "build")
	detections := fs.String("detections", "", "Detection result JSON with camera-relative distances (required)")
	gps := fs.String("gps", "", "GPS CSV with time, lat, lon and frame columns (required)")
	accel := fs.String("accel", "", "Accelerometer CSV: frame, acc_x, acc_y, acc_z, velocity")
	configPath := fs.String("config", "", "Pipeline tuning file (.json, .yaml)")
	epsg := fs.String("epsg", "", "Zone code, or auto (overrides config)")
	fps := fs.Float64("fps", 0, "Frames per second (overrides config)")
	smooth := fs.Int("smooth", 0, "Smoothing passes to run after densifying")
	out := fs.String("out", "", "Output artifact (default: "+artifact.ResultFileName+" next to -detections)")
	exportGPS := fs.Bool("output-gps-csv", false, "Also write the GPS log without rejected fixes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "detections", "gps"); err != nil {
		fs.Usage()
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	p := cfg.Params()
	if *fps > 0 {
		p.FPS = *fps
	}
	zone := cfg.GetEPSG()
	if *epsg != "" {
		zone = *epsg
	}

	doc, err := artifact.Load(e.fsys, *detections)
	if err != nil {
		return err
	}
	fixes, err := gpslog.LoadFixes(e.fsys, *gps)
	if err != nil {
		return err
	}
	var samples []trajectory.AccelSample
	if *accel != "" {
		if samples, err = gpslog.LoadAccel(e.fsys, *accel); err != nil {
			return err
		}
	}

	res, err := trajectory.Build(trajectory.BuildInput{
		Frames: doc.Results,
		Fixes:  fixes,
		Accel:  samples,
		EPSG:   zone,
		Smooth: *smooth,
	}, p)
	if err != nil {
		return err
	}
	e.log.Info("trajectories built", "epsg", res.Zone.Code, "zone", res.Zone.Name, "frames", len(res.Frames))

	outPath := *out
	if outPath == "" {
		outPath = siblingPath(*detections, artifact.ResultFileName)
	}
	if *exportGPS {
		path, err := gpslog.ExportFiltered(e.fsys, *gps, filepath.Dir(outPath), res.Fixes)
		if err != nil {
			return err
		}
		e.log.Info("filtered GPS written", "path", path)
	}

	doc.EPSG = res.Zone.Code
	doc.Results = res.Frames
	return saveArtifact(e, outPath, doc)
}
