package main

import (
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

func runSmooth(e *env, args []string) error {
	fs := newFlagSet(e, "smooth")
	path := fs.String("artifact", "", "Trajectory artifact to smooth in place (required)")
	configPath := fs.String("config", "", "Pipeline tuning file (.json, .yaml)")
	repeat := fs.Int("repeat", -1, "Smoothing passes (default: smooth_repeat from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "artifact"); err != nil {
		fs.Usage()
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	n := cfg.GetSmoothRepeat()
	if *repeat >= 0 {
		n = *repeat
	}

	doc, proj, err := loadArtifact(e, *path)
	if err != nil {
		return err
	}
	if doc.Results, err = trajectory.Smooth(doc.Results, proj, n); err != nil {
		return err
	}
	return saveArtifact(e, *path, doc)
}

func runRecompute(e *env, args []string) error {
	fs := newFlagSet(e, "recompute")
	path := fs.String("artifact", "", "Trajectory artifact to update in place (required)")
	configPath := fs.String("config", "", "Pipeline tuning file (.json, .yaml)")
	fps := fs.Float64("fps", 0, "Frames per second (overrides config)")
	limitYaw := fs.Bool("limit-yaw", false, "Clamp object yaw to the ego heading ± detection_yaw_limit_deg")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "artifact"); err != nil {
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

	doc, _, err := loadArtifact(e, *path)
	if err != nil {
		return err
	}
	if doc.Results, err = trajectory.Recompute(doc.Results, p, *limitYaw); err != nil {
		return err
	}
	return saveArtifact(e, *path, doc)
}
