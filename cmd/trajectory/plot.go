package main

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/trajectory.report/internal/units"
	"github.com/banshee-data/trajectory.report/internal/visualize"
)

// Output names written by the plot command.
const (
	TrackPlotName  = "trajectory.png"
	SpeedChartName = "speed.html"
)

func runPlot(e *env, args []string) error {
	fs := newFlagSet(e, "plot")
	path := fs.String("artifact", "", "Trajectory artifact (required)")
	dir := fs.String("out", "", "Output directory (default: the artifact's directory)")
	unit := fs.String("units", units.KMPH, "Speed units: "+units.GetValidUnitsString())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "artifact"); err != nil {
		fs.Usage()
		return err
	}
	if !units.IsValid(*unit) {
		return fmt.Errorf("%w: -units %q, want one of %s", errUsage, *unit, units.GetValidUnitsString())
	}

	doc, _, err := loadArtifact(e, *path)
	if err != nil {
		return err
	}
	outDir := *dir
	if outDir == "" {
		outDir = filepath.Dir(*path)
	}
	title := filepath.Base(*path)

	png := filepath.Join(outDir, TrackPlotName)
	if err := visualize.WriteTrackPNG(e.fsys, png, doc.Results, title); err != nil {
		return err
	}
	html := filepath.Join(outDir, SpeedChartName)
	if err := visualize.WriteSpeedHTML(e.fsys, html, doc.Results, *unit, title); err != nil {
		return err
	}
	e.log.Info("plots written", "png", png, "html", html)
	fmt.Fprintln(e.stdout, png)
	_, err = fmt.Fprintln(e.stdout, html)
	return err
}
