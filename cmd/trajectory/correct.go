package main

import (
	"fmt"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/roadnet"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// CorrectedSuffix is inserted before the extension with -no-overwrite.
const CorrectedSuffix = "_corrected"

func runCorrect(e *env, args []string) error {
	fs := newFlagSet(e, "correct")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: trajectory correct [options] self|detections")
		fs.PrintDefaults()
	}
	lanes := fs.String("lanes", "", "Lane centerline JSON (required)")
	path := fs.String("artifact", "", "Trajectory artifact (required)")
	targetsPath := fs.String("targets", "", "Correction target JSON restricting the lanes used")
	kindName := fs.String("kind", "", "Only move detections of this kind: beforeIn, onScreen or afterOut")
	noOverwrite := fs.Bool("no-overwrite", false, "Write <artifact>"+CorrectedSuffix+".json instead of replacing the artifact")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "lanes", "artifact"); err != nil {
		fs.Usage()
		return err
	}
	if fs.NArg() != 1 || (fs.Arg(0) != "self" && fs.Arg(0) != "detections") {
		fs.Usage()
		return fmt.Errorf("%w: want self or detections", errUsage)
	}
	target := fs.Arg(0)

	var kind *trajectory.Kind
	if *kindName != "" {
		if target != "detections" {
			return fmt.Errorf("%w: -kind applies to detections only", errUsage)
		}
		k, err := trajectory.ParseKind(*kindName)
		if err != nil || k == trajectory.Native {
			return fmt.Errorf("%w: -kind %q, want beforeIn, onScreen or afterOut", errUsage, *kindName)
		}
		kind = &k
	}

	net, err := roadnet.LoadNetwork(e.fsys, *lanes)
	if err != nil {
		return err
	}
	var targets *roadnet.Targets
	if *targetsPath != "" {
		if targets, err = roadnet.LoadTargets(e.fsys, *targetsPath); err != nil {
			return err
		}
	}
	doc, proj, err := loadArtifact(e, *path)
	if err != nil {
		return err
	}
	c, err := roadnet.NewCorrector(net, doc.EPSG, proj, targets)
	if err != nil {
		return err
	}

	used := &roadnet.Targets{}
	switch target {
	case "self":
		doc.Results, used.Self, err = c.CorrectEgo(doc.Results)
	case "detections":
		doc.Results, used.Detections, err = c.CorrectDetections(doc.Results, roadnet.DetectionOptions{Kind: kind})
	}
	if err != nil {
		return err
	}

	outPath := *path
	if *noOverwrite {
		outPath = fsutil.WithSuffix(*path, CorrectedSuffix)
	}
	if err := saveArtifact(e, outPath, doc); err != nil {
		return err
	}
	usedPath := siblingPath(*path, roadnet.TargetsFileName)
	if err := roadnet.SaveTargets(e.fsys, usedPath, used); err != nil {
		return err
	}
	e.log.Info("correction targets written", "path", usedPath)
	return nil
}
