package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/trajectory.report/internal/artifact"
	"github.com/banshee-data/trajectory.report/internal/storage/sqlite"
)

func runStore(e *env, args []string) error {
	fs := newFlagSet(e, "store")
	dbPath := fs.String("db", "trajectory.db", "SQLite database path")
	save := fs.String("save", "", "Artifact to save as a new run")
	list := fs.Bool("list", false, "List stored runs")
	runID := fs.String("run", "", "Run id for -object or -delete")
	object := fs.Int("object", 0, "Print the stored track of this object id")
	del := fs.Bool("delete", false, "Delete the run given by -run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := sqlite.Open(*dbPath, e.clock)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	switch {
	case *save != "":
		doc, err := artifact.Load(e.fsys, *save)
		if err != nil {
			return err
		}
		id, err := s.SaveRun(ctx, doc.EPSG, *save, doc.Results)
		if err != nil {
			return err
		}
		e.log.Info("run stored", "run", id, "frames", len(doc.Results))
		_, err = fmt.Fprintln(e.stdout, id)
		return err

	case *list:
		runs, err := s.Runs(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tEPSG\tFRAMES\tCREATED\tSOURCE")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.EPSG, r.Frames, r.CreatedAt.Format(time.RFC3339), r.Source)
		}
		return w.Flush()

	case *runID != "" && *del:
		if err := s.DeleteRun(ctx, *runID); err != nil {
			return err
		}
		e.log.Info("run deleted", "run", *runID)
		return nil

	case *runID != "" && *object > 0:
		track, err := s.TrackByObject(ctx, *runID, *object)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FRAME\tX\tY\tVELOCITY\tYAW\tKIND")
		for _, p := range track {
			fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%s\t%s\t%s\n", p.Frame, p.World.X, p.World.Y, optional(p.Velocity), optional(p.Yaw), p.Kind)
		}
		return w.Flush()
	}
	fs.Usage()
	return fmt.Errorf("%w: one of -save, -list, -run with -object, or -run with -delete is required", errUsage)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
