package main

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/trajectory.report/internal/artifact"
	"github.com/banshee-data/trajectory.report/internal/config"
	"github.com/banshee-data/trajectory.report/internal/geo"
)

var errUsage = errors.New("usage")

func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func required(fs *flag.FlagSet, names ...string) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, n := range names {
		if !set[n] || fs.Lookup(n).Value.String() == "" {
			return fmt.Errorf("%w: -%s is required", errUsage, n)
		}
	}
	return nil
}

// loadConfig returns an empty config, meaning all defaults, when path is
// empty.
func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		return &config.PipelineConfig{}, nil
	}
	return config.LoadPipelineConfig(path)
}

// loadArtifact reads the artifact and resolves its projection.
func loadArtifact(e *env, path string) (*artifact.Document, geo.Projection, error) {
	doc, err := artifact.Load(e.fsys, path)
	if err != nil {
		return nil, geo.Projection{}, err
	}
	zone, err := doc.Zone()
	if err != nil {
		return nil, geo.Projection{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, geo.NewProjection(zone), nil
}

func saveArtifact(e *env, path string, doc *artifact.Document) error {
	if err := artifact.Save(e.fsys, path, doc); err != nil {
		return err
	}
	e.log.Info("artifact written", "path", path, "frames", len(doc.Results))
	_, err := fmt.Fprintln(e.stdout, path)
	return err
}

// siblingPath is name in the same directory as path.
func siblingPath(path, name string) string {
	return filepath.Join(filepath.Dir(path), name)
}
