// Command trajectory reconstructs world-referenced vehicle trajectories
// from camera detections and a GPS log, and post-processes the result.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/timeutil"
	"github.com/banshee-data/trajectory.report/internal/version"
)

// env is what every command reads and writes through.
type env struct {
	fsys   fsutil.FileSystem
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
	clock  timeutil.Clock
}

type command struct {
	name    string
	summary string
	run     func(e *env, args []string) error
}

var commands = []command{
	{"build", "Reconstruct ego and object trajectories from detections and GPS", runBuild},
	{"smooth", "Smooth object tracks in an artifact", runSmooth},
	{"recompute", "Recompute velocity and yaw from positions", runRecompute},
	{"correct", "Snap ego (self) or object (detections) positions onto lanes", runCorrect},
	{"store", "Save, list, query or delete artifacts in a SQLite store", runStore},
	{"plot", "Render a track plot (PNG) and speed chart (HTML)", runPlot},
	{"serve", "Serve stored runs over HTTP for review", runServe},
	{"version", "Show version information", runVersion},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("trajectory", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() < 1 {
		printUsage(stderr)
		return 2
	}

	logger := newLogger(stderr, *verbose)
	monitoring.SetLogger(monitoring.SlogLogf(logger, slog.LevelDebug))
	e := &env{fsys: fsutil.OSFileSystem{}, stdout: stdout, stderr: stderr, log: logger, clock: timeutil.RealClock{}}

	name := fs.Arg(0)
	if name == "help" {
		printUsage(stdout)
		return 0
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(e, fs.Args()[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 0
			}
			logger.Error(name+" failed", "err", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
	printUsage(stderr)
	return 2
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		NoColor:    w != os.Stderr,
	}))
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "trajectory - world-referenced vehicle trajectories from camera detections")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: trajectory [-v] <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'trajectory <command> -h' for command options.")
}

func runVersion(e *env, _ []string) error {
	_, err := fmt.Fprintln(e.stdout, version.String())
	return err
}
