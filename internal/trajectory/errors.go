package trajectory

import (
	"errors"

	"github.com/banshee-data/trajectory.report/internal/geo"
)

// Sentinel errors. Stages wrap these with the frame, object or file that
// triggered them; test with errors.Is.
var (
	// ErrConfiguration reports an unknown zone code or unresolved origin.
	ErrConfiguration = geo.ErrConfiguration

	// ErrInsufficientOverlap means fewer than two frames carry both a
	// GPS fix and a detection record.
	ErrInsufficientOverlap = errors.New("insufficient GPS/detection overlap")

	// ErrInconsistentReference means two inputs were built for
	// different coordinate zones.
	ErrInconsistentReference = errors.New("inconsistent coordinate reference")

	// ErrUndefinedDirection means a heading was needed from a zero
	// length motion vector.
	ErrUndefinedDirection = errors.New("undefined direction")

	// ErrMalformedInput covers missing keys, bad values and broken
	// collection invariants.
	ErrMalformedInput = errors.New("malformed input")
)
