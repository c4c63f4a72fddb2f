package trajectory

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// FixStatus is the verdict of the GPS validity filter for one fix.
type FixStatus int

const (
	// FixOK fixes are kept.
	FixOK FixStatus = iota
	// FixTentative fixes were accepted while the filter was still
	// looking for a reference direction. They are kept.
	FixTentative
	// FixNG fixes imply an implausible turn and are dropped.
	FixNG
)

func (s FixStatus) String() string {
	switch s {
	case FixOK:
		return "OK"
	case FixTentative:
		return "-"
	case FixNG:
		return "NG"
	}
	return fmt.Sprintf("FixStatus(%d)", int(s))
}

// Fix is one row of the GPS log.
type Fix struct {
	Time   string  `csv:"time" validate:"required"`
	Lat    float64 `csv:"lat" validate:"gte=-90,lte=90"`
	Lon    float64 `csv:"lon" validate:"gte=-180,lte=180"`
	Frame  int     `csv:"frame" validate:"gte=0"`
	Status FixStatus
}

func (f Fix) vec() r2.Vec { return r2.Vec{X: f.Lat, Y: f.Lon} }

// ClassifyFixes walks the GPS log and marks every fix OK, tentative or NG.
//
// Until a reference direction exists, each fix is judged against its
// neighbours: if the turn from (prev→fix) to (fix→next) is within
// threshold the fix becomes the reference, otherwise the previous fix is
// demoted to tentative and the walk moves on. Once a reference exists,
// each fix is judged by the turn between the reference displacement and
// the displacement from the last accepted fix. Rejected fixes and fixes
// that repeat the reference position never become the reference. Directions are measured in latitude/longitude space since
// the projection zone is chosen only after filtering.
func ClassifyFixes(fixes []Fix, thresholdDeg float64) []Fix {
	out := append([]Fix(nil), fixes...)
	if len(out) == 0 {
		return out
	}
	out[0].Status = FixOK

	var (
		haveRef bool
		refIdx  int
		refVec  r2.Vec
	)
	for i := 1; i < len(out); i++ {
		if !haveRef {
			if i+1 >= len(out) {
				// No following fix to bootstrap against.
				out[i].Status = FixOK
				continue
			}
			v1 := r2.Sub(out[i].vec(), out[i-1].vec())
			v2 := r2.Sub(out[i+1].vec(), out[i].vec())
			if v1 == (r2.Vec{}) || v2 == (r2.Vec{}) {
				// A repeated fix shows no direction to bootstrap from.
				out[i].Status = FixOK
				continue
			}
			if AngleBetween(v1, v2) <= thresholdDeg {
				out[i].Status = FixOK
				haveRef, refIdx, refVec = true, i, v1
			} else {
				out[i-1].Status = FixTentative
				out[i].Status = FixOK
			}
			continue
		}

		v := r2.Sub(out[i].vec(), out[refIdx].vec())
		if v == (r2.Vec{}) {
			// Stationary: keep the fix, but not as the new reference.
			out[i].Status = FixOK
			continue
		}
		if AngleBetween(refVec, v) <= thresholdDeg {
			out[i].Status = FixOK
			refIdx, refVec = i, v
		} else {
			out[i].Status = FixNG
			monitoring.Logf("gps: rejecting fix at frame %d (%s)", out[i].Frame, out[i].Time)
		}
	}
	return out
}

// AcceptedFixes drops NG fixes.
func AcceptedFixes(fixes []Fix) []Fix {
	out := make([]Fix, 0, len(fixes))
	for _, f := range fixes {
		if f.Status != FixNG {
			out = append(out, f)
		}
	}
	return out
}

// FilterFixes classifies and drops NG fixes in one step.
func FilterFixes(fixes []Fix, thresholdDeg float64) []Fix {
	return AcceptedFixes(ClassifyFixes(fixes, thresholdDeg))
}

// DecodeTimestamp converts a GPS time string of the form [hh:]mm:ss:ff,
// where ff counts frames at fps, into seconds.
func DecodeTimestamp(s string, fps float64) (float64, error) {
	tokens := strings.Split(strings.TrimSpace(s), ":")
	if len(tokens) < 2 || len(tokens) > 4 {
		return 0, fmt.Errorf("%w: timestamp %q", ErrMalformedInput, s)
	}
	vals := make([]int, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return 0, fmt.Errorf("%w: timestamp %q: %v", ErrMalformedInput, s, err)
		}
		vals[i] = v
	}

	n := len(vals)
	secs := float64(vals[n-2]) + float64(vals[n-1])/fps
	if n >= 3 {
		secs += float64(vals[n-3]) * 60
	}
	if n == 4 {
		secs += float64(vals[0]) * 3600
	}
	return secs, nil
}
