// Package geo converts between geodetic latitude/longitude and the flat
// world frame used by the trajectory pipeline.
//
// Positions are projected onto one of the nineteen JGD2011 plane
// rectangular coordinate zones (EPSG 6669 to 6687) with a Gauss-Krüger
// transverse Mercator on the GRS80 ellipsoid. The plane frame has x
// pointing north and y pointing east; the world frame swaps the axes so
// that x is east and y is north.
package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// AutoZone requests zone selection from sample positions.
const AutoZone = "auto"

// ErrConfiguration is returned for unknown zone codes or when no origin
// can be resolved.
var ErrConfiguration = errors.New("configuration error")

// Zone is a plane rectangular coordinate zone and its origin.
type Zone struct {
	Code string  // EPSG code, e.g. "6677"
	Name string  // e.g. "JGD 2011/9"
	Lat0 float64 // origin latitude, decimal degrees
	Lon0 float64 // origin longitude, decimal degrees
}

func dms(deg, min int) float64 {
	return float64(deg) + float64(min)/60
}

var zones = map[string]Zone{
	"6669": {Code: "6669", Name: "JGD 2011/1", Lat0: dms(33, 0), Lon0: dms(129, 30)},
	"6670": {Code: "6670", Name: "JGD 2011/2", Lat0: dms(33, 0), Lon0: dms(131, 0)},
	"6671": {Code: "6671", Name: "JGD 2011/3", Lat0: dms(36, 0), Lon0: dms(132, 10)},
	"6672": {Code: "6672", Name: "JGD 2011/4", Lat0: dms(33, 0), Lon0: dms(133, 30)},
	"6673": {Code: "6673", Name: "JGD 2011/5", Lat0: dms(36, 0), Lon0: dms(134, 20)},
	"6674": {Code: "6674", Name: "JGD 2011/6", Lat0: dms(36, 0), Lon0: dms(136, 0)},
	"6675": {Code: "6675", Name: "JGD 2011/7", Lat0: dms(36, 0), Lon0: dms(137, 10)},
	"6676": {Code: "6676", Name: "JGD 2011/8", Lat0: dms(36, 0), Lon0: dms(138, 30)},
	"6677": {Code: "6677", Name: "JGD 2011/9", Lat0: dms(36, 0), Lon0: dms(139, 50)},
	"6678": {Code: "6678", Name: "JGD 2011/10", Lat0: dms(40, 0), Lon0: dms(140, 50)},
	"6679": {Code: "6679", Name: "JGD 2011/11", Lat0: dms(44, 0), Lon0: dms(140, 15)},
	"6680": {Code: "6680", Name: "JGD 2011/12", Lat0: dms(44, 0), Lon0: dms(142, 15)},
	"6681": {Code: "6681", Name: "JGD 2011/13", Lat0: dms(44, 0), Lon0: dms(144, 15)},
	"6682": {Code: "6682", Name: "JGD 2011/14", Lat0: dms(26, 0), Lon0: dms(142, 0)},
	"6683": {Code: "6683", Name: "JGD 2011/15", Lat0: dms(26, 0), Lon0: dms(127, 30)},
	"6684": {Code: "6684", Name: "JGD 2011/16", Lat0: dms(26, 0), Lon0: dms(124, 0)},
	"6685": {Code: "6685", Name: "JGD 2011/17", Lat0: dms(26, 0), Lon0: dms(131, 0)},
	"6686": {Code: "6686", Name: "JGD 2011/18", Lat0: dms(20, 0), Lon0: dms(136, 0)},
	"6687": {Code: "6687", Name: "JGD 2011/19", Lat0: dms(26, 0), Lon0: dms(154, 0)},
}

// Zones returns every known zone ordered by EPSG code.
func Zones() []Zone {
	out := make([]Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// LookupZone returns the zone registered under code.
func LookupZone(code string) (Zone, error) {
	z, ok := zones[code]
	if !ok {
		return Zone{}, fmt.Errorf("%w: unknown EPSG code %q", ErrConfiguration, code)
	}
	return z, nil
}

// SelectZone resolves code to a zone. When code is AutoZone (or empty) the
// zone whose origin is closest to the samples is chosen: for each zone the
// absolute mean latitude offset and absolute mean longitude offset are
// averaged, and the smallest average wins. Ties resolve to the lower code.
func SelectZone(code string, lats, lons []float64) (Zone, error) {
	if code != "" && code != AutoZone {
		return LookupZone(code)
	}
	if len(lats) == 0 || len(lats) != len(lons) {
		return Zone{}, fmt.Errorf("%w: automatic zone selection needs GPS samples", ErrConfiguration)
	}

	var (
		best      Zone
		bestScore = math.Inf(1)
	)
	for _, z := range Zones() {
		dLat := math.Abs(stat.Mean(lats, nil) - z.Lat0)
		dLon := math.Abs(stat.Mean(lons, nil) - z.Lon0)
		score := (dLat + dLon) / 2
		if score < bestScore {
			best, bestScore = z, score
		}
	}
	return best, nil
}
