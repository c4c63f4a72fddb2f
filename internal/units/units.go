// Package units holds the speed units the reports can be rendered in.
package units

import (
	"fmt"
	"slices"
	"strings"
)

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid reports whether unit is one of ValidUnits.
func IsValid(unit string) bool {
	return slices.Contains(ValidUnits, unit)
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed from metres per second to the target units.
// Unknown units leave the value in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// FromKMPH converts a speed in km/h, the unit trajectories are stored in,
// to the target units.
func FromKMPH(speedKMPH float64, targetUnits string) float64 {
	return ConvertSpeed(speedKMPH/3.6, targetUnits)
}

// Label returns the axis label for unit.
func Label(unit string) string {
	switch unit {
	case MPH:
		return "mph"
	case KMPH, KPH:
		return "km/h"
	case MPS:
		return "m/s"
	}
	return fmt.Sprintf("%s (m/s)", unit)
}
