package trajectory

// Params carries the tuning values every stage reads. It is passed by
// value so a stage can never alter another stage's view.
type Params struct {
	// FPS converts frame deltas into seconds.
	FPS float64

	// GPSAngleThreshold is the largest heading change, in degrees,
	// accepted between consecutive GPS displacements.
	GPSAngleThreshold float64

	// TrackAngleThreshold is the continuity gate for detections.
	TrackAngleThreshold float64

	// TrackGapFrames: a detection further than this many frames from
	// the previous sighting is accepted without a heading check.
	TrackGapFrames int

	// TrackLookaheadFrames selects the sample used to judge the second
	// point of a track.
	TrackLookaheadFrames int

	// MaxAccAge is how old, in seconds, an accelerometer sample may be
	// before it is no longer attached to a frame.
	MaxAccAge float64

	// DetectionYawLimit bounds detection yaw around ego yaw, in degrees,
	// when Recompute is asked to limit yaw.
	DetectionYawLimit float64

	// MaxBridgeFrames stops the densifier from interpolating across
	// sighting gaps longer than this. Zero bridges every gap.
	MaxBridgeFrames int
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		FPS:                  30,
		GPSAngleThreshold:    45,
		TrackAngleThreshold:  45,
		TrackGapFrames:       15,
		TrackLookaheadFrames: 30,
		MaxAccAge:            1,
		DetectionYawLimit:    10,
	}
}

// Projector converts between latitude/longitude and the world frame.
// geo.Projection implements it.
type Projector interface {
	Project(lat, lon float64) (x, y float64)
	Unproject(x, y float64) (lat, lon float64)
}
