package trajectory

// planeProjector treats latitude as world x and longitude as world y so
// tests can reason in metres.
type planeProjector struct{}

func (planeProjector) Project(lat, lon float64) (float64, float64) { return lat, lon }
func (planeProjector) Unproject(x, y float64) (float64, float64)   { return x, y }

func det(obj int, x, y float64) Detection {
	p := Pt(x, y)
	return Detection{ObjectID: obj, World: &p, Latitude: f64(x), Longitude: f64(y)}
}

func rel(obj int, dx, dy float64) Detection {
	return Detection{ObjectID: obj, Distance: []float64{dx, dy, 0}, Angle: []float64{0, 0}}
}

func egoAt(x, y float64) *EgoState {
	return &EgoState{World: Pt(x, y), Latitude: x, Longitude: y}
}

// find returns the detection of obj in r, or nil.
func find(r FrameRecord, obj int) *Detection {
	for i := range r.Detections {
		if r.Detections[i].ObjectID == obj {
			return &r.Detections[i]
		}
	}
	return nil
}
