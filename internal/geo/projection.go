package geo

import "math"

// GRS80 ellipsoid and plane rectangular scale factor.
const (
	scaleFactor = 0.9999
	semiMajor   = 6378137.0
	flattening  = 298.257222101
)

// series holds the Krüger expansion coefficients, which depend only on
// the ellipsoid third flattening n.
type series struct {
	n     float64
	a     [6]float64 // meridian arc
	alpha [5]float64 // forward
	beta  [5]float64 // inverse
	delta [6]float64 // conformal to geodetic latitude
}

var kruger = newSeries()

func newSeries() series {
	n := 1 / (2*flattening - 1)
	n2, n3, n4, n5, n6 := n*n, n*n*n, n*n*n*n, n*n*n*n*n, n*n*n*n*n*n

	var s series
	s.n = n
	s.a = [6]float64{
		1 + n2/4 + n4/64,
		-(3.0 / 2) * (n - n3/8 - n5/64),
		(15.0 / 16) * (n2 - n4/4),
		-(35.0 / 48) * (n3 - (5.0/16)*n5),
		(315.0 / 512) * n4,
		-(693.0 / 1280) * n5,
	}
	s.alpha = [5]float64{
		n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180 - 127*n5/288,
		13*n2/48 - 3*n3/5 + 557*n4/1440 + 281*n5/630,
		61*n3/240 - 103*n4/140 + 15061*n5/26880,
		49561*n4/161280 - 179*n5/168,
		34729 * n5 / 80640,
	}
	s.beta = [5]float64{
		n/2 - 2*n2/3 + 37*n3/96 - n4/360 - 81*n5/512,
		n2/48 + n3/15 - 437*n4/1440 + 46*n5/105,
		17*n3/480 - 37*n4/840 - 209*n5/4480,
		4397*n4/161280 - 11*n5/504,
		4583 * n5 / 161280,
	}
	s.delta = [6]float64{
		2*n - 2*n2/3 - 2*n3 + 116*n4/45 + 26*n5/45 - 2854*n6/675,
		7*n2/3 - 8*n3/5 - 227*n4/45 + 2704*n5/315 + 2323*n6/945,
		56*n3/15 - 136*n4/35 - 1262*n5/105 + 73814*n6/2835,
		4279*n4/630 - 332*n5/35 - 399572*n6/14175,
		4174*n5/315 - 144838*n6/6237,
		601676 * n6 / 22275,
	}
	return s
}

// radius is the rectifying radius scaled by m0.
func (s series) radius() float64 {
	return scaleFactor * semiMajor / (1 + s.n) * s.a[0]
}

// meridianArc is the scaled meridian arc length from the equator to phi.
func (s series) meridianArc(phi float64) float64 {
	sum := s.a[0] * phi
	for j := 1; j < 6; j++ {
		sum += s.a[j] * math.Sin(2*float64(j)*phi)
	}
	return scaleFactor * semiMajor / (1 + s.n) * sum
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// Projection maps between latitude/longitude and the plane and world
// frames of a single zone.
type Projection struct {
	Zone Zone
}

// NewProjection returns the projection for z.
func NewProjection(z Zone) Projection {
	return Projection{Zone: z}
}

// EPSG returns the zone code.
func (p Projection) EPSG() string { return p.Zone.Code }

// ToPlane projects a geodetic position into plane coordinates
// (x north, y east), in metres.
func (p Projection) ToPlane(lat, lon float64) (x, y float64) {
	s := kruger
	phi := deg2rad(lat)
	dLambda := deg2rad(lon) - deg2rad(p.Zone.Lon0)

	t1 := 2 * math.Sqrt(s.n) / (1 + s.n)
	t := math.Sinh(math.Atanh(math.Sin(phi)) - t1*math.Atanh(t1*math.Sin(phi)))
	tHat := math.Sqrt(1 + t*t)

	xi := math.Atan(t / math.Cos(dLambda))
	eta := math.Atanh(math.Sin(dLambda) / tHat)

	sumXi, sumEta := xi, eta
	for j := 0; j < 5; j++ {
		k := 2 * float64(j+1)
		sumXi += s.alpha[j] * math.Sin(k*xi) * math.Cosh(k*eta)
		sumEta += s.alpha[j] * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	aHat := s.radius()
	x = aHat*sumXi - s.meridianArc(deg2rad(p.Zone.Lat0))
	y = aHat * sumEta
	return x, y
}

// FromPlane is the inverse of ToPlane.
func (p Projection) FromPlane(x, y float64) (lat, lon float64) {
	s := kruger
	aHat := s.radius()

	xi := (x + s.meridianArc(deg2rad(p.Zone.Lat0))) / aHat
	eta := y / aHat

	xi1, eta1 := xi, eta
	for j := 0; j < 5; j++ {
		k := 2 * float64(j+1)
		xi1 -= s.beta[j] * math.Sin(k*xi) * math.Cosh(k*eta)
		eta1 -= s.beta[j] * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	chi := math.Asin(math.Sin(xi1) / math.Cosh(eta1))
	phi := chi
	for j := 0; j < 6; j++ {
		phi += s.delta[j] * math.Sin(2*float64(j+1)*chi)
	}
	lambda := deg2rad(p.Zone.Lon0) + math.Atan(math.Sinh(eta1)/math.Cos(xi1))

	return rad2deg(phi), rad2deg(lambda)
}

// ToWorld swaps plane axes into the world frame (x east, y north).
func ToWorld(xp, yp float64) (xw, yw float64) {
	return yp, xp
}

// FromWorld swaps world axes back into the plane frame.
func FromWorld(xw, yw float64) (xp, yp float64) {
	return yw, xw
}

// Project converts latitude/longitude directly to world coordinates.
func (p Projection) Project(lat, lon float64) (xw, yw float64) {
	return ToWorld(p.ToPlane(lat, lon))
}

// Unproject converts world coordinates back to latitude/longitude.
func (p Projection) Unproject(xw, yw float64) (lat, lon float64) {
	return p.FromPlane(FromWorld(xw, yw))
}
