package geo

import (
	"errors"
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Flat-earth scale factors for the simulated anchorage (latitude ~43.6 N).
// Distances involved are tens of meters, so the local approximation is
// well within GPS noise.
const (
	// DegreesLatPerMeter is the latitude change per meter of northing.
	DegreesLatPerMeter = 0.000009

	// DegreesLonPerMeter is the longitude change per meter of easting.
	DegreesLonPerMeter = 0.0000125
)

// MetersPerSecondPerKnot converts knots to m/s.
const MetersPerSecondPerKnot = 0.514444

// ErrInvalidCoordinates is returned when coordinates are not finite numbers.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// AngleDiff returns the smallest signed difference from a to b in degrees,
// in (-180, 180].
func AngleDiff(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	}
	if d <= -180 {
		d += 360
	}
	return d
}

// DistanceMeters returns the flat-earth distance between two positions.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dn := (lat2 - lat1) / DegreesLatPerMeter
	de := (lon2 - lon1) / DegreesLonPerMeter
	return math.Hypot(dn, de)
}

// BearingDegrees returns the true bearing from position 1 to position 2,
// 0 = north, clockwise, in [0, 360).
func BearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	dn := (lat2 - lat1) / DegreesLatPerMeter
	de := (lon2 - lon1) / DegreesLonPerMeter
	return NormalizeDegrees(math.Atan2(de, dn) * 180 / math.Pi)
}

// Offset displaces a position by the given easting/northing in meters.
func Offset(lat, lon, eastMeters, northMeters float64) (float64, float64) {
	return lat + northMeters*DegreesLatPerMeter, lon + eastMeters*DegreesLonPerMeter
}

// UnitVector returns the east/north components of a unit vector pointing
// along the given bearing (degrees, 0 = north, clockwise).
func UnitVector(bearingDeg float64) (east, north float64) {
	rad := bearingDeg * math.Pi / 180
	return math.Sin(rad), math.Cos(rad)
}

// IsFinite reports whether all values are real numbers (no NaN or Inf).
func IsFinite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Point3857From4326 projects a WGS84 lat/lon into a web-mercator point for
// storage. Geometry is persisted as 3857 because SQLite has no spatial
// awareness and we need stable WKB round-trips during migrations.
func Point3857From4326(latitude, longitude float64) (geom.Point, error) {
	if !IsFinite(latitude, longitude) {
		return geom.Point{}, ErrInvalidCoordinates
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	point, err := geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
			Z:  0,
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("projecting (%v, %v): %w", latitude, longitude, err)
	}
	return point, nil
}
