package sim

import (
	"math"

	"github.com/anchorwatch/anchorsim/internal/geo"
)

// AnchorAttachment is the optional anchor fix. It is set when the anchor is
// dropped and cleared on raise.
type AnchorAttachment struct {
	Latitude  float64
	Longitude float64
}

// RodeGeometry is the single home for catenary math. The velocity constraint
// and the slack computation used to be separate code paths computing related
// geometry; keeping them behind one type stops the formulas drifting apart.
type RodeGeometry struct {
	RodeMeters   float64 // deployed rode length
	DepthPlusBow float64 // water depth plus bow roller height
}

// CatenaryLimit returns the maximum horizontal distance the boat can lie
// from the anchor: sqrt(rode^2 - (depth+bow)^2), or 0 while the rode is
// shorter than the vertical drop.
func (r RodeGeometry) CatenaryLimit() float64 {
	if r.RodeMeters <= r.DepthPlusBow {
		return 0
	}
	return math.Sqrt(r.RodeMeters*r.RodeMeters - r.DepthPlusBow*r.DepthPlusBow)
}

// Slack returns catenary limit minus the actual distance from the anchor.
// Negative slack means the rode is geometrically over-extended.
func (r RodeGeometry) Slack(distanceMeters float64) float64 {
	return r.CatenaryLimit() - distanceMeters
}

// TensionFactor returns how close the boat is to the catenary limit in
// [0, 1]; 1 means the rode is bar-tight. Used to scale the anchor alignment
// torque.
func (r RodeGeometry) TensionFactor(distanceMeters float64) float64 {
	limit := r.CatenaryLimit()
	if limit <= 0 {
		return 0
	}
	f := distanceMeters / limit
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// AtLimit reports whether the boat has reached the catenary limit and the
// outbound velocity component must be zeroed.
func (r RodeGeometry) AtLimit(distanceMeters float64) bool {
	return distanceMeters >= r.CatenaryLimit()
}

// anchorBearing returns distance and bearing from the boat to the anchor.
func anchorBearing(b *Boat, a *AnchorAttachment) (distanceMeters, bearingDeg float64) {
	distanceMeters = geo.DistanceMeters(b.Latitude, b.Longitude, a.Latitude, a.Longitude)
	bearingDeg = geo.BearingDegrees(b.Latitude, b.Longitude, a.Latitude, a.Longitude)
	return distanceMeters, bearingDeg
}
