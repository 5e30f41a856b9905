package sim

import (
	"math"

	"github.com/anchorwatch/anchorsim/internal/geo"
)

// Boat holds the vessel state and the per-tick force accumulator. It is
// owned exclusively by the simulation loop; all mutation goes through
// ApplyForce/ApplyTorque and Update.
type Boat struct {
	Latitude  float64 // degrees
	Longitude float64 // degrees

	VelocityEast  float64 // m/s
	VelocityNorth float64 // m/s

	Heading         float64 // degrees, 0 = north, clockwise
	AngularVelocity float64 // deg/s

	massKg         float64
	angularDamping float64
	maxAngularVel  float64

	forceEast  float64 // N, accumulated this tick
	forceNorth float64
	torque     float64 // deg/s^2 equivalent, accumulated this tick

	// constraintBearing points from the boat toward the anchor while the
	// catenary limit is reached; nil means unconstrained.
	constraintBearing *float64
}

// NewBoat creates a boat at rest at the configured position.
func NewBoat(cfg Config) *Boat {
	return &Boat{
		Latitude:       cfg.InitialLatitude,
		Longitude:      cfg.InitialLongitude,
		Heading:        geo.NormalizeDegrees(cfg.InitialHeading),
		massKg:         cfg.MassKg,
		angularDamping: cfg.AngularDamping,
		maxAngularVel:  cfg.MaxAngularVelocity,
	}
}

// ApplyForce accumulates a translational force (east/north, newtons) for the
// next Update.
func (b *Boat) ApplyForce(eastN, northN float64) {
	b.forceEast += eastN
	b.forceNorth += northN
}

// ApplyTorque accumulates an angular acceleration contribution (deg/s^2).
func (b *Boat) ApplyTorque(t float64) {
	b.torque += t
}

// SetVelocityConstraint activates the hard rode constraint: the velocity
// component pointing away from the anchor is zeroed on the next Update,
// before the position is translated. bearingDeg points from boat to anchor.
func (b *Boat) SetVelocityConstraint(bearingDeg float64) {
	bearing := geo.NormalizeDegrees(bearingDeg)
	b.constraintBearing = &bearing
}

// ClearVelocityConstraint removes the rode constraint.
func (b *Boat) ClearVelocityConstraint() {
	b.constraintBearing = nil
}

// ConstraintActive reports whether the rode constraint is set.
func (b *Boat) ConstraintActive() bool {
	return b.constraintBearing != nil
}

// Speed returns the scalar speed over ground in m/s.
func (b *Boat) Speed() float64 {
	return math.Hypot(b.VelocityEast, b.VelocityNorth)
}

// Update integrates one fixed step of semi-implicit Euler: acceleration from
// the accumulated forces, velocity, then the constraint, then position.
// Constraining the velocity before translating is what keeps the boat inside
// the swing radius; correcting after the move would leave it outside for a
// tick per violation.
func (b *Boat) Update(dt float64) {
	if dt <= 0 {
		return
	}
	if dt > MaxTickSeconds {
		dt = MaxTickSeconds
	}

	b.VelocityEast += b.forceEast / b.massKg * dt
	b.VelocityNorth += b.forceNorth / b.massKg * dt

	if b.constraintBearing != nil {
		b.VelocityEast, b.VelocityNorth = constrainOutbound(
			b.VelocityEast, b.VelocityNorth, *b.constraintBearing)
	}

	b.Latitude, b.Longitude = geo.Offset(
		b.Latitude, b.Longitude,
		b.VelocityEast*dt, b.VelocityNorth*dt)

	b.AngularVelocity += b.torque * dt
	b.Heading = geo.NormalizeDegrees(b.Heading + b.AngularVelocity*dt)
	b.AngularVelocity *= math.Exp(-b.angularDamping * dt)
	if b.AngularVelocity > b.maxAngularVel {
		b.AngularVelocity = b.maxAngularVel
	}
	if b.AngularVelocity < -b.maxAngularVel {
		b.AngularVelocity = -b.maxAngularVel
	}

	b.forceEast = 0
	b.forceNorth = 0
	b.torque = 0
}

// constrainOutbound zeroes the velocity component directed away from the
// anchor (the projection onto the boat-to-anchor bearing, negative meaning
// outbound) while preserving the perpendicular swing component. The result
// is a dead stop at the end of the rode rather than a bounce.
func constrainOutbound(vEast, vNorth, bearingToAnchorDeg float64) (float64, float64) {
	ue, un := geo.UnitVector(bearingToAnchorDeg)
	along := vEast*ue + vNorth*un
	if along >= 0 {
		// Moving toward the anchor (or purely sideways) is always allowed.
		return vEast, vNorth
	}
	return vEast - along*ue, vNorth - along*un
}
