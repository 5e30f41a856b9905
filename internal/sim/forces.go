package sim

import (
	"math"

	"github.com/anchorwatch/anchorsim/internal/geo"
)

// Force is one tick's contribution from a single force module.
type Force struct {
	East   float64 // N
	North  float64 // N
	Torque float64 // deg/s^2
}

// WindForce is proportional to apparent wind speed squared and pushes the
// boat along the apparent wind flow. It is purely translational; heading
// effects come from WeathervaneTorque.
func WindForce(b *Boat, e *Environment, cfg *Config) Force {
	speedKnots, fromDeg := e.WindVector()
	windMps := speedKnots * geo.MetersPerSecondPerKnot

	// Wind blows FROM fromDeg; the flow vector points the opposite way.
	fe, fn := geo.UnitVector(fromDeg + 180)
	flowEast := fe * windMps
	flowNorth := fn * windMps

	appEast := flowEast - b.VelocityEast
	appNorth := flowNorth - b.VelocityNorth
	appSpeed := math.Hypot(appEast, appNorth)
	if appSpeed < 1e-9 {
		return Force{}
	}

	mag := cfg.WindForceCoefficient * appSpeed * appSpeed
	return Force{
		East:  mag * appEast / appSpeed,
		North: mag * appNorth / appSpeed,
	}
}

// WaterDrag opposes velocity with magnitude proportional to speed squared,
// component-wise: drag = -v*|v|*coefficient. This is the dominant damping
// term; it must see the velocity from before this tick's integration, which
// Boat guarantees by accumulating forces before Update.
func WaterDrag(b *Boat, cfg *Config) Force {
	return Force{
		East:  -b.VelocityEast * math.Abs(b.VelocityEast) * cfg.DragCoefficient,
		North: -b.VelocityNorth * math.Abs(b.VelocityNorth) * cfg.DragCoefficient,
	}
}

// MotorThrust converts the controller's decision into a force along the
// boat's heading (forward) or its reverse. The motor pushes the boat; it
// never steers toward the anchor directly.
func MotorThrust(b *Boat, m MotorState) Force {
	if !m.Engaged || m.ThrustN == 0 {
		return Force{}
	}
	bearing := b.Heading
	if m.Reverse {
		bearing += 180
	}
	fe, fn := geo.UnitVector(bearing)
	return Force{East: fe * m.ThrustN, North: fn * m.ThrustN}
}

// WeathervaneTorque turns the bow into the wind, the way an anchored boat
// naturally rides, and adds an alignment pull toward the anchor scaled by
// rode tension when one is set. Both terms act on heading only.
func WeathervaneTorque(b *Boat, e *Environment, cfg *Config, anchor *AnchorAttachment, rode RodeGeometry) Force {
	speedKnots, fromDeg := e.WindVector()
	windMps := speedKnots * geo.MetersPerSecondPerKnot

	// Offset of the bow from the wind source, scaled by wind pressure.
	windOffset := geo.AngleDiff(b.Heading, fromDeg)
	torque := cfg.WeathervaneGain * windOffset * windMps / 10

	if anchor != nil {
		distance, bearing := anchorBearing(b, anchor)
		tension := rode.TensionFactor(distance)
		if tension > 0 {
			anchorOffset := geo.AngleDiff(b.Heading, bearing)
			torque += cfg.AnchorAlignGain * anchorOffset * tension
		}
	}

	return Force{Torque: torque}
}
