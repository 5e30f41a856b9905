package sim

import (
	"math"
	"math/rand"

	"github.com/anchorwatch/anchorsim/internal/geo"
)

// Environment owns wind and water depth. Wind carries two layers of noise:
// gusts (a target deviation picked every few seconds, approached
// exponentially) and direction wander (a slow sinusoidal oscillation plus
// jitter on top of a base direction that jumps a little every shift
// interval). The combination produces the natural swing of a boat at anchor
// without discrete velocity steps.
type Environment struct {
	cfg  WindConfig
	tide TideConfig
	rng  *rand.Rand

	baseSpeed     float64 // knots
	baseDirection float64 // deg, wind from
	gustCurrent   float64 // knots deviation from base
	gustTarget    float64
	nextGustSec   float64 // countdown to the next gust target
	sinceShiftSec float64
	oscPhase      float64 // radians
	jitterCurrent float64 // deg, resampled once per tick
	elapsedSec    float64

	depthMeters float64
}

// NewEnvironment creates an environment seeded for reproducible noise.
func NewEnvironment(cfg WindConfig, tide TideConfig, depthMeters float64, seed int64) *Environment {
	if seed == 0 {
		seed = 1
	}
	e := &Environment{
		cfg:  cfg,
		tide: tide,
		rng:  rand.New(rand.NewSource(seed)),
	}
	e.reset(depthMeters)
	return e
}

func (e *Environment) reset(depthMeters float64) {
	e.baseSpeed = e.cfg.BaseSpeedKnots
	e.baseDirection = geo.NormalizeDegrees(e.cfg.BaseDirectionDeg)
	e.gustCurrent = 0
	e.gustTarget = 0
	e.nextGustSec = e.gustInterval()
	e.sinceShiftSec = 0
	e.oscPhase = 0
	e.jitterCurrent = 0
	e.elapsedSec = 0
	e.depthMeters = depthMeters
}

// Reset restores configured defaults, reusing the same random stream.
func (e *Environment) Reset(depthMeters float64) {
	e.reset(depthMeters)
}

func (e *Environment) gustInterval() float64 {
	lo, hi := e.cfg.GustIntervalMinSec, e.cfg.GustIntervalMaxSec
	if hi <= lo {
		return lo
	}
	return lo + e.rng.Float64()*(hi-lo)
}

// UpdateWind advances the gust and direction noise by dt seconds. dt is
// clamped to MaxTickSeconds so a paused driver cannot cause a jump.
func (e *Environment) UpdateWind(dt float64) {
	if dt <= 0 {
		return
	}
	if dt > MaxTickSeconds {
		dt = MaxTickSeconds
	}
	e.elapsedSec += dt

	// Gusts: new target every 3-8s, exponential approach between picks.
	e.nextGustSec -= dt
	if e.nextGustSec <= 0 {
		e.gustTarget = (e.rng.Float64()*2 - 1) * e.cfg.GustMagnitudeKnots
		e.nextGustSec = e.gustInterval()
	}
	blend := e.cfg.GustSmoothingRate * dt
	if blend > 1 {
		blend = 1
	}
	e.gustCurrent += (e.gustTarget - e.gustCurrent) * blend

	// Direction: slow base shift plus continuous oscillation.
	e.sinceShiftSec += dt
	if e.cfg.ShiftIntervalSec > 0 && e.sinceShiftSec >= e.cfg.ShiftIntervalSec {
		e.sinceShiftSec -= e.cfg.ShiftIntervalSec
		e.baseDirection = geo.NormalizeDegrees(
			e.baseDirection + (e.rng.Float64()*2-1)*e.cfg.ShiftMagnitudeDeg)
	}
	if e.cfg.OscillationPeriodSec > 0 {
		e.oscPhase += 2 * math.Pi * dt / e.cfg.OscillationPeriodSec
		if e.oscPhase > 2*math.Pi {
			e.oscPhase -= 2 * math.Pi
		}
	}

	// Jitter is sampled once per tick so every reader within the tick sees
	// the same wind.
	e.jitterCurrent = (e.rng.Float64()*2 - 1) * e.cfg.JitterDeg
}

// WindVector returns the current wind speed in knots and the true direction
// the wind blows from, in degrees [0, 360). It is a pure read; all noise is
// advanced by UpdateWind.
func (e *Environment) WindVector() (speedKnots, directionDeg float64) {
	speedKnots = e.baseSpeed + e.gustCurrent
	if speedKnots < WindSpeedMinKnots {
		speedKnots = WindSpeedMinKnots
	}
	if speedKnots > WindSpeedMaxKnots {
		speedKnots = WindSpeedMaxKnots
	}

	directionDeg = e.baseDirection +
		e.cfg.OscillationAmpDeg*math.Sin(e.oscPhase) +
		e.jitterCurrent
	return speedKnots, geo.NormalizeDegrees(directionDeg)
}

// SetWind overrides the base wind. Gust state is kept so the transition
// stays smooth.
func (e *Environment) SetWind(speedKnots, directionDeg float64) {
	e.baseSpeed = speedKnots
	e.baseDirection = geo.NormalizeDegrees(directionDeg)
}

// Depth returns the base water depth in meters. Tide is deliberately not
// applied here; the physics sees a constant depth.
func (e *Environment) Depth() float64 {
	return e.depthMeters
}

// SetDepth overrides the base water depth.
func (e *Environment) SetDepth(meters float64) {
	if meters < 0 {
		meters = 0
	}
	e.depthMeters = meters
}

// TideHeight returns the current tide height above mean, a pure function of
// elapsed simulation time with no coupling to depth.
func (e *Environment) TideHeight() float64 {
	if e.tide.PeriodSec <= 0 {
		return e.tide.MeanMeters
	}
	return e.tide.MeanMeters +
		e.tide.AmplitudeMeters*math.Sin(2*math.Pi*e.elapsedSec/e.tide.PeriodSec)
}
