package sim

import (
	"fmt"

	"github.com/anchorwatch/anchorsim/internal/geo"
)

// Config holds every tunable simulation parameter. It is built once, passed
// into New, and never mutated afterwards so runs stay reproducible.
type Config struct {
	// Boat
	MassKg               float64 // displacement of the simulated vessel
	DragCoefficient      float64 // water drag, N per (m/s)^2
	WindForceCoefficient float64 // translational wind force, N per (m/s)^2 apparent
	WeathervaneGain      float64 // torque turning the bow into the wind, deg/s^2 per deg offset
	AnchorAlignGain      float64 // torque toward the anchor when the rode is under tension
	AngularDamping       float64 // exponential decay rate of angular velocity, 1/s
	MaxAngularVelocity   float64 // deg/s
	InitialLatitude      float64
	InitialLongitude     float64
	InitialHeading       float64

	// Motor
	MotorForwardThrustN float64 // retrieval assist, along heading
	MotorReverseThrustN float64 // deployment assist, opposite heading
	MotorMinEngageSpeed float64 // m/s: below this the motor may engage
	MotorMediumSpeed    float64 // m/s target for the medium slack tier
	MotorHighSpeed      float64 // m/s target for the high slack tier

	// Environment
	DepthMeters     float64
	BowHeightMeters float64
	Wind            WindConfig
	Tide            TideConfig

	// Deployment
	Deployment DeploymentConfig

	// Seed makes wind noise reproducible. Zero selects a fixed default.
	Seed int64
}

// WindConfig controls the gust and direction-shift noise model.
type WindConfig struct {
	BaseSpeedKnots       float64
	BaseDirectionDeg     float64 // direction the wind blows from
	GustMagnitudeKnots   float64 // max deviation of a gust target from base speed
	GustIntervalMinSec   float64
	GustIntervalMaxSec   float64
	GustSmoothingRate    float64 // 1/s, exponential approach to gust target
	ShiftMagnitudeDeg    float64 // max base-direction jump per shift
	ShiftIntervalSec     float64
	OscillationAmpDeg    float64
	OscillationPeriodSec float64
	JitterDeg            float64
}

// TideConfig controls the standalone sinusoidal tide-height generator. Tide
// is published on the snapshot and never fed into the physics depth.
type TideConfig struct {
	AmplitudeMeters float64
	PeriodSec       float64 // default is a semidiurnal cycle
	MeanMeters      float64
}

// DeploymentConfig controls the stage sequencer.
type DeploymentConfig struct {
	WinchRateMps         float64 // free payout/haul rate of the windlass
	InitialSlackMeters   float64 // extra rode beyond depth+bow for the initial drop
	OrientationHoldSec   float64
	DigInDeployMaxSec    float64
	DigInHoldSec         float64
	DeepDeployMaxSec     float64
	DeepHoldSec          float64
	DigInScope           float64 // rode/(depth+bow) target after the first dig-in deploy
	DeepScope            float64 // target after the deep dig-in deploy
	FinalScope           float64 // terminal scope ratio, typically 5:1
	SpeedWindowTicks     int     // samples used for the stabilization variance
	SpeedVarianceMax     float64 // m^2/s^2: below this the boat counts as stabilized
	SpeedSmoothing       float64 // EMA factor for the drift-speed estimate
	RetrieveMinRodeMeter float64 // safety stop for retrieval
}

// Wind speed is always clamped to this range regardless of configuration.
const (
	WindSpeedMinKnots = 2.0
	WindSpeedMaxKnots = 40.0
)

// MaxTickSeconds caps dt so a paused or stalled driver cannot inject a
// discontinuity into the noise models or the integrator.
const MaxTickSeconds = 0.5

// DefaultConfig returns the tuning used by the validation runs: a ~10t
// vessel whose equilibrium drift is about 0.05 m/s per knot of wind.
func DefaultConfig() Config {
	return Config{
		MassKg:               10000,
		DragCoefficient:      150,
		WindForceCoefficient: 1.42,
		WeathervaneGain:      0.08,
		AnchorAlignGain:      0.12,
		AngularDamping:       0.5,
		MaxAngularVelocity:   10,
		InitialLatitude:      43.6,
		InitialLongitude:     -70.2,
		InitialHeading:       0,

		MotorForwardThrustN: 500,
		MotorReverseThrustN: 300,
		MotorMinEngageSpeed: 0.3,
		MotorMediumSpeed:    0.4,
		MotorHighSpeed:      0.8,

		DepthMeters:     3,
		BowHeightMeters: 2,
		Wind: WindConfig{
			BaseSpeedKnots:       10,
			BaseDirectionDeg:     180,
			GustMagnitudeKnots:   3,
			GustIntervalMinSec:   3,
			GustIntervalMaxSec:   8,
			GustSmoothingRate:    0.6,
			ShiftMagnitudeDeg:    15,
			ShiftIntervalSec:     30,
			OscillationAmpDeg:    5,
			OscillationPeriodSec: 45,
			JitterDeg:            0.5,
		},
		Tide: TideConfig{
			AmplitudeMeters: 0.8,
			PeriodSec:       12.42 * 3600,
			MeanMeters:      0,
		},
		Deployment: DeploymentConfig{
			WinchRateMps:         1.0,
			InitialSlackMeters:   2,
			OrientationHoldSec:   2,
			DigInDeployMaxSec:    45,
			DigInHoldSec:         30,
			DeepDeployMaxSec:     75,
			DeepHoldSec:          75,
			DigInScope:           2.5,
			DeepScope:            4,
			FinalScope:           5,
			SpeedWindowTicks:     20,
			SpeedVarianceMax:     0.01,
			SpeedSmoothing:       0.2,
			RetrieveMinRodeMeter: 2,
		},
		Seed: 1,
	}
}

// Validate rejects non-finite or physically meaningless parameters before
// they can reach the force or integration math.
func (c Config) Validate() error {
	if !geo.IsFinite(
		c.MassKg, c.DragCoefficient, c.WindForceCoefficient,
		c.WeathervaneGain, c.AnchorAlignGain, c.AngularDamping,
		c.MaxAngularVelocity, c.InitialLatitude, c.InitialLongitude,
		c.InitialHeading, c.MotorForwardThrustN, c.MotorReverseThrustN,
		c.MotorMinEngageSpeed, c.MotorMediumSpeed, c.MotorHighSpeed,
		c.DepthMeters, c.BowHeightMeters,
	) {
		return fmt.Errorf("%w: non-finite value in config", ErrInvalidInput)
	}
	if !geo.IsFinite(
		c.Wind.BaseSpeedKnots, c.Wind.BaseDirectionDeg,
		c.Wind.GustMagnitudeKnots, c.Wind.GustIntervalMinSec,
		c.Wind.GustIntervalMaxSec, c.Wind.GustSmoothingRate,
		c.Wind.ShiftMagnitudeDeg, c.Wind.ShiftIntervalSec,
		c.Wind.OscillationAmpDeg, c.Wind.OscillationPeriodSec,
		c.Wind.JitterDeg,
	) {
		return fmt.Errorf("%w: non-finite value in wind config", ErrInvalidInput)
	}
	if !geo.IsFinite(c.Tide.AmplitudeMeters, c.Tide.PeriodSec, c.Tide.MeanMeters) {
		return fmt.Errorf("%w: non-finite value in tide config", ErrInvalidInput)
	}
	if !geo.IsFinite(
		c.Deployment.WinchRateMps, c.Deployment.InitialSlackMeters,
		c.Deployment.OrientationHoldSec, c.Deployment.DigInDeployMaxSec,
		c.Deployment.DigInHoldSec, c.Deployment.DeepDeployMaxSec,
		c.Deployment.DeepHoldSec, c.Deployment.DigInScope,
		c.Deployment.DeepScope, c.Deployment.FinalScope,
		c.Deployment.SpeedVarianceMax, c.Deployment.SpeedSmoothing,
		c.Deployment.RetrieveMinRodeMeter,
	) {
		return fmt.Errorf("%w: non-finite value in deployment config", ErrInvalidInput)
	}
	if c.MassKg <= 0 {
		return fmt.Errorf("%w: mass must be positive", ErrInvalidInput)
	}
	if c.DepthMeters < 0 {
		return fmt.Errorf("%w: depth must be >= 0", ErrInvalidInput)
	}
	if c.MaxAngularVelocity <= 0 {
		return fmt.Errorf("%w: max angular velocity must be positive", ErrInvalidInput)
	}
	if c.Deployment.FinalScope <= 1 {
		return fmt.Errorf("%w: final scope must exceed 1", ErrInvalidInput)
	}
	if c.Deployment.WinchRateMps <= 0 {
		return fmt.Errorf("%w: winch rate must be positive", ErrInvalidInput)
	}
	return nil
}
