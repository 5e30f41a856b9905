package sim

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/anchorwatch/anchorsim/internal/geo"
)

// Simulation is the single-threaded physics-and-deployment engine. All state
// is owned by the tick loop; commands and Tick must be called from the same
// goroutine (the runner serializes external commands onto it).
type Simulation struct {
	cfg  Config
	log  zerolog.Logger
	env  *Environment
	boat *Boat
	seq  *Sequencer

	anchor               *AnchorAttachment
	bowHeight            float64 // bow height given to StartDeploy
	depthPlusBow         float64 // set when the anchor goes down, tracks depth changes
	motor                MotorState
	tickCount            uint64
	elapsedSec           float64
	sessionStart         time.Time
	onStageChange        TransitionFunc
	stopping             bool // suppresses anchor raise during a manual stop
	constraintViolations uint64
}

// New creates a simulation from a validated configuration.
func New(cfg Config, log zerolog.Logger) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulation config: %w", err)
	}
	s := &Simulation{
		cfg:          cfg,
		log:          log,
		env:          NewEnvironment(cfg.Wind, cfg.Tide, cfg.DepthMeters, cfg.Seed),
		boat:         NewBoat(cfg),
		sessionStart: time.Now(),
	}
	s.seq = NewSequencer(cfg.Deployment, log)
	s.seq.OnTransition(s.handleTransition)
	return s, nil
}

// OnStageChange registers a callback fired on every sequencer transition,
// after the simulation's own bookkeeping.
func (s *Simulation) OnStageChange(fn TransitionFunc) {
	s.onStageChange = fn
}

func (s *Simulation) handleTransition(from, to Stage, rode float64) {
	// A completed retrieval raises the anchor. A manual stop lands on the
	// same transition but leaves the anchor down and the rode frozen.
	if from == StageRetrieving && to == StageIdle && !s.stopping {
		s.anchor = nil
		s.bowHeight = 0
		s.boat.ClearVelocityConstraint()
		s.seq.Reset()
		s.log.Info().Msg("anchor raised")
	}
	if s.onStageChange != nil {
		s.onStageChange(from, to, rode)
	}
}

// rodeGeometry builds the current rode geometry from sequencer state.
func (s *Simulation) rodeGeometry() RodeGeometry {
	return RodeGeometry{
		RodeMeters:   s.seq.RodeDeployed(),
		DepthPlusBow: s.depthPlusBow,
	}
}

// Tick advances the simulation one fixed step. Ordering within a tick is
// fixed: environment noise, then forces against the pre-tick state, then
// integration, then the slack/motor recomputation, then the sequencer.
func (s *Simulation) Tick(dt float64) {
	if dt <= 0 || !geo.IsFinite(dt) {
		return
	}
	if dt > MaxTickSeconds {
		dt = MaxTickSeconds
	}
	s.tickCount++
	s.elapsedSec += dt

	s.env.UpdateWind(dt)

	rode := s.rodeGeometry()
	forces := []Force{
		WindForce(s.boat, s.env, &s.cfg),
		WaterDrag(s.boat, &s.cfg),
		MotorThrust(s.boat, s.motor),
		WeathervaneTorque(s.boat, s.env, &s.cfg, s.anchor, rode),
	}
	for _, f := range forces {
		s.boat.ApplyForce(f.East, f.North)
		s.boat.ApplyTorque(f.Torque)
	}

	s.boat.Update(dt)

	s.updateMotor()
	s.seq.Tick(dt, s.boat.Speed())
}

// StartDeploy drops the anchor at the current position and begins the
// staged deployment sequence.
func (s *Simulation) StartDeploy(depthMeters, bowHeightMeters float64) error {
	if !geo.IsFinite(depthMeters, bowHeightMeters) || depthMeters < 0 || bowHeightMeters < 0 {
		return fmt.Errorf("%w: depth=%v bowHeight=%v", ErrInvalidInput, depthMeters, bowHeightMeters)
	}
	if s.seq.Mode() != ModeIdle {
		return ErrDeploymentActive
	}
	s.env.SetDepth(depthMeters)
	s.bowHeight = bowHeightMeters
	s.depthPlusBow = depthMeters + bowHeightMeters
	s.anchor = &AnchorAttachment{
		Latitude:  s.boat.Latitude,
		Longitude: s.boat.Longitude,
	}
	s.seq.StartDeploy(s.depthPlusBow)
	s.log.Info().
		Float64("depth", depthMeters).
		Float64("bowHeight", bowHeightMeters).
		Msg("anchor deployment started")
	return nil
}

// StartRetrieve begins hauling the anchor back in.
func (s *Simulation) StartRetrieve() error {
	if s.anchor == nil {
		return ErrNotAnchored
	}
	s.seq.StartRetrieve()
	s.log.Info().Msg("anchor retrieval started")
	return nil
}

// Stop aborts the active sequence, freezing the rode at its current length.
// The anchor stays attached so the constraint keeps holding the boat.
func (s *Simulation) Stop() {
	s.stopping = true
	s.seq.Stop()
	s.stopping = false
}

// SetWind overrides the base wind speed and direction.
func (s *Simulation) SetWind(speedKnots, directionDeg float64) error {
	if !geo.IsFinite(speedKnots, directionDeg) || speedKnots < 0 {
		return fmt.Errorf("%w: wind speed=%v direction=%v", ErrInvalidInput, speedKnots, directionDeg)
	}
	s.env.SetWind(speedKnots, directionDeg)
	return nil
}

// SetDepth overrides the base water depth.
func (s *Simulation) SetDepth(meters float64) error {
	if !geo.IsFinite(meters) || meters < 0 {
		return fmt.Errorf("%w: depth=%v", ErrInvalidInput, meters)
	}
	s.env.SetDepth(meters)
	if s.anchor != nil {
		s.depthPlusBow = meters + s.bowHeight
		s.seq.SetDepthPlusBow(s.depthPlusBow)
	}
	return nil
}

// Reset restores the boat, environment, and deployment state to configured
// defaults. Resetting an already-reset simulation is a no-op.
func (s *Simulation) Reset() {
	s.boat = NewBoat(s.cfg)
	s.env.Reset(s.cfg.DepthMeters)
	s.seq.Reset()
	s.anchor = nil
	s.bowHeight = 0
	s.depthPlusBow = 0
	s.motor = MotorState{}
	s.tickCount = 0
	s.elapsedSec = 0
	s.constraintViolations = 0
	s.log.Info().Msg("simulation reset")
}

// ConstraintViolations returns how many ticks exceeded the catenary limit
// beyond tolerance, a tuning signal rather than an error.
func (s *Simulation) ConstraintViolations() uint64 {
	return s.constraintViolations
}

// Snapshot renders the read-only view published to the glue layer. It is a
// value copy; nothing reachable from it aliases simulation state.
func (s *Simulation) Snapshot() Snapshot {
	windSpeed, windDir := s.env.WindVector()
	snap := Snapshot{
		TickCount:        s.tickCount,
		ElapsedSec:       s.elapsedSec,
		Latitude:         s.boat.Latitude,
		Longitude:        s.boat.Longitude,
		VelocityEast:     s.boat.VelocityEast,
		VelocityNorth:    s.boat.VelocityNorth,
		Speed:            s.boat.Speed(),
		Heading:          s.boat.Heading,
		AngularVelocity:  s.boat.AngularVelocity,
		RodeDeployed:     s.seq.RodeDeployed(),
		Stage:            s.seq.Stage().String(),
		MotorEngaged:     s.motor.Engaged,
		MotorThrustN:     s.motor.ThrustN,
		MotorTargetSpeed: s.motor.TargetSpeed,
		ConstraintActive: s.boat.ConstraintActive(),
		WindSpeedKnots:   windSpeed,
		WindDirectionDeg: windDir,
		DepthMeters:      s.env.Depth(),
		TideHeightMeters: s.env.TideHeight(),
	}
	if s.anchor != nil {
		snap.Anchored = true
		snap.AnchorLatitude = s.anchor.Latitude
		snap.AnchorLongitude = s.anchor.Longitude
		distance, _ := anchorBearing(s.boat, s.anchor)
		rode := s.rodeGeometry()
		snap.DistanceFromAnchor = distance
		snap.CatenaryLimit = rode.CatenaryLimit()
		snap.Slack = rode.Slack(distance)
	}
	return snap
}

// Snapshot is the read-only state published outward once per tick. Any
// serialization for transport belongs to the glue layer, not here.
type Snapshot struct {
	TickCount  uint64  `json:"tickCount"`
	ElapsedSec float64 `json:"elapsedSec"`

	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	VelocityEast    float64 `json:"velocityEast"`
	VelocityNorth   float64 `json:"velocityNorth"`
	Speed           float64 `json:"speed"`
	Heading         float64 `json:"heading"`
	AngularVelocity float64 `json:"angularVelocity"`

	Anchored           bool    `json:"anchored"`
	AnchorLatitude     float64 `json:"anchorLatitude,omitempty"`
	AnchorLongitude    float64 `json:"anchorLongitude,omitempty"`
	RodeDeployed       float64 `json:"rodeDeployed"`
	Stage              string  `json:"stage"`
	Slack              float64 `json:"slack"`
	CatenaryLimit      float64 `json:"catenaryLimit"`
	DistanceFromAnchor float64 `json:"distanceFromAnchor"`
	ConstraintActive   bool    `json:"constraintActive"`

	MotorEngaged     bool    `json:"motorEngaged"`
	MotorThrustN     float64 `json:"motorThrustN"`
	MotorTargetSpeed float64 `json:"motorTargetSpeed"`

	WindSpeedKnots   float64 `json:"windSpeedKnots"`
	WindDirectionDeg float64 `json:"windDirectionDeg"`
	DepthMeters      float64 `json:"depthMeters"`
	TideHeightMeters float64 `json:"tideHeightMeters"`
}
