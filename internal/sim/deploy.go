package sim

import (
	"github.com/rs/zerolog"
)

// Mode is the coarse direction of the windlass machinery.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDeploy
	ModeRetrieve
)

// Stage enumerates the deployment sequence. The drop runs the stages in
// order; retrieval runs a single reversing stage down to the safety stop.
type Stage int

const (
	StageIdle Stage = iota
	StageInitialDrop
	StageOrientationWait
	StageDigInDeploy
	StageDigInHold
	StageDeepDeploy
	StageDeepHold
	StageFinalScope
	StageSettled
	StageRetrieving
)

var stageNames = map[Stage]string{
	StageIdle:            "idle",
	StageInitialDrop:     "initialDrop",
	StageOrientationWait: "orientationWait",
	StageDigInDeploy:     "digInDeploy",
	StageDigInHold:       "digInHold",
	StageDeepDeploy:      "deepDigInDeploy",
	StageDeepHold:        "deepDigInHold",
	StageFinalScope:      "finalScope",
	StageSettled:         "settled",
	StageRetrieving:      "retrieving",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// stageSpec is one row of the transition table: how the stage mutates rode
// each tick and the guard deciding when to hand over to the next stage.
type stageSpec struct {
	next Stage

	// payout advances the rode for one tick. Nil means a hold stage.
	payout func(q *Sequencer, dt float64)

	// advance is the transition guard, evaluated after payout.
	advance func(q *Sequencer) bool
}

// TransitionFunc is notified on every stage change so runs can be recorded.
type TransitionFunc func(from, to Stage, rodeMeters float64)

// Sequencer walks the deployment stage table at the cadence of the tick
// loop. Rode payout in the dig-in stages is matched to the boat's observed
// drift speed: paying out faster than the boat drifts bunches chain, slower
// pulls the rode taut early.
type Sequencer struct {
	cfg DeploymentConfig
	log zerolog.Logger

	stage        Stage
	rodeMeters   float64
	depthPlusBow float64
	stageElapsed float64

	smoothedSpeed float64
	speedWindow   []float64

	onTransition TransitionFunc
}

// NewSequencer creates an idle sequencer.
func NewSequencer(cfg DeploymentConfig, log zerolog.Logger) *Sequencer {
	return &Sequencer{
		cfg:         cfg,
		log:         log,
		stage:       StageIdle,
		speedWindow: make([]float64, 0, cfg.SpeedWindowTicks),
	}
}

// OnTransition registers a stage-change callback.
func (q *Sequencer) OnTransition(fn TransitionFunc) {
	q.onTransition = fn
}

// Stage returns the current stage.
func (q *Sequencer) Stage() Stage { return q.stage }

// RodeDeployed returns the rode paid out so far, in meters.
func (q *Sequencer) RodeDeployed() float64 { return q.rodeMeters }

// SmoothedSpeed returns the drift-speed estimate used for rate matching.
func (q *Sequencer) SmoothedSpeed() float64 { return q.smoothedSpeed }

// Mode reports whether the machinery is deploying, retrieving, or idle.
func (q *Sequencer) Mode() Mode {
	switch q.stage {
	case StageIdle, StageSettled:
		return ModeIdle
	case StageRetrieving:
		return ModeRetrieve
	default:
		return ModeDeploy
	}
}

// StartDeploy begins the drop sequence. depthPlusBow sets the geometry the
// stage targets scale from.
func (q *Sequencer) StartDeploy(depthPlusBow float64) {
	q.depthPlusBow = depthPlusBow
	q.rodeMeters = 0
	q.transition(StageInitialDrop)
}

// SetDepthPlusBow retargets the stage geometry after a mid-cycle depth
// change. Ignored when no cycle is active.
func (q *Sequencer) SetDepthPlusBow(v float64) {
	if q.stage == StageIdle {
		return
	}
	q.depthPlusBow = v
}

// StartRetrieve begins hauling the rode back in.
func (q *Sequencer) StartRetrieve() {
	q.transition(StageRetrieving)
}

// Stop aborts the sequence at the current stage boundary: rode freezes at
// its current value and control returns to idle. Motor force and the
// velocity constraint are recomputed fresh every tick, so nothing is left
// half-applied.
func (q *Sequencer) Stop() {
	if q.stage == StageIdle {
		return
	}
	q.transition(StageIdle)
}

// Reset discards all deployment state.
func (q *Sequencer) Reset() {
	q.stage = StageIdle
	q.rodeMeters = 0
	q.depthPlusBow = 0
	q.stageElapsed = 0
	q.smoothedSpeed = 0
	q.speedWindow = q.speedWindow[:0]
}

// Tick advances the sequencer by dt seconds using the boat speed read back
// from this tick's integration.
func (q *Sequencer) Tick(dt, boatSpeed float64) {
	q.observeSpeed(boatSpeed)

	spec, ok := q.stageTable()[q.stage]
	if !ok {
		return
	}
	q.stageElapsed += dt

	if spec.payout != nil {
		spec.payout(q, dt)
	}
	if spec.advance != nil && spec.advance(q) {
		q.transition(spec.next)
	}
}

func (q *Sequencer) transition(to Stage) {
	from := q.stage
	q.stage = to
	q.stageElapsed = 0
	q.speedWindow = q.speedWindow[:0]
	q.log.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Float64("rode", q.rodeMeters).
		Msg("deployment stage transition")
	if q.onTransition != nil {
		q.onTransition(from, to, q.rodeMeters)
	}
}

// observeSpeed maintains the EMA drift estimate and the stabilization window.
func (q *Sequencer) observeSpeed(speed float64) {
	if q.smoothedSpeed == 0 {
		q.smoothedSpeed = speed
	} else {
		a := q.cfg.SpeedSmoothing
		q.smoothedSpeed = a*speed + (1-a)*q.smoothedSpeed
	}

	if len(q.speedWindow) == cap(q.speedWindow) && cap(q.speedWindow) > 0 {
		copy(q.speedWindow, q.speedWindow[1:])
		q.speedWindow[len(q.speedWindow)-1] = speed
	} else {
		q.speedWindow = append(q.speedWindow, speed)
	}
}

// speedStabilized reports whether the window is full and its variance is
// under the configured threshold.
func (q *Sequencer) speedStabilized() bool {
	if len(q.speedWindow) < q.cfg.SpeedWindowTicks || len(q.speedWindow) == 0 {
		return false
	}
	var mean float64
	for _, v := range q.speedWindow {
		mean += v
	}
	mean /= float64(len(q.speedWindow))
	var variance float64
	for _, v := range q.speedWindow {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(q.speedWindow))
	return variance < q.cfg.SpeedVarianceMax
}

// timedOut force-advances a deploy stage that never stabilized; stalling
// here used to present as a hung validation run.
func (q *Sequencer) timedOut(maxSec float64) bool {
	if q.stageElapsed < maxSec {
		return false
	}
	q.log.Warn().
		Str("stage", q.stage.String()).
		Float64("elapsed", q.stageElapsed).
		Msg("deploy stage timed out without stabilizing, force-advancing")
	return true
}

// payoutAtWinchRate pays chain out at the free windlass rate, capped at the
// stage target.
func (q *Sequencer) payoutAtWinchRate(dt, target float64) {
	q.rodeMeters += q.cfg.WinchRateMps * dt
	if q.rodeMeters > target {
		q.rodeMeters = target
	}
}

// payoutRateMatched pays out no faster than the boat is drifting.
func (q *Sequencer) payoutRateMatched(dt, target float64) {
	rate := q.smoothedSpeed
	if rate < 0 {
		rate = 0
	}
	if rate > q.cfg.WinchRateMps {
		rate = q.cfg.WinchRateMps
	}
	q.rodeMeters += rate * dt
	if q.rodeMeters > target {
		q.rodeMeters = target
	}
}

func (q *Sequencer) initialDropTarget() float64 {
	return q.depthPlusBow + q.cfg.InitialSlackMeters
}
func (q *Sequencer) digInTarget() float64 { return q.cfg.DigInScope * q.depthPlusBow }
func (q *Sequencer) deepTarget() float64  { return q.cfg.DeepScope * q.depthPlusBow }
func (q *Sequencer) finalTarget() float64 { return q.cfg.FinalScope * q.depthPlusBow }

// stageTable is the transition-guard table: each stage names its successor,
// how it moves the rode, and when it yields.
func (q *Sequencer) stageTable() map[Stage]stageSpec {
	return map[Stage]stageSpec{
		StageInitialDrop: {
			next:    StageOrientationWait,
			payout:  func(q *Sequencer, dt float64) { q.payoutAtWinchRate(dt, q.initialDropTarget()) },
			advance: func(q *Sequencer) bool { return q.rodeMeters >= q.initialDropTarget() },
		},
		StageOrientationWait: {
			next:    StageDigInDeploy,
			advance: func(q *Sequencer) bool { return q.stageElapsed >= q.cfg.OrientationHoldSec },
		},
		StageDigInDeploy: {
			next:   StageDigInHold,
			payout: func(q *Sequencer, dt float64) { q.payoutRateMatched(dt, q.digInTarget()) },
			advance: func(q *Sequencer) bool {
				return q.rodeMeters >= q.digInTarget() ||
					q.speedStabilized() ||
					q.timedOut(q.cfg.DigInDeployMaxSec)
			},
		},
		StageDigInHold: {
			next:    StageDeepDeploy,
			advance: func(q *Sequencer) bool { return q.stageElapsed >= q.cfg.DigInHoldSec },
		},
		StageDeepDeploy: {
			next:   StageDeepHold,
			payout: func(q *Sequencer, dt float64) { q.payoutRateMatched(dt, q.deepTarget()) },
			advance: func(q *Sequencer) bool {
				return q.rodeMeters >= q.deepTarget() ||
					q.speedStabilized() ||
					q.timedOut(q.cfg.DeepDeployMaxSec)
			},
		},
		StageDeepHold: {
			next:    StageFinalScope,
			advance: func(q *Sequencer) bool { return q.stageElapsed >= q.cfg.DeepHoldSec },
		},
		StageFinalScope: {
			next:    StageSettled,
			payout:  func(q *Sequencer, dt float64) { q.payoutAtWinchRate(dt, q.finalTarget()) },
			advance: func(q *Sequencer) bool { return q.rodeMeters >= q.finalTarget() },
		},
		StageRetrieving: {
			next: StageIdle,
			payout: func(q *Sequencer, dt float64) {
				// Haul no faster than the boat closes on the anchor, with a
				// floor so a becalmed boat still finishes; the motor assists
				// whenever the rode runs taut.
				rate := q.smoothedSpeed
				if rate < q.cfg.WinchRateMps*0.25 {
					rate = q.cfg.WinchRateMps * 0.25
				}
				if rate > q.cfg.WinchRateMps {
					rate = q.cfg.WinchRateMps
				}
				q.rodeMeters -= rate * dt
				if q.rodeMeters < q.cfg.RetrieveMinRodeMeter {
					q.rodeMeters = q.cfg.RetrieveMinRodeMeter
				}
			},
			advance: func(q *Sequencer) bool { return q.rodeMeters <= q.cfg.RetrieveMinRodeMeter },
		},
	}
}
