package sim

// MotorState is the slack controller's output, recomputed fresh every tick
// so an abort can never leave a stale thrust applied.
type MotorState struct {
	Engaged     bool
	Reverse     bool    // true = thrust opposite the heading (deployment assist)
	ThrustN     float64 // applied magnitude
	TargetSpeed float64 // m/s tier selected from slack
	Slack       float64 // last computed slack, for the snapshot
}

// motorTargetSpeed maps slack to the target-speed tier:
// under 1 m the motor stays off, 1-3 m selects the medium tier, 3 m and
// above the high tier.
func motorTargetSpeed(slack float64, cfg *Config) float64 {
	switch {
	case slack < 1:
		return 0
	case slack < 3:
		return cfg.MotorMediumSpeed
	default:
		return cfg.MotorHighSpeed
	}
}

// updateMotor recomputes slack and the motor decision from the boat state
// left by this tick's integration. The motor engages only when the boat is
// slower than the engage threshold and a non-zero tier is selected, so wind
// already doing the work is never fought. Direction follows the sequencer
// mode: reverse while deploying or riding at anchor (laying chain out),
// forward while retrieving (closing on the anchor). This inversion mirrors
// the windlass controller this simulator stands in for; see DESIGN.md.
func (s *Simulation) updateMotor() {
	s.motor = MotorState{}

	if s.anchor == nil {
		return
	}

	distance, bearing := anchorBearing(s.boat, s.anchor)
	rode := s.rodeGeometry()
	slack := rode.Slack(distance)
	s.motor.Slack = slack

	// Tier selection inverts on retrieval: hauling in, the boat must keep up
	// with the winch, so tautness (-slack) picks the tier instead of slack.
	retrieving := s.seq.Mode() == ModeRetrieve
	tierInput := slack
	if retrieving {
		tierInput = -slack
	}
	target := motorTargetSpeed(tierInput, &s.cfg)
	s.motor.TargetSpeed = target

	if target > 0 && s.boat.Speed() < s.cfg.MotorMinEngageSpeed {
		s.motor.Engaged = true
		if retrieving {
			s.motor.Reverse = false
			s.motor.ThrustN = s.cfg.MotorForwardThrustN * target / s.cfg.MotorHighSpeed
		} else {
			s.motor.Reverse = true
			s.motor.ThrustN = s.cfg.MotorReverseThrustN * target / s.cfg.MotorHighSpeed
		}
	}

	// The hard geometric constraint is independent of the thrust decision:
	// at the catenary limit the outbound velocity component is zeroed, and
	// the constraint is dropped as soon as the boat swings back inside.
	if rode.AtLimit(distance) && rode.CatenaryLimit() > 0 {
		if !s.boat.ConstraintActive() {
			s.log.Debug().
				Float64("distance", distance).
				Float64("limit", rode.CatenaryLimit()).
				Msg("catenary limit reached, constraining velocity")
		}
		if slack < -slackToleranceMeters && !retrieving {
			s.constraintViolations++
			s.log.Warn().
				Float64("slack", slack).
				Uint64("tick", s.tickCount).
				Msg("rode over-extended beyond tolerance")
		}
		s.boat.SetVelocityConstraint(bearing)
	} else {
		s.boat.ClearVelocityConstraint()
	}
}

// slackToleranceMeters is the over-extension accepted before a violation is
// counted as a tuning signal. Small negative slack is expected for a tick at
// the moment the limit is first crossed.
const slackToleranceMeters = 0.25
