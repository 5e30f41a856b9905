// Package convert builds GORM rows from simulation snapshots.
package convert

import (
	"time"

	"github.com/anchorwatch/anchorsim/internal/geo"
	"github.com/anchorwatch/anchorsim/internal/model"
	"github.com/anchorwatch/anchorsim/internal/sim"
)

// TickStateFromSnapshot converts a per-tick snapshot into a TickState row.
// The vessel fix is projected to web mercator for storage.
func TickStateFromSnapshot(snap sim.Snapshot, sessionID uint, at time.Time) (model.TickState, error) {
	position, err := geo.Point3857From4326(snap.Latitude, snap.Longitude)
	if err != nil {
		return model.TickState{}, err
	}

	return model.TickState{
		Time:      at,
		SessionID: sessionID,
		Tick:      uint(snap.TickCount),

		Position:         position,
		Heading:          float32(snap.Heading),
		SpeedMps:         float32(snap.Speed),
		AngularVelocity:  float32(snap.AngularVelocity),
		Anchored:         snap.Anchored,
		RodeMeters:       float32(snap.RodeDeployed),
		SlackMeters:      float32(snap.Slack),
		DistanceMeters:   float32(snap.DistanceFromAnchor),
		Stage:            snap.Stage,
		MotorEngaged:     snap.MotorEngaged,
		MotorThrustN:     float32(snap.MotorThrustN),
		ConstraintActive: snap.ConstraintActive,
		WindSpeedKnots:   float32(snap.WindSpeedKnots),
		WindDirectionDeg: float32(snap.WindDirectionDeg),
		DepthMeters:      float32(snap.DepthMeters),
		TideMeters:       float32(snap.TideHeightMeters),
	}, nil
}

// StageEventFromTransition converts a sequencer transition into a StageEvent
// row. extraData is stored as-is and may be nil.
func StageEventFromTransition(from, to string, rodeMeters float64, tick uint64, sessionID uint, at time.Time, extraData []byte) model.StageEvent {
	e := model.StageEvent{
		Time:       at,
		SessionID:  sessionID,
		Tick:       uint(tick),
		FromStage:  from,
		ToStage:    to,
		RodeMeters: float32(rodeMeters),
	}
	if len(extraData) > 0 {
		e.ExtraData = extraData
	}
	return e
}
