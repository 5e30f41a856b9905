// Package publisher pushes live simulator state to external consumers,
// currently WebSocket and MQTT.
package publisher

import (
	"github.com/rs/zerolog"

	"github.com/anchorwatch/anchorsim/internal/sim"
)

// Publisher delivers simulator state to one external consumer.
type Publisher interface {
	// PublishSnapshot sends the state of one completed tick.
	PublishSnapshot(snap sim.Snapshot) error
	// PublishTransition sends a deployment sequencer stage change.
	PublishTransition(fromStage, toStage string, rodeMeters float64, tick uint64) error
	Close() error
}

// Multi fans out to several publishers; errors are logged, not propagated,
// so one slow consumer cannot stall the tick loop.
type Multi struct {
	publishers []Publisher
	log        zerolog.Logger
}

// NewMulti wraps a set of publishers behind a single Publisher.
func NewMulti(log zerolog.Logger, publishers ...Publisher) *Multi {
	return &Multi{publishers: publishers, log: log}
}

func (m *Multi) PublishSnapshot(snap sim.Snapshot) error {
	for _, p := range m.publishers {
		if err := p.PublishSnapshot(snap); err != nil {
			m.log.Warn().Err(err).Msg("Failed to publish snapshot")
		}
	}
	return nil
}

func (m *Multi) PublishTransition(fromStage, toStage string, rodeMeters float64, tick uint64) error {
	for _, p := range m.publishers {
		if err := p.PublishTransition(fromStage, toStage, rodeMeters, tick); err != nil {
			m.log.Warn().Err(err).Msg("Failed to publish stage transition")
		}
	}
	return nil
}

func (m *Multi) Close() error {
	var firstErr error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// transitionMessage is the wire form of a stage change.
type transitionMessage struct {
	Type       string  `json:"type"`
	FromStage  string  `json:"fromStage"`
	ToStage    string  `json:"toStage"`
	RodeMeters float64 `json:"rodeMeters"`
	Tick       uint64  `json:"tick"`
}

// snapshotMessage wraps a snapshot with a type discriminator so consumers
// can share one stream for both message kinds.
type snapshotMessage struct {
	Type string `json:"type"`
	sim.Snapshot
}
