// Package runner drives the simulation clock. It owns the only goroutine
// that touches the simulation; commands from the dispatcher and reads from
// the HTTP surface are serialized through its mutex.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/anchorwatch/anchorsim/internal/dispatcher"
	"github.com/anchorwatch/anchorsim/internal/influx"
	"github.com/anchorwatch/anchorsim/internal/model"
	"github.com/anchorwatch/anchorsim/internal/model/convert"
	"github.com/anchorwatch/anchorsim/internal/publisher"
	"github.com/anchorwatch/anchorsim/internal/sim"
	"github.com/anchorwatch/anchorsim/internal/storage"
)

// Options configures the tick loop.
type Options struct {
	// TickSeconds is the simulated time step per tick.
	TickSeconds float64
	// TimeAcceleration divides the wall-clock interval between ticks.
	// 1 runs in real time, 10 runs ten times faster.
	TimeAcceleration float64
	// SessionTag labels the recorded session.
	SessionTag string
}

// Runner ticks the simulation and fans each completed tick out to storage,
// InfluxDB, and the publishers.
type Runner struct {
	opts    Options
	log     zerolog.Logger
	backend storage.Backend
	metrics *influx.Manager
	pub     publisher.Publisher

	mu  sync.Mutex
	sim *sim.Simulation

	session *model.Session

	done chan struct{}
	wg   sync.WaitGroup

	ticksTotal metric.Int64Counter
}

// New wires the runner. backend, metrics, and pub may be nil when the
// corresponding surface is disabled.
func New(simulation *sim.Simulation, opts Options, backend storage.Backend,
	metrics *influx.Manager, pub publisher.Publisher, log zerolog.Logger) (*Runner, error) {

	if opts.TickSeconds <= 0 {
		opts.TickSeconds = 0.5
	}
	if opts.TimeAcceleration <= 0 {
		opts.TimeAcceleration = 1
	}

	r := &Runner{
		opts:    opts,
		log:     log,
		backend: backend,
		metrics: metrics,
		pub:     pub,
		sim:     simulation,
		done:    make(chan struct{}),
	}

	var err error
	r.ticksTotal, err = meter().Int64Counter(
		"runner.ticks.total",
		metric.WithDescription("Total simulation ticks executed"),
	)
	if err != nil {
		return nil, err
	}

	// The sequencer fires this inside Tick or a command, both under r.mu.
	simulation.OnStageChange(r.handleTransition)

	return r, nil
}

// needArgs rejects events carrying fewer arguments than the handler reads.
func needArgs(e dispatcher.Event, n int) error {
	if len(e.Args) < n {
		return fmt.Errorf("%w: %s needs %d args, got %d",
			sim.ErrInvalidInput, e.Command, n, len(e.Args))
	}
	return nil
}

// RegisterHandlers binds the command surface to the simulation. Every
// handler takes the runner lock, so commands never race the tick loop.
func (r *Runner) RegisterHandlers(disp *dispatcher.Dispatcher) {
	disp.Register("autoDrop", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 2); err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		return nil, r.sim.StartDeploy(e.Args[0], e.Args[1])
	}, dispatcher.Logged())

	disp.Register("autoRetrieve", func(e dispatcher.Event) (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		return nil, r.sim.StartRetrieve()
	}, dispatcher.Logged())

	disp.Register("stop", func(e dispatcher.Event) (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.sim.Stop()
		return nil, nil
	}, dispatcher.Logged())

	disp.Register("setWind", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 2); err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		return nil, r.sim.SetWind(e.Args[0], e.Args[1])
	})

	disp.Register("setDepth", func(e dispatcher.Event) (any, error) {
		if err := needArgs(e, 1); err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		return nil, r.sim.SetDepth(e.Args[0])
	})

	disp.Register("reset", func(e dispatcher.Event) (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.sim.Reset()
		return nil, nil
	}, dispatcher.Logged())
}

// Snapshot returns the state of the last completed tick.
func (r *Runner) Snapshot() sim.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Snapshot()
}

// Start opens the recording session and launches the tick loop.
func (r *Runner) Start(simCfg sim.Config) error {
	if r.backend != nil {
		cfgJSON, err := json.Marshal(simCfg)
		if err != nil {
			return err
		}
		r.session = &model.Session{
			StartTime:   time.Now().UTC(),
			Tag:         r.opts.SessionTag,
			ConfigJSON:  cfgJSON,
			TickSeconds: r.opts.TickSeconds,
		}
		if err := r.backend.StartSession(r.session); err != nil {
			return err
		}
	}

	interval := time.Duration(float64(time.Second) * r.opts.TickSeconds / r.opts.TimeAcceleration)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.tick()
			}
		}
	}()

	r.log.Info().Float64("tickSeconds", r.opts.TickSeconds).
		Float64("timeAcceleration", r.opts.TimeAcceleration).
		Msg("Runner started")
	return nil
}

func (r *Runner) tick() {
	r.mu.Lock()
	r.sim.Tick(r.opts.TickSeconds)
	snap := r.sim.Snapshot()
	r.mu.Unlock()

	r.ticksTotal.Add(context.Background(), 1)
	r.fanOut(snap)
}

func (r *Runner) fanOut(snap sim.Snapshot) {
	now := time.Now().UTC()

	if r.backend != nil && r.session != nil {
		state, err := convert.TickStateFromSnapshot(snap, r.session.ID, now)
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to convert tick state")
		} else if err := r.backend.RecordTickState(&state); err != nil {
			r.log.Warn().Err(err).Msg("Failed to record tick state")
		}
	}

	if r.metrics != nil {
		point := influx.TickPoint(r.sessionID(), influx.TickFields{
			Tick:             snap.TickCount,
			Speed:            snap.Speed,
			Heading:          snap.Heading,
			RodeDeployed:     snap.RodeDeployed,
			Slack:            snap.Slack,
			Distance:         snap.DistanceFromAnchor,
			MotorThrustN:     snap.MotorThrustN,
			WindSpeedKnots:   snap.WindSpeedKnots,
			WindDirectionDeg: snap.WindDirectionDeg,
			DepthMeters:      snap.DepthMeters,
			TideMeters:       snap.TideHeightMeters,
			Stage:            snap.Stage,
			MotorEngaged:     snap.MotorEngaged,
			ConstraintActive: snap.ConstraintActive,
		}, now)
		if err := r.metrics.WritePoint(context.Background(), influx.BucketTicks, point); err != nil {
			r.log.Warn().Err(err).Msg("Failed to write tick point")
		}
	}

	if r.pub != nil {
		if err := r.pub.PublishSnapshot(snap); err != nil {
			r.log.Warn().Err(err).Msg("Failed to publish snapshot")
		}
	}
}

// handleTransition records sequencer stage changes. It runs under r.mu
// because the sequencer only transitions inside Tick or a command handler.
func (r *Runner) handleTransition(from, to sim.Stage, rodeMeters float64) {
	snap := r.sim.Snapshot()
	now := time.Now().UTC()

	r.log.Info().Str("from", from.String()).Str("to", to.String()).
		Float64("rodeMeters", rodeMeters).Msg("Stage transition")

	if r.backend != nil && r.session != nil {
		event := convert.StageEventFromTransition(
			from.String(), to.String(), rodeMeters, snap.TickCount, r.session.ID, now, nil)
		if err := r.backend.RecordStageEvent(&event); err != nil {
			r.log.Warn().Err(err).Msg("Failed to record stage event")
		}
	}

	if r.metrics != nil {
		point := influx.StagePoint(r.sessionID(), from.String(), to.String(), snap.TickCount, rodeMeters, now)
		if err := r.metrics.WritePoint(context.Background(), influx.BucketStages, point); err != nil {
			r.log.Warn().Err(err).Msg("Failed to write stage point")
		}
	}

	if r.pub != nil {
		if err := r.pub.PublishTransition(from.String(), to.String(), rodeMeters, snap.TickCount); err != nil {
			r.log.Warn().Err(err).Msg("Failed to publish transition")
		}
	}
}

func (r *Runner) sessionID() uint {
	if r.session != nil {
		return r.session.ID
	}
	return 0
}

// Stop halts the tick loop and closes the recording session.
func (r *Runner) Stop() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)
	r.wg.Wait()

	if r.backend != nil {
		if err := r.backend.EndSession(); err != nil {
			return err
		}
	}
	r.log.Info().Msg("Runner stopped")
	return nil
}
