package runner

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorwatch/anchorsim/internal/config"
	"github.com/anchorwatch/anchorsim/internal/dispatcher"
	"github.com/anchorwatch/anchorsim/internal/logging"
	"github.com/anchorwatch/anchorsim/internal/sim"
	"github.com/anchorwatch/anchorsim/internal/storage/memory"
)

// recordingPublisher counts deliveries.
type recordingPublisher struct {
	snapshots   int
	transitions []string
}

func (p *recordingPublisher) PublishSnapshot(sim.Snapshot) error {
	p.snapshots++
	return nil
}

func (p *recordingPublisher) PublishTransition(from, to string, rode float64, tick uint64) error {
	p.transitions = append(p.transitions, to)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// calmConfig removes wind noise so runs are deterministic.
func calmConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Wind.GustMagnitudeKnots = 0
	cfg.Wind.ShiftMagnitudeDeg = 0
	cfg.Wind.OscillationAmpDeg = 0
	cfg.Wind.JitterDeg = 0
	return cfg
}

func newTestRunner(t *testing.T) (*Runner, *memory.Backend, *recordingPublisher, sim.Config) {
	t.Helper()

	cfg := calmConfig()
	simulation, err := sim.New(cfg, zerolog.Nop())
	require.NoError(t, err)

	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})
	pub := &recordingPublisher{}

	r, err := New(simulation, Options{
		TickSeconds:      0.5,
		TimeAcceleration: 1,
		SessionTag:       "test",
	}, backend, nil, pub, zerolog.Nop())
	require.NoError(t, err)

	return r, backend, pub, cfg
}

func readExport(t *testing.T, backend *memory.Backend) memory.RunExport {
	t.Helper()
	data, err := os.ReadFile(backend.GetExportedFilePath())
	require.NoError(t, err)
	var export memory.RunExport
	require.NoError(t, json.Unmarshal(data, &export))
	return export
}

func TestTickFanOut(t *testing.T) {
	r, backend, pub, cfg := newTestRunner(t)
	require.NoError(t, r.Start(cfg))
	defer r.Stop()

	for i := 0; i < 10; i++ {
		r.tick()
	}
	require.NoError(t, r.Stop())

	assert.GreaterOrEqual(t, pub.snapshots, 10)

	export := readExport(t, backend)
	assert.GreaterOrEqual(t, len(export.Ticks), 10)
	assert.Equal(t, "test", export.Tag)
}

func TestDeploymentRecordsStageEvents(t *testing.T) {
	r, backend, pub, cfg := newTestRunner(t)
	require.NoError(t, r.Start(cfg))

	disp, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	r.RegisterHandlers(disp)

	_, err = disp.Dispatch(dispatcher.Event{
		Command:   "autoDrop",
		Args:      []float64{3, 2},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	for i := 0; i < 1400; i++ {
		r.tick()
		if r.Snapshot().Stage == "settled" {
			break
		}
	}
	require.Equal(t, "settled", r.Snapshot().Stage)
	require.NoError(t, r.Stop())

	export := readExport(t, backend)
	require.NotEmpty(t, export.StageEvents)
	assert.Equal(t, "initialDrop", export.StageEvents[0].ToStage)
	last := export.StageEvents[len(export.StageEvents)-1]
	assert.Equal(t, "settled", last.ToStage)

	assert.Contains(t, pub.transitions, "orientationWait")
	assert.Contains(t, pub.transitions, "settled")
}

func TestCommandsSerializeThroughRunner(t *testing.T) {
	r, _, _, cfg := newTestRunner(t)
	require.NoError(t, r.Start(cfg))
	defer r.Stop()

	disp, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	r.RegisterHandlers(disp)

	_, err = disp.Dispatch(dispatcher.Event{Command: "setWind", Args: []float64{20, 90}})
	require.NoError(t, err)
	snap := r.Snapshot()
	assert.InDelta(t, 20.0, snap.WindSpeedKnots, 1e-9)

	_, err = disp.Dispatch(dispatcher.Event{Command: "autoRetrieve"})
	require.Error(t, err)

	_, err = disp.Dispatch(dispatcher.Event{Command: "reset"})
	require.NoError(t, err)
}

// Commands arriving with too few arguments must fail cleanly, not panic.
func TestCommandsRejectMissingArgs(t *testing.T) {
	r, _, _, cfg := newTestRunner(t)
	require.NoError(t, r.Start(cfg))
	defer r.Stop()

	disp, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	r.RegisterHandlers(disp)

	cases := []dispatcher.Event{
		{Command: "autoDrop"},
		{Command: "autoDrop", Args: []float64{3}},
		{Command: "setWind", Args: []float64{20}},
		{Command: "setDepth"},
	}
	for _, e := range cases {
		_, err := disp.Dispatch(e)
		require.ErrorIs(t, err, sim.ErrInvalidInput, "command %s with %d args", e.Command, len(e.Args))
	}

	// A well-formed command still goes through afterwards.
	_, err = disp.Dispatch(dispatcher.Event{Command: "setDepth", Args: []float64{7}})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, r.Snapshot().DepthMeters, 1e-9)
}

func TestStartStopLoop(t *testing.T) {
	cfg := calmConfig()
	simulation, err := sim.New(cfg, zerolog.Nop())
	require.NoError(t, err)

	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()})

	r, err := New(simulation, Options{
		TickSeconds:      0.5,
		TimeAcceleration: 100, // 5ms wall clock per tick
		SessionTag:       "loop",
	}, backend, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, r.Start(cfg))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, r.Stop())

	assert.Greater(t, r.Snapshot().TickCount, uint64(0))
	assert.NotEmpty(t, backend.GetExportedFilePath())
}
