package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorwatch/anchorsim/internal/dispatcher"
	"github.com/anchorwatch/anchorsim/internal/logging"
	"github.com/anchorwatch/anchorsim/internal/sim"
)

// newTestServer wires a real simulation behind the dispatcher the way the
// runner does, so handler errors surface with their real types.
func newTestServer(t *testing.T) (*Server, *sim.Simulation) {
	t.Helper()

	cfg := sim.DefaultConfig()
	simulation, err := sim.New(cfg, zerolog.Nop())
	require.NoError(t, err)

	disp, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)

	disp.Register("autoDrop", func(e dispatcher.Event) (any, error) {
		return nil, simulation.StartDeploy(e.Args[0], e.Args[1])
	})
	disp.Register("autoRetrieve", func(e dispatcher.Event) (any, error) {
		return nil, simulation.StartRetrieve()
	})
	disp.Register("stop", func(e dispatcher.Event) (any, error) {
		simulation.Stop()
		return nil, nil
	})
	disp.Register("setWind", func(e dispatcher.Event) (any, error) {
		return nil, simulation.SetWind(e.Args[0], e.Args[1])
	})
	disp.Register("setDepth", func(e dispatcher.Event) (any, error) {
		return nil, simulation.SetDepth(e.Args[0])
	})
	disp.Register("reset", func(e dispatcher.Event) (any, error) {
		simulation.Reset()
		return nil, nil
	})

	return New(disp, simulation.Snapshot, zerolog.Nop()), simulation
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestGetState(t *testing.T) {
	s, _ := newTestServer(t)

	status, body := doJSON(t, s, "GET", "/simulation/state", nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "idle", body["stage"])
	assert.Equal(t, false, body["anchored"])
}

func TestAnchorCommandAutoDrop(t *testing.T) {
	s, simulation := newTestServer(t)

	status, body := doJSON(t, s, "PUT", "/navigation/anchor/command", map[string]any{
		"command": "autoDrop",
		"args":    []float64{5, 1},
	})
	assert.Equal(t, 200, status)
	assert.Equal(t, true, body["success"])
	assert.True(t, simulation.Snapshot().Anchored)

	// second drop while a deployment is running
	status, body = doJSON(t, s, "PUT", "/navigation/anchor/command", map[string]any{
		"command": "autoDrop",
		"args":    []float64{5, 1},
	})
	assert.Equal(t, 409, status)
	assert.Equal(t, false, body["success"])
}

func TestAnchorCommandValidation(t *testing.T) {
	s, _ := newTestServer(t)

	status, _ := doJSON(t, s, "PUT", "/navigation/anchor/command", map[string]any{
		"command": "dropEverything",
	})
	assert.Equal(t, 400, status)

	status, _ = doJSON(t, s, "PUT", "/navigation/anchor/command", map[string]any{
		"command": "autoDrop",
		"args":    []float64{5},
	})
	assert.Equal(t, 400, status)

	status, _ = doJSON(t, s, "PUT", "/navigation/anchor/command", map[string]any{
		"command": "autoDrop",
		"args":    []float64{-5, 1},
	})
	assert.Equal(t, 400, status)
}

func TestRetrieveWithoutAnchor(t *testing.T) {
	s, _ := newTestServer(t)

	status, _ := doJSON(t, s, "PUT", "/navigation/anchor/command", map[string]any{
		"command": "autoRetrieve",
	})
	assert.Equal(t, 409, status)
}

func TestSetWind(t *testing.T) {
	s, simulation := newTestServer(t)

	status, body := doJSON(t, s, "PUT", "/simulation/wind", map[string]any{
		"speedKnots":   18.0,
		"directionDeg": 45.0,
	})
	assert.Equal(t, 200, status)
	assert.Equal(t, true, body["success"])

	snap := simulation.Snapshot()
	assert.InDelta(t, 18.0, snap.WindSpeedKnots, 1e-9)
	assert.InDelta(t, 45.0, snap.WindDirectionDeg, 1e-9)

	// out-of-range speed is clamped, not rejected
	status, _ = doJSON(t, s, "PUT", "/simulation/wind", map[string]any{
		"speedKnots":   100.0,
		"directionDeg": 45.0,
	})
	assert.Equal(t, 200, status)
	assert.InDelta(t, 40.0, simulation.Snapshot().WindSpeedKnots, 1e-9)
}

func TestSetDepth(t *testing.T) {
	s, simulation := newTestServer(t)

	status, _ := doJSON(t, s, "PUT", "/simulation/depth", map[string]any{
		"depthMeters": 12.0,
	})
	assert.Equal(t, 200, status)
	assert.InDelta(t, 12.0, simulation.Snapshot().DepthMeters, 1e-9)
}

func TestSetConfig(t *testing.T) {
	s, simulation := newTestServer(t)

	status, body := doJSON(t, s, "PUT", "/simulation/config", map[string]any{
		"windSpeedKnots":   22.0,
		"windDirectionDeg": 300.0,
		"depthMeters":      8.0,
	})
	assert.Equal(t, 200, status)
	assert.Equal(t, true, body["success"])

	snap := simulation.Snapshot()
	assert.InDelta(t, 22.0, snap.WindSpeedKnots, 1e-9)
	assert.InDelta(t, 300.0, snap.WindDirectionDeg, 1e-9)
	assert.InDelta(t, 8.0, snap.DepthMeters, 1e-9)

	// wind fields must come as a pair
	status, _ = doJSON(t, s, "PUT", "/simulation/config", map[string]any{
		"windSpeedKnots": 15.0,
	})
	assert.Equal(t, 400, status)

	status, _ = doJSON(t, s, "PUT", "/simulation/config", map[string]any{})
	assert.Equal(t, 400, status)
}

func TestReset(t *testing.T) {
	s, simulation := newTestServer(t)

	_, _ = doJSON(t, s, "PUT", "/navigation/anchor/command", map[string]any{
		"command": "autoDrop",
		"args":    []float64{5, 1},
	})

	status, body := doJSON(t, s, "PUT", "/simulation/reset", nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, true, body["success"])
	assert.False(t, simulation.Snapshot().Anchored)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	status, body := doJSON(t, s, "GET", "/health", nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "OK", body["status"])
}
