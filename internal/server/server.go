// Package server exposes the simulator over HTTP. State reads return the
// latest snapshot; commands are routed through the dispatcher so every
// surface (HTTP, MQTT) funnels into the same handlers.
package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/anchorwatch/anchorsim/internal/dispatcher"
	"github.com/anchorwatch/anchorsim/internal/geo"
	"github.com/anchorwatch/anchorsim/internal/sim"
)

// SnapshotFunc returns the state of the last completed tick.
type SnapshotFunc func() sim.Snapshot

// commandArgCounts lists the accepted anchor commands and how many numeric
// arguments each takes.
var commandArgCounts = map[string]int{
	"autoDrop":     2, // depth, bow height
	"autoRetrieve": 0,
	"stop":         0,
}

// Server wraps the fiber app and its route dependencies.
type Server struct {
	app      *fiber.App
	disp     *dispatcher.Dispatcher
	snapshot SnapshotFunc
	log      zerolog.Logger
}

// New builds the app and registers routes.
func New(disp *dispatcher.Dispatcher, snapshot SnapshotFunc, log zerolog.Logger) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			AppName:               "anchorsim",
		}),
		disp:     disp,
		snapshot: snapshot,
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "OK",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	simGroup := s.app.Group("/simulation")
	simGroup.Get("/state", s.handleGetState)
	simGroup.Put("/config", s.handleSetConfig)
	simGroup.Put("/wind", s.handleSetWind)
	simGroup.Put("/depth", s.handleSetDepth)
	simGroup.Put("/reset", s.handleReset)

	s.app.Put("/navigation/anchor/command", s.handleAnchorCommand)
}

func (s *Server) handleGetState(c *fiber.Ctx) error {
	return c.JSON(s.snapshot())
}

type anchorCommandRequest struct {
	Command string    `json:"command"`
	Args    []float64 `json:"args"`
}

func (s *Server) handleAnchorCommand(c *fiber.Ctx) error {
	var req anchorCommandRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	want, ok := commandArgCounts[req.Command]
	if !ok {
		return badRequest(c, "unknown command: "+req.Command)
	}
	if len(req.Args) != want {
		return badRequest(c, "wrong argument count")
	}
	if !geo.IsFinite(req.Args...) {
		return badRequest(c, "arguments must be finite")
	}

	return s.dispatch(c, req.Command, req.Args)
}

type setConfigRequest struct {
	WindSpeedKnots   *float64 `json:"windSpeedKnots"`
	WindDirectionDeg *float64 `json:"windDirectionDeg"`
	DepthMeters      *float64 `json:"depthMeters"`
}

// handleSetConfig applies any subset of the runtime-tunable environment
// values. Wind speed and direction must be given together.
func (s *Server) handleSetConfig(c *fiber.Ctx) error {
	var req setConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if (req.WindSpeedKnots == nil) != (req.WindDirectionDeg == nil) {
		return badRequest(c, "windSpeedKnots and windDirectionDeg must be set together")
	}
	if req.WindSpeedKnots == nil && req.DepthMeters == nil {
		return badRequest(c, "nothing to update")
	}

	if req.WindSpeedKnots != nil {
		if !geo.IsFinite(*req.WindSpeedKnots, *req.WindDirectionDeg) {
			return badRequest(c, "wind values must be finite")
		}
		if err := s.dispatch(c, "setWind", []float64{*req.WindSpeedKnots, *req.WindDirectionDeg}); err != nil {
			return err
		}
		if c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
	}

	if req.DepthMeters != nil {
		if !geo.IsFinite(*req.DepthMeters) {
			return badRequest(c, "depth must be finite")
		}
		return s.dispatch(c, "setDepth", []float64{*req.DepthMeters})
	}
	return nil
}

type setWindRequest struct {
	SpeedKnots   float64 `json:"speedKnots"`
	DirectionDeg float64 `json:"directionDeg"`
}

func (s *Server) handleSetWind(c *fiber.Ctx) error {
	var req setWindRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if !geo.IsFinite(req.SpeedKnots, req.DirectionDeg) {
		return badRequest(c, "wind values must be finite")
	}
	return s.dispatch(c, "setWind", []float64{req.SpeedKnots, req.DirectionDeg})
}

type setDepthRequest struct {
	DepthMeters float64 `json:"depthMeters"`
}

func (s *Server) handleSetDepth(c *fiber.Ctx) error {
	var req setDepthRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if !geo.IsFinite(req.DepthMeters) {
		return badRequest(c, "depth must be finite")
	}
	return s.dispatch(c, "setDepth", []float64{req.DepthMeters})
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	return s.dispatch(c, "reset", nil)
}

// dispatch routes the command and maps simulator errors to status codes.
func (s *Server) dispatch(c *fiber.Ctx, command string, args []float64) error {
	_, err := s.disp.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("command", command).Msg("Command rejected")
		switch {
		case errors.Is(err, sim.ErrInvalidInput):
			return badRequest(c, err.Error())
		case errors.Is(err, sim.ErrNotAnchored), errors.Is(err, sim.ErrDeploymentActive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
	}
	return c.JSON(fiber.Map{"success": true})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
