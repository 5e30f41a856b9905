package sim

import "errors"

// ErrInvalidInput is returned when a command or configuration value carries
// a NaN, an infinity, or an out-of-range number. Invalid values are rejected
// at the boundary and never reach the force or integration math.
var ErrInvalidInput = errors.New("invalid numeric input")

// ErrNotAnchored is returned when a retrieval is requested with no anchor down.
var ErrNotAnchored = errors.New("no anchor deployed")

// ErrDeploymentActive is returned when a deployment is requested while a
// sequence is already running.
var ErrDeploymentActive = errors.New("deployment sequence already active")
