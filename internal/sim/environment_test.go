package sim

import (
	"math"
	"testing"
)

func TestWindStaysInBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wind.GustMagnitudeKnots = 50 // force clamping to do the work
	e := NewEnvironment(cfg.Wind, cfg.Tide, cfg.DepthMeters, 42)

	for i := 0; i < 1000; i++ {
		e.UpdateWind(0.5)
		speed, dir := e.WindVector()
		if speed < WindSpeedMinKnots || speed > WindSpeedMaxKnots {
			t.Fatalf("tick %d: wind speed %v outside [%v, %v]",
				i, speed, WindSpeedMinKnots, WindSpeedMaxKnots)
		}
		if dir < 0 || dir >= 360 {
			t.Fatalf("tick %d: wind direction %v outside [0, 360)", i, dir)
		}
	}
}

func TestWindGustsMoveSpeed(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEnvironment(cfg.Wind, cfg.Tide, cfg.DepthMeters, 3)

	min, max := math.Inf(1), math.Inf(-1)
	for i := 0; i < 1000; i++ {
		e.UpdateWind(0.5)
		speed, _ := e.WindVector()
		if speed < min {
			min = speed
		}
		if speed > max {
			max = speed
		}
	}
	if max-min < 0.5 {
		t.Fatalf("wind speed barely moved over 500s: min=%v max=%v", min, max)
	}
	if min < cfg.Wind.BaseSpeedKnots-cfg.Wind.GustMagnitudeKnots-1e-9 {
		t.Fatalf("gust deviation %v exceeds magnitude %v",
			cfg.Wind.BaseSpeedKnots-min, cfg.Wind.GustMagnitudeKnots)
	}
	if max > cfg.Wind.BaseSpeedKnots+cfg.Wind.GustMagnitudeKnots+1e-9 {
		t.Fatalf("gust deviation %v exceeds magnitude %v",
			max-cfg.Wind.BaseSpeedKnots, cfg.Wind.GustMagnitudeKnots)
	}
}

func TestWindVectorIsPureRead(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEnvironment(cfg.Wind, cfg.Tide, cfg.DepthMeters, 9)
	e.UpdateWind(0.5)

	s1, d1 := e.WindVector()
	s2, d2 := e.WindVector()
	if s1 != s2 || d1 != d2 {
		t.Fatalf("WindVector mutated state: (%v, %v) then (%v, %v)", s1, d1, s2, d2)
	}
}

func TestSetWindOverridesBase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wind.GustMagnitudeKnots = 0
	cfg.Wind.OscillationAmpDeg = 0
	cfg.Wind.JitterDeg = 0
	e := NewEnvironment(cfg.Wind, cfg.Tide, cfg.DepthMeters, 1)

	e.SetWind(23, 415)
	e.UpdateWind(0.5)
	speed, dir := e.WindVector()
	if speed != 23 {
		t.Fatalf("speed = %v, want 23", speed)
	}
	if math.Abs(dir-55) > 1e-9 {
		t.Fatalf("direction = %v, want 55 (normalized from 415)", dir)
	}
}

func TestSetDepthFloorsAtZero(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEnvironment(cfg.Wind, cfg.Tide, cfg.DepthMeters, 1)
	e.SetDepth(-4)
	if e.Depth() != 0 {
		t.Fatalf("depth = %v, want 0", e.Depth())
	}
	e.SetDepth(12)
	if e.Depth() != 12 {
		t.Fatalf("depth = %v, want 12", e.Depth())
	}
}

func TestTideHeightCycles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tide = TideConfig{AmplitudeMeters: 1, PeriodSec: 400, MeanMeters: 0.5}
	e := NewEnvironment(cfg.Wind, cfg.Tide, cfg.DepthMeters, 1)

	if got := e.TideHeight(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("tide at t=0 is %v, want mean 0.5", got)
	}
	// A quarter period in: peak of the sine.
	for i := 0; i < 200; i++ {
		e.UpdateWind(0.5)
	}
	if got := e.TideHeight(); math.Abs(got-1.5) > 1e-6 {
		t.Fatalf("tide at quarter period is %v, want 1.5", got)
	}
}

func TestEnvironmentResetRestoresDefaults(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEnvironment(cfg.Wind, cfg.Tide, cfg.DepthMeters, 5)

	for i := 0; i < 300; i++ {
		e.UpdateWind(0.5)
	}
	e.SetWind(35, 10)
	e.SetDepth(40)

	e.Reset(cfg.DepthMeters)
	speed, dir := e.WindVector()
	if speed != cfg.Wind.BaseSpeedKnots {
		t.Errorf("speed after reset = %v, want %v", speed, cfg.Wind.BaseSpeedKnots)
	}
	if dir != cfg.Wind.BaseDirectionDeg {
		t.Errorf("direction after reset = %v, want %v", dir, cfg.Wind.BaseDirectionDeg)
	}
	if e.Depth() != cfg.DepthMeters {
		t.Errorf("depth after reset = %v, want %v", e.Depth(), cfg.DepthMeters)
	}
	if e.TideHeight() != cfg.Tide.MeanMeters {
		t.Errorf("tide after reset = %v, want mean", e.TideHeight())
	}
}
