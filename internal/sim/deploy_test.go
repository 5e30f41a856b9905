package sim

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func testSequencer() *Sequencer {
	return NewSequencer(DefaultConfig().Deployment, zerolog.Nop())
}

func TestSequencerStartsIdle(t *testing.T) {
	q := testSequencer()
	if q.Stage() != StageIdle {
		t.Fatalf("new sequencer stage = %v, want idle", q.Stage())
	}
	if q.Mode() != ModeIdle {
		t.Fatalf("new sequencer mode = %v, want idle", q.Mode())
	}
	q.Tick(0.5, 0.1) // ticking while idle is a no-op
	if q.RodeDeployed() != 0 {
		t.Fatalf("rode = %v after idle tick, want 0", q.RodeDeployed())
	}
}

func TestSequencerInitialDropPaysToDepthPlusSlack(t *testing.T) {
	q := testSequencer()
	q.StartDeploy(5)
	target := 5 + q.cfg.InitialSlackMeters

	// Steady boat speed keeps the stabilization window from interfering
	// before the rode threshold fires.
	var ticks int
	for q.Stage() == StageInitialDrop && ticks < 1000 {
		q.Tick(0.5, 0.05)
		ticks++
	}
	if q.Stage() != StageOrientationWait {
		t.Fatalf("stage = %v, want orientationWait", q.Stage())
	}
	if math.Abs(q.RodeDeployed()-target) > 1e-9 {
		t.Fatalf("rode = %v at end of initial drop, want %v", q.RodeDeployed(), target)
	}
	wantTicks := int(math.Ceil(target / (q.cfg.WinchRateMps * 0.5)))
	if ticks != wantTicks {
		t.Fatalf("initial drop took %d ticks, want %d at winch rate", ticks, wantTicks)
	}
}

func TestSequencerOrientationWaitIsTimed(t *testing.T) {
	q := testSequencer()
	q.StartDeploy(5)
	for q.Stage() != StageOrientationWait {
		q.Tick(0.5, 0.05)
	}
	rode := q.RodeDeployed()

	ticks := 0
	for q.Stage() == StageOrientationWait {
		q.Tick(0.5, 0.05)
		ticks++
	}
	if got := float64(ticks) * 0.5; got < q.cfg.OrientationHoldSec {
		t.Fatalf("orientation wait lasted %vs, want >= %vs", got, q.cfg.OrientationHoldSec)
	}
	if q.RodeDeployed() != rode {
		t.Fatalf("rode moved during orientation wait: %v -> %v", rode, q.RodeDeployed())
	}
	if q.Stage() != StageDigInDeploy {
		t.Fatalf("stage = %v after orientation wait, want digInDeploy", q.Stage())
	}
}

func TestSequencerDigInAdvancesOnStabilizedSpeed(t *testing.T) {
	q := testSequencer()
	q.StartDeploy(5)
	for q.Stage() != StageDigInDeploy {
		q.Tick(0.5, 0.4)
	}

	// Perfectly constant speed stabilizes as soon as the window fills.
	ticks := 0
	for q.Stage() == StageDigInDeploy && ticks < 1000 {
		q.Tick(0.5, 0.2)
		ticks++
	}
	if q.Stage() != StageDigInHold {
		t.Fatalf("stage = %v, want digInHold", q.Stage())
	}
	if q.RodeDeployed() >= q.digInTarget() {
		t.Fatalf("expected stabilization before the rode target, rode = %v", q.RodeDeployed())
	}
	if ticks > q.cfg.SpeedWindowTicks+1 {
		t.Fatalf("stabilization took %d ticks, want about the window size %d",
			ticks, q.cfg.SpeedWindowTicks)
	}
}

func TestSequencerDigInTimesOut(t *testing.T) {
	cfg := DefaultConfig().Deployment
	cfg.SpeedVarianceMax = 0 // stabilization can never fire
	q := NewSequencer(cfg, zerolog.Nop())
	q.StartDeploy(50) // big drop keeps the rode threshold out of reach too

	for q.Stage() != StageDigInDeploy {
		q.Tick(0.5, 0.0)
	}
	elapsed := 0.0
	for q.Stage() == StageDigInDeploy && elapsed < 1000 {
		q.Tick(0.5, 0.0)
		elapsed += 0.5
	}
	if q.Stage() != StageDigInHold {
		t.Fatalf("stage = %v, want digInHold via timeout", q.Stage())
	}
	if elapsed < cfg.DigInDeployMaxSec {
		t.Fatalf("advanced after %vs, before the %vs timeout", elapsed, cfg.DigInDeployMaxSec)
	}
}

func TestSequencerFullDeploySequence(t *testing.T) {
	q := testSequencer()
	q.StartDeploy(5)

	wantOrder := []Stage{
		StageInitialDrop, StageOrientationWait, StageDigInDeploy, StageDigInHold,
		StageDeepDeploy, StageDeepHold, StageFinalScope, StageSettled,
	}
	var seen []Stage
	q.OnTransition(func(from, to Stage, rode float64) {
		seen = append(seen, to)
	})

	speed := 0.4
	for i := 0; q.Stage() != StageSettled && i < 4000; i++ {
		q.Tick(0.5, speed)
		speed *= 0.999 // slowly settling boat
	}
	if q.Stage() != StageSettled {
		t.Fatalf("never reached settled, stuck at %v", q.Stage())
	}
	if math.Abs(q.RodeDeployed()-25) > 1e-9 {
		t.Fatalf("final rode = %v, want 25", q.RodeDeployed())
	}

	seen = append([]Stage{StageInitialDrop}, seen...) // StartDeploy precedes the callback
	for i, want := range wantOrder[1:] {
		if i+1 >= len(seen) || seen[i+1] != want {
			t.Fatalf("transition order %v, want %v", seen, wantOrder)
		}
	}
}

func TestSequencerRetrieveHaulsToMinimum(t *testing.T) {
	q := testSequencer()
	q.StartDeploy(5)
	for q.Stage() != StageSettled {
		q.Tick(0.5, 0.4)
	}

	q.StartRetrieve()
	if q.Stage() != StageRetrieving {
		t.Fatalf("stage = %v, want retrieving", q.Stage())
	}
	if q.Mode() != ModeRetrieve {
		t.Fatalf("mode = %v, want retrieve", q.Mode())
	}

	done := false
	q.OnTransition(func(from, to Stage, rode float64) {
		if from == StageRetrieving && to == StageIdle {
			done = true
		}
	})
	for i := 0; !done && i < 4000; i++ {
		q.Tick(0.5, 0.1)
	}
	if !done {
		t.Fatal("retrieval never completed")
	}
	if q.RodeDeployed() > q.cfg.RetrieveMinRodeMeter+1e-9 {
		t.Fatalf("rode = %v after retrieval, want <= %v",
			q.RodeDeployed(), q.cfg.RetrieveMinRodeMeter)
	}
}

func TestSequencerStopFreezesRode(t *testing.T) {
	q := testSequencer()
	q.StartDeploy(5)
	for i := 0; i < 30; i++ {
		q.Tick(0.5, 0.3)
	}
	rode := q.RodeDeployed()
	if rode == 0 {
		t.Fatal("expected some rode deployed before stop")
	}

	q.Stop()
	if q.Stage() != StageIdle {
		t.Fatalf("stage = %v after stop, want idle", q.Stage())
	}
	for i := 0; i < 50; i++ {
		q.Tick(0.5, 0.3)
	}
	if q.RodeDeployed() != rode {
		t.Fatalf("rode moved after stop: %v -> %v", rode, q.RodeDeployed())
	}
}

func TestSequencerResetClearsEverything(t *testing.T) {
	q := testSequencer()
	q.StartDeploy(5)
	for i := 0; i < 40; i++ {
		q.Tick(0.5, 0.3)
	}

	q.Reset()
	if q.Stage() != StageIdle || q.RodeDeployed() != 0 || q.SmoothedSpeed() != 0 {
		t.Fatalf("reset left state behind: stage=%v rode=%v speed=%v",
			q.Stage(), q.RodeDeployed(), q.SmoothedSpeed())
	}
}

func TestStageStringNames(t *testing.T) {
	if StageSettled.String() != "settled" {
		t.Errorf("settled name = %q", StageSettled.String())
	}
	if StageIdle.String() != "idle" {
		t.Errorf("idle name = %q", StageIdle.String())
	}
	if Stage(99).String() == "" {
		t.Error("unknown stage must still render")
	}
}
