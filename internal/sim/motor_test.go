package sim

import "testing"

func TestMotorTargetSpeedTiers(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		slack float64
		want  float64
	}{
		{0.5, 0},
		{0.99, 0},
		{1.0, cfg.MotorMediumSpeed},
		{2.0, cfg.MotorMediumSpeed},
		{2.99, cfg.MotorMediumSpeed},
		{3.0, cfg.MotorHighSpeed},
		{5.0, cfg.MotorHighSpeed},
		{-2.0, 0},
	}
	for _, c := range cases {
		if got := motorTargetSpeed(c.slack, &cfg); got != c.want {
			t.Errorf("motorTargetSpeed(%v) = %v, want %v", c.slack, got, c.want)
		}
	}
}
