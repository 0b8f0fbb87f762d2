package planner

import (
	"strings"
	"testing"

	"github.com/onekk/gplanner/kinematics"
)

func validModel() kinematics.Model {
	return kinematics.Model{
		Kind: kinematics.Cartesian{},
		Axes: [4]kinematics.AxisLimits{
			{StepsPerMM: 80, MaxFeedrateMMs: 300, MaxAccelerationMMs2: 3000},
			{StepsPerMM: 80, MaxFeedrateMMs: 300, MaxAccelerationMMs2: 3000},
			{StepsPerMM: 400, MaxFeedrateMMs: 5, MaxAccelerationMMs2: 100},
			{StepsPerMM: 415, MaxFeedrateMMs: 45, MaxAccelerationMMs2: 5000},
		},
	}
}

func TestValidateModelAcceptsWellFormedModel(t *testing.T) {
	if err := ValidateModel(validModel()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateModelAggregatesEveryViolation(t *testing.T) {
	m := validModel()
	m.Axes[0].StepsPerMM = 0
	m.Axes[1].MaxFeedrateMMs = -1
	m.Kind = nil

	err := ValidateModel(m)
	if err == nil {
		t.Fatalf("expected an aggregated error")
	}
	msg := err.Error()
	for _, want := range []string{"axis a", "axis b", "no geometry strategy"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing expected fragment %q", msg, want)
		}
	}
}

func TestWithDefaultsFillsOnlyZeroFields(t *testing.T) {
	cfg := Config{RingCapacity: 64, JunctionDeviationMM: 0.1}
	filled := cfg.withDefaults()
	if filled.RingCapacity != 64 {
		t.Fatalf("explicit RingCapacity overwritten: %d", filled.RingCapacity)
	}
	if filled.JunctionDeviationMM != 0.1 {
		t.Fatalf("explicit JunctionDeviationMM overwritten: %v", filled.JunctionDeviationMM)
	}
	if filled.MinStepsPerSegment == 0 {
		t.Fatalf("zero-valued MinStepsPerSegment should have been defaulted")
	}
	if filled.BlockDelayFor1stMove == 0 {
		t.Fatalf("zero-valued BlockDelayFor1stMove should have been defaulted")
	}
}

func TestMinimumPlannerSpeedSqr(t *testing.T) {
	cfg := Config{MinimumPlannerSpeedMMs: 0.05}
	if got, want := cfg.minimumPlannerSpeedSqr(), 0.0025; got != want {
		t.Fatalf("minimumPlannerSpeedSqr() = %v, want %v", got, want)
	}
}
