package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/onekk/gplanner/kinematics"
	"github.com/onekk/gplanner/planner"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "printer.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDefaultsToCartesianProfile(t *testing.T) {
	path := writeConfig(t, `
ring_capacity = 16
`)
	res, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := res.Model.Kind.(kinematics.Cartesian); !ok {
		t.Fatalf("an empty profile field should resolve to the cartesian default, got %T", res.Model.Kind)
	}
	if res.Planner.RingCapacity != 16 {
		t.Fatalf("RingCapacity = %d, want 16", res.Planner.RingCapacity)
	}
	if len(res.Extruders.Extruders) != 1 {
		t.Fatalf("an empty [[extruders]] table should fall back to the profile's own extruder axis, got %d entries", len(res.Extruders.Extruders))
	}
}

func TestLoadUnknownProfileErrors(t *testing.T) {
	path := writeConfig(t, `profile = "spherical"`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load should reject an unknown profile name")
	}
}

func TestLoadAxisOverrideWinsOverProfile(t *testing.T) {
	path := writeConfig(t, `
profile = "corexy"

[axes.a]
max_feedrate_mms = 777
`)
	res, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := res.Model.Axes[kinematics.A].MaxFeedrateMMs; got != 777 {
		t.Fatalf("axis override did not apply: max_feedrate_mms = %v, want 777", got)
	}
	if _, ok := res.Model.Kind.(kinematics.CoreXY); !ok {
		t.Fatalf("profile = \"corexy\" should select CoreXY kinematics, got %T", res.Model.Kind)
	}
}

func TestLoadExplicitExtrudersReplaceTheDefault(t *testing.T) {
	path := writeConfig(t, `
[[extruders]]
steps_per_mm = 415
max_feedrate_mms = 25
e_factor = 1.0

[[extruders]]
steps_per_mm = 415
max_feedrate_mms = 25
e_factor = 1.0
`)
	res, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(res.Extruders.Extruders) != 2 {
		t.Fatalf("expected the two configured extruders to replace the fallback, got %d", len(res.Extruders.Extruders))
	}
	if res.Extruders.Extruders[0].StepsPerMM != 415 {
		t.Fatalf("extruder steps_per_mm = %v, want 415", res.Extruders.Extruders[0].StepsPerMM)
	}
}

func TestLoadClassicJerkPolicy(t *testing.T) {
	path := writeConfig(t, `
policy = "classic_jerk"
square_corner_velocity = 6
`)
	res, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Planner.Policy != planner.PolicyClassicJerk {
		t.Fatalf("Policy = %v, want PolicyClassicJerk", res.Planner.Policy)
	}
	if res.Planner.SquareCornerVelocity != 6 {
		t.Fatalf("SquareCornerVelocity = %v, want 6", res.Planner.SquareCornerVelocity)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("Load should error on a missing config file")
	}
}

func TestNewBuildsAReadyPlanner(t *testing.T) {
	path := writeConfig(t, `
ring_capacity = 8

[logging]
level = "warn"
`)
	p, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p == nil {
		t.Fatalf("New returned a nil planner with no error")
	}
	if !p.RingBuffer().Empty() {
		t.Fatalf("a freshly constructed planner should start with an empty ring buffer")
	}
}
